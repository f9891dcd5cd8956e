// Package report renders aggregate views into a downloadable workbook.
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/types"
)

var trendHeader = []string{"Topic", "Description", "Meetings Count", "Avg Sentiment", "Momentum", "Novelty Score"}

var speakerHeader = []string{"Speaker ID", "Display Name", "Department", "Region", "Mentions", "Avg Sentiment", "Top Quote"}

// BuildWorkbook produces an xlsx with one sheet per aggregate view. The
// caller owns the bytes; nothing is written to disk.
func BuildWorkbook(trends []types.Trend, speakers []types.SpeakerSummary) ([]byte, error) {
	log := logger.New().WithComponent("report")

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Trends")
	if err := writeTrends(f, trends); err != nil {
		return nil, fmt.Errorf("trends sheet: %w", err)
	}
	if _, err := f.NewSheet("Speakers"); err != nil {
		return nil, fmt.Errorf("speakers sheet: %w", err)
	}
	if err := writeSpeakers(f, speakers); err != nil {
		return nil, fmt.Errorf("speakers sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	log.WithField("trends", len(trends)).WithField("speakers", len(speakers)).Info("workbook built")
	return buf.Bytes(), nil
}

func writeTrends(f *excelize.File, trends []types.Trend) error {
	if err := writeRow(f, "Trends", 1, toAny(trendHeader)); err != nil {
		return err
	}
	for i, tr := range trends {
		row := []any{tr.Name, tr.Description, tr.MeetingsCount, tr.AvgSentiment, tr.Momentum, tr.NoveltyScore}
		if err := writeRow(f, "Trends", i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSpeakers(f *excelize.File, speakers []types.SpeakerSummary) error {
	if err := writeRow(f, "Speakers", 1, toAny(speakerHeader)); err != nil {
		return err
	}
	for i, s := range speakers {
		quote := ""
		if len(s.ExemplarQuotes) > 0 {
			quote = s.ExemplarQuotes[0].Quote
		}
		row := []any{s.SpeakerID, s.DisplayName, s.Department, s.Region, s.Mentions, s.AvgSentiment, quote}
		if err := writeRow(f, "Speakers", i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Filename returns a stable attachment name for the export, derived from
// the filter so repeated downloads with the same filter overwrite.
func Filename(filters types.FilterSpec) string {
	parts := []string{"townhall-insights"}
	if filters.Department != "" {
		parts = append(parts, strings.ToLower(filters.Department))
	}
	if filters.Region != "" {
		parts = append(parts, strings.ToLower(filters.Region))
	}
	return strings.Join(parts, "-") + ".xlsx"
}
