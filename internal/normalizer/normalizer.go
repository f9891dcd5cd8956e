package normalizer

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"townhall-insights-go/internal/types"
)

const (
	defaultDepartment = "Unknown"
	defaultRegion     = "Unknown"
	defaultTimestamp  = "00:00:00"
)

// Normalize maps raw parser output into the canonical utterance schema. It
// is a pure mapping: fresh id per record, enrichment fields at their
// defaults, no collaborator calls.
func Normalize(raw []types.RawUtterance, meetingID, meetingDate string) []types.Utterance {
	now := time.Now().UTC().Format(time.RFC3339)
	dateValue := resolveMeetingDate(meetingDate, now)

	normalized := make([]types.Utterance, 0, len(raw))
	for _, r := range raw {
		// Untimed sources (DOCX paragraphs) get the documented defaults.
		start, end, duration := defaultTimestamp, defaultTimestamp, 0.0
		if r.HasTiming {
			start, end, duration = r.StartTime, r.EndTime, r.DurationSeconds
		}
		normalized = append(normalized, types.Utterance{
			ID:             uuid.New().String(),
			MeetingID:      meetingID,
			MeetingDate:    dateValue,
			Speaker:        r.Speaker,
			Department:     defaultDepartment,
			Region:         defaultRegion,
			Topics:         []string{},
			SentimentScore: 0.0,
			Content:        r.Content,
			StartTimestamp: start,
			EndTimestamp:   end,
			DurationSecs:   duration,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return normalized
}

// resolveMeetingDate expands a bare YYYY-MM-DD date to midnight UTC, passes
// full timestamps through, and falls back to ingestion wall-clock time.
func resolveMeetingDate(meetingDate, now string) string {
	if meetingDate == "" {
		return now
	}
	if len(meetingDate) == 10 && strings.Count(meetingDate, "-") == 2 {
		return meetingDate + "T00:00:00Z"
	}
	return meetingDate
}
