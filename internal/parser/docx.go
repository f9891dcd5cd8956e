package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"

	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/types"
)

var speakerLineRe = regexp.MustCompile(`^([^:]+):\s*(.+)$`)

// ParseDOCX walks the paragraphs of a Word transcript in order. A paragraph
// shaped like "Name: text" starts a new speaker turn; anything else extends
// the current turn. No timing exists in this format. An unopenable
// container is the one hard ingestion failure.
func ParseDOCX(data []byte) ([]types.RawUtterance, error) {
	log := logger.New().WithComponent("docx-parser")

	paragraphs, err := docxParagraphs(data)
	if err != nil {
		log.WithError(err).Error("failed to open DOCX container")
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	var utterances []types.RawUtterance
	currentSpeaker := ""
	var currentContent []string

	flush := func() {
		if currentSpeaker != "" && len(currentContent) > 0 {
			utterances = append(utterances, types.RawUtterance{
				Speaker: currentSpeaker,
				Content: strings.Join(currentContent, " "),
			})
		}
	}

	for _, text := range paragraphs {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if m := speakerLineRe.FindStringSubmatch(text); m != nil {
			flush()
			currentSpeaker = strings.TrimSpace(m[1])
			currentContent = []string{strings.TrimSpace(m[2])}
		} else {
			// Continuation; text before any speaker turn is kept here but
			// never flushed on its own.
			currentContent = append(currentContent, text)
		}
	}
	flush()

	log.WithField("utterances", len(utterances)).Info("parsed DOCX file")
	return utterances, nil
}

// docxParagraphs extracts the ordered paragraph texts from the
// word/document.xml part of the zip container.
func docxParagraphs(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document part: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read document part: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("container has no word/document.xml")
	}

	doc, err := xmlquery.Parse(bytes.NewReader(docXML))
	if err != nil {
		return nil, fmt.Errorf("parse document xml: %w", err)
	}

	var paragraphs []string
	for _, p := range xmlquery.Find(doc, "//*[local-name()='p']") {
		var sb strings.Builder
		for _, t := range xmlquery.Find(p, ".//*[local-name()='t']") {
			sb.WriteString(t.InnerText())
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return paragraphs, nil
}
