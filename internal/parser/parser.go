package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"townhall-insights-go/internal/types"
)

// ErrFormat marks a structured document that cannot be opened at all. It is
// the one hard failure in this package: caption input always yields a best
// effort stream instead.
var ErrFormat = errors.New("unparseable transcript document")

// ErrUnsupportedFormat is returned for extensions other than vtt and docx.
var ErrUnsupportedFormat = errors.New("unsupported transcript format")

// Parse dispatches on the caller-declared format ("vtt" or "docx").
func Parse(format string, data []byte) ([]types.RawUtterance, error) {
	switch strings.ToLower(format) {
	case "vtt":
		return ParseVTT(string(data)), nil
	case "docx":
		return ParseDOCX(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// timeToSeconds converts "HH:MM:SS.mmm" to seconds by fixed-width
// decomposition. Malformed strings yield 0.0 rather than an error so a bad
// cue never poisons its neighbors.
func timeToSeconds(ts string) float64 {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0.0
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0.0
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0.0
	}
	secParts := strings.SplitN(parts[2], ".", 2)
	seconds, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0.0
	}
	millis := 0
	if len(secParts) > 1 {
		millis, err = strconv.Atoi(secParts[1])
		if err != nil {
			return 0.0
		}
	}
	return float64(hours)*3600 + float64(minutes)*60 + float64(seconds) + float64(millis)/1000.0
}

// splitSpeaker extracts "Speaker: content" when the prefix before the first
// colon is a plausible speaker name (<= 50 chars). Otherwise the whole text
// is content by an unknown speaker.
func splitSpeaker(text string) (speaker, content string) {
	speaker = "Unknown Speaker"
	content = strings.TrimSpace(text)
	if idx := strings.Index(content, ":"); idx >= 0 {
		name := strings.TrimSpace(content[:idx])
		if len(name) <= 50 {
			speaker = name
			content = strings.TrimSpace(content[idx+1:])
		}
	}
	return speaker, content
}
