package parser

import (
	"strings"

	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/types"
)

// ParseVTT turns WebVTT caption text into raw utterances. Files without a
// usable WEBVTT header go through the line-oriented fallback scan, so this
// never fails outright.
func ParseVTT(content string) []types.RawUtterance {
	log := logger.New().WithComponent("vtt-parser")

	cues, ok := parseCues(content)
	if !ok {
		log.Warn("primary VTT parse failed, using fallback line scan")
		utterances := parseVTTFallback(content)
		log.WithField("utterances", len(utterances)).Info("fallback parsing finished")
		return utterances
	}

	var utterances []types.RawUtterance
	for _, cue := range cues {
		speaker, text := splitSpeaker(cue.text)
		if text == "" {
			continue
		}
		utterances = append(utterances, types.RawUtterance{
			Speaker:         speaker,
			Content:         text,
			StartTime:       cue.start,
			EndTime:         cue.end,
			DurationSeconds: timeToSeconds(cue.end) - timeToSeconds(cue.start),
			HasTiming:       true,
		})
	}
	log.WithField("utterances", len(utterances)).Info("parsed VTT file")
	return utterances
}

type cue struct {
	start string
	end   string
	text  string
}

// parseCues is the structural pass over the caption container. It reports
// ok=false when the WEBVTT header is missing or incompatible, which is the
// signal to fall back.
func parseCues(content string) ([]cue, bool) {
	content = strings.TrimPrefix(content, "\uFEFF")
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	// Header line must be WEBVTT, optionally followed by a label.
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[i]), "WEBVTT") {
		return nil, false
	}
	i++

	var cues []cue
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}
		// NOTE and STYLE blocks run until the next blank line.
		if strings.HasPrefix(line, "NOTE") || line == "STYLE" || line == "REGION" {
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
				i++
			}
			continue
		}
		// Optional cue identifier precedes the timing line.
		if !strings.Contains(line, "-->") {
			i++
			if i >= len(lines) || !strings.Contains(lines[i], "-->") {
				continue
			}
			line = strings.TrimSpace(lines[i])
		}

		start, end, ok := parseTimingLine(line)
		i++
		var payload []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			payload = append(payload, strings.TrimSpace(lines[i]))
			i++
		}
		if !ok {
			continue
		}
		cues = append(cues, cue{start: start, end: end, text: strings.Join(payload, "\n")})
	}
	return cues, true
}

// parseTimingLine splits "00:00:01.000 --> 00:00:06.000 [settings]".
func parseTimingLine(line string) (start, end string, ok bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	start = strings.TrimSpace(parts[0])
	end = strings.TrimSpace(parts[1])
	// Cue settings may trail the end time.
	if fields := strings.Fields(end); len(fields) > 0 {
		end = fields[0]
	}
	if start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}

// parseVTTFallback recovers utterances from syntactically broken but still
// line-structured caption files: find a time-range line, take the next
// non-blank line as the caption text.
func parseVTTFallback(content string) []types.RawUtterance {
	var utterances []types.RawUtterance
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "-->") || !strings.Contains(line, ":") {
			continue
		}
		parts := strings.SplitN(line, " --> ", 2)
		if len(parts) != 2 {
			continue
		}
		start := strings.TrimSpace(parts[0])
		end := strings.TrimSpace(parts[1])

		i++
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}
		speaker, text := splitSpeaker(lines[i])
		if text == "" {
			continue
		}
		utterances = append(utterances, types.RawUtterance{
			Speaker:         speaker,
			Content:         text,
			StartTime:       start,
			EndTime:         end,
			DurationSeconds: timeToSeconds(end) - timeToSeconds(start),
			HasTiming:       true,
		})
	}
	return utterances
}
