package enrichment

import (
	"context"
	"strings"
)

// topicKeywords is the fixed table driving meeting-wide topic inference.
// Order matters only for output stability.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"sugar_reduction", []string{"sugar", "sweetener", "low sugar", "zero sugar"}},
	{"packaging", []string{"packaging", "bottle", "can", "container", "rpet"}},
	{"sustainability", []string{"sustainable", "environment", "carbon", "recycling"}},
	{"market_trends", []string{"market", "trend", "consumer", "demand"}},
	{"operations", []string{"production", "manufacturing", "supply", "logistics"}},
	{"innovation", []string{"innovation", "new product", "development", "research"}},
}

// GeneralDiscussion is the sentinel topic stamped when nothing matches.
const GeneralDiscussion = "general_discussion"

// TopicsFor computes the topic set for one meeting from all its utterance
// texts combined. The decision is the deterministic keyword match; an
// embedding is requested per utterance for future semantic clustering but
// has no effect on the output.
func (o *Orchestrator) TopicsFor(ctx context.Context, texts []string) []string {
	for _, text := range texts {
		cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
		if _, err := o.client.Embed(cctx, text); err != nil {
			o.log.WithError(err).Debug("embedding skipped")
		}
		cancel()
	}

	combined := strings.ToLower(strings.Join(texts, " "))
	var topics []string
	for _, entry := range topicKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(combined, kw) {
				topics = append(topics, entry.topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		return []string{GeneralDiscussion}
	}
	return topics
}
