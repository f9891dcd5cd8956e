package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townhall-insights-go/internal/config"
)

func TestLogOnlyModeWithoutBrokers(t *testing.T) {
	p := NewPublisher(&config.Config{KafkaTopic: "meeting.ingested"})
	t.Cleanup(func() { p.Close() })

	err := p.Publish(context.Background(), MeetingIngested{
		MeetingID:      "meeting-abc12345",
		Filename:       "townhall.vtt",
		UtteranceCount: 12,
		Status:         "success",
		IngestedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, p.enabled)
}

func TestCloseWithoutWriterIsNil(t *testing.T) {
	p := NewPublisher(&config.Config{})
	assert.NoError(t, p.Close())
}
