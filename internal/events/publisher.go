// Package events publishes pipeline lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/logger"
)

// MeetingIngested is emitted once per successfully ingested transcript so
// downstream consumers can react without polling the index.
type MeetingIngested struct {
	MeetingID      string    `json:"meeting_id"`
	Filename       string    `json:"filename"`
	UtteranceCount int       `json:"utterance_count"`
	Status         string    `json:"status"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// Publisher writes ingest events to a single topic. Without brokers it runs
// in log-only mode: publishes succeed but only land in the log.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	log     *logrus.Entry
}

func NewPublisher(cfg *config.Config) *Publisher {
	log := logger.New().WithComponent("events")

	if len(cfg.KafkaBrokers) == 0 {
		log.Info("kafka disabled, events run in log-only mode")
		return &Publisher{topic: cfg.KafkaTopic, log: log}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	log.WithFields(logrus.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
	}).Info("kafka publisher initialized")

	return &Publisher{writer: writer, topic: cfg.KafkaTopic, enabled: true, log: log}
}

// Publish emits one MeetingIngested event keyed by meeting ID.
func (p *Publisher) Publish(ctx context.Context, event MeetingIngested) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"meeting_id": event.MeetingID,
		"topic":      p.topic,
		"status":     event.Status,
	}).Debug("publishing ingest event")

	if !p.enabled || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.MeetingID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(p.topic)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.WithError(err).WithField("meeting_id", event.MeetingID).Error("kafka write failed")
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
