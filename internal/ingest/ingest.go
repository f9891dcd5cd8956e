// Package ingest runs the upload pipeline: parse, normalize, enrich,
// persist, announce.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"townhall-insights-go/internal/events"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/metrics"
	"townhall-insights-go/internal/normalizer"
	"townhall-insights-go/internal/parser"
	"townhall-insights-go/internal/storage"
	"townhall-insights-go/internal/types"
)

const archiveContainer = "transcripts"

// Enricher is the slice of the enrichment orchestrator the pipeline needs.
type Enricher interface {
	Enrich(ctx context.Context, utterances []types.Utterance) []types.Utterance
	TopicsFor(ctx context.Context, texts []string) []string
	Summarize(ctx context.Context, utterances []types.Utterance) types.MeetingSummary
}

// EventSink receives one event per successful ingest.
type EventSink interface {
	Publish(ctx context.Context, event events.MeetingIngested) error
}

// Pipeline wires the ingest stages together. Parsing failures abort; the
// blob archive and the event publish are best effort.
type Pipeline struct {
	store    storage.SearchStore
	blob     storage.BlobStore
	enricher Enricher
	events   EventSink
	m        *metrics.Metrics
	log      *logrus.Entry
}

func NewPipeline(store storage.SearchStore, blob storage.BlobStore, enricher Enricher, sink EventSink) *Pipeline {
	return &Pipeline{
		store:    store,
		blob:     blob,
		enricher: enricher,
		events:   sink,
		m:        metrics.Default,
		log:      logger.New().WithComponent("ingest"),
	}
}

// Ingest processes one transcript file end to end and returns the outcome.
// meetingDate may be empty; the normalizer then falls back to wall-clock
// time.
func (p *Pipeline) Ingest(ctx context.Context, filename string, data []byte, meetingDate string) (types.IngestResult, error) {
	meetingID := newMeetingID()
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	log := p.log.WithFields(logrus.Fields{"meeting_id": meetingID, "filename": filename, "format": format})
	log.WithField("bytes", len(data)).Info("ingest started")

	raw, err := parser.Parse(format, data)
	if err != nil {
		p.m.IngestsFailed.Inc()
		log.WithError(err).Error("parse failed")
		return types.IngestResult{}, fmt.Errorf("parse %s: %w", filename, err)
	}
	p.m.UtterancesParsed.Add(float64(len(raw)))

	if len(raw) == 0 {
		log.Warn("transcript produced no utterances")
		return types.IngestResult{
			MeetingID: meetingID,
			Filename:  filename,
			Topics:    []string{},
			Summary:   types.FallbackSummary(),
			Status:    "empty",
		}, nil
	}

	utterances := normalizer.Normalize(raw, meetingID, meetingDate)
	utterances = p.enricher.Enrich(ctx, utterances)

	texts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		texts = append(texts, u.Content)
	}
	topics := p.enricher.TopicsFor(ctx, texts)
	for i := range utterances {
		utterances[i].Topics = topics
	}

	summary := p.enricher.Summarize(ctx, utterances)

	p.archive(ctx, meetingID, format, data, log)

	if err := p.store.EnsureIndex(ctx); err != nil {
		log.WithError(err).Warn("ensure index failed, attempting upsert anyway")
	}
	if err := p.store.Upsert(ctx, utterances); err != nil {
		p.m.IngestsFailed.Inc()
		p.m.StorageErrors.WithLabelValues("upsert").Inc()
		log.WithError(err).Error("index upsert failed")
		return types.IngestResult{}, fmt.Errorf("persist %s: %w", meetingID, err)
	}

	p.announce(ctx, meetingID, filename, len(utterances), log)
	p.m.IngestsTotal.Inc()
	log.WithFields(logrus.Fields{"utterances": len(utterances), "topics": topics}).Info("ingest complete")

	return types.IngestResult{
		MeetingID:       meetingID,
		Filename:        filename,
		UtterancesCount: len(utterances),
		Topics:          topics,
		Summary:         summary,
		Status:          "success",
	}, nil
}

// archive stores the raw upload bytes. Losing the archive never fails the
// ingest.
func (p *Pipeline) archive(ctx context.Context, meetingID, format string, data []byte, log *logrus.Entry) {
	if p.blob == nil {
		return
	}
	key := meetingID + "/transcript." + format
	if err := p.blob.Put(ctx, archiveContainer, key, data); err != nil {
		p.m.StorageErrors.WithLabelValues("blob_put").Inc()
		log.WithError(err).Warn("raw transcript archive failed")
	}
}

func (p *Pipeline) announce(ctx context.Context, meetingID, filename string, count int, log *logrus.Entry) {
	if p.events == nil {
		return
	}
	event := events.MeetingIngested{
		MeetingID:      meetingID,
		Filename:       filename,
		UtteranceCount: count,
		Status:         "success",
		IngestedAt:     time.Now().UTC(),
	}
	if err := p.events.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("ingest event publish failed")
	}
}

func newMeetingID() string {
	return "meeting-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
