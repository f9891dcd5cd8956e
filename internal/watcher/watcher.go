// Package watcher ingests transcripts dropped into a local directory.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"townhall-insights-go/internal/ingest"
	"townhall-insights-go/internal/logger"
)

// settleDelay gives the writer time to finish before we read the file.
const settleDelay = 500 * time.Millisecond

// Watcher feeds files appearing in one directory through the ingest
// pipeline. Each filename is ingested at most once per process lifetime.
type Watcher struct {
	dir      string
	pipeline *ingest.Pipeline
	seen     map[string]bool
	log      *logrus.Entry
}

func New(dir string, pipeline *ingest.Pipeline) *Watcher {
	return &Watcher{
		dir:      dir,
		pipeline: pipeline,
		seen:     map[string]bool{},
		log:      logger.New().WithComponent("watcher").WithField("dir", dir),
	}
}

// Run watches the directory until the context is cancelled. Files already
// present at startup are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching for transcript drops")
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.handle(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

// sweep picks up files that landed before the watch was registered.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.WithError(err).Warn("initial directory sweep failed")
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.handle(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if !supported(path) || w.seen[path] {
		return
	}
	w.seen[path] = true

	time.Sleep(settleDelay)
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.WithError(err).WithField("path", path).Warn("read dropped file failed")
		delete(w.seen, path)
		return
	}

	result, err := w.pipeline.Ingest(ctx, filepath.Base(path), data, "")
	if err != nil {
		w.log.WithError(err).WithField("path", path).Error("drop ingest failed")
		return
	}
	w.log.WithFields(logrus.Fields{
		"path":       path,
		"meeting_id": result.MeetingID,
		"utterances": result.UtterancesCount,
	}).Info("drop ingested")
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt", ".docx":
		return true
	default:
		return false
	}
}
