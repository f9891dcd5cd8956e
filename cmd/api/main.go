package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"townhall-insights-go/internal/cache"
	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/enrichment"
	"townhall-insights-go/internal/events"
	"townhall-insights-go/internal/httpapi"
	"townhall-insights-go/internal/ingest"
	"townhall-insights-go/internal/insights"
	"townhall-insights-go/internal/llm"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/storage"
	"townhall-insights-go/internal/watcher"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "townhall-insights-go").Info("starting service")

	cfg := config.Load()

	client := llm.New(cfg)
	search := storage.NewSearchClient(cfg)

	var blob storage.BlobStore
	if cfg.BlobEndpoint != "" {
		blob = storage.NewBlobClient(cfg)
	}

	enricher := enrichment.New(cfg, client)
	publisher := events.NewPublisher(cfg)
	defer publisher.Close()

	pipeline := ingest.NewPipeline(search, blob, enricher, publisher)
	engine := insights.NewEngine(search, cache.New(cfg))
	chat := insights.NewRouter(engine, client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchDir != "" {
		w := watcher.New(cfg.WatchDir, pipeline)
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("watcher terminated")
			}
		}()
	}

	srv := httpapi.NewServer(cfg, pipeline, engine, chat).NewHTTPServer()
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	log.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
