// Package httpapi exposes the pipeline and the aggregate views over HTTP.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/ingest"
	"townhall-insights-go/internal/insights"
	"townhall-insights-go/internal/logger"
)

// Server owns the route table. Construction wires collaborators; serving is
// plain net/http.
type Server struct {
	cfg      *config.Config
	pipeline *ingest.Pipeline
	engine   *insights.Engine
	chat     *insights.Router
	log      *logrus.Entry
}

func NewServer(cfg *config.Config, pipeline *ingest.Pipeline, engine *insights.Engine, chat *insights.Router) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		engine:   engine,
		chat:     chat,
		log:      logger.New().WithComponent("httpapi"),
	}
}

// Handler builds the mux. The /api surface sits behind the auth middleware;
// health and metrics stay open for probes and scrapers.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/upload", s.handleUpload)
	api.HandleFunc("/api/insights/utterances", s.handleUtterances)
	api.HandleFunc("/api/insights/trends", s.handleTrends)
	api.HandleFunc("/api/insights/speakers", s.handleSpeakers)
	api.HandleFunc("/api/insights/export", s.handleExport)
	api.HandleFunc("/api/chat", s.handleChat)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", authMiddleware(s.cfg, api))
	return mux
}

// NewHTTPServer applies the standard timeouts around the handler.
func (s *Server) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.New().WithError(err).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
