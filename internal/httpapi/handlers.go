package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"townhall-insights-go/internal/insights"
	"townhall-insights-go/internal/logger"
	"townhall-insights-go/internal/parser"
	"townhall-insights-go/internal/report"
	"townhall-insights-go/internal/storage"
	"townhall-insights-go/internal/types"
)

const (
	maxUploadBytes = 32 << 20
	defaultPage    = 50
	maxPage        = 100
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "upload")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		reqLog.WithError(err).Warn("bad multipart body")
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		reqLog.WithError(err).Warn("missing file field")
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		reqLog.WithError(err).Error("reading upload failed")
		writeError(w, http.StatusInternalServerError, "reading upload failed")
		return
	}
	meetingDate := r.FormValue("meeting_date")
	reqLog = reqLog.WithField("filename", header.Filename)
	reqLog.WithField("bytes", len(data)).Info("upload received")

	result, err := s.pipeline.Ingest(r.Context(), header.Filename, data, meetingDate)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrUnsupportedFormat), errors.Is(err, parser.ErrFormat):
			reqLog.WithError(err).Warn("rejected transcript")
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrStorageUnavailable):
			reqLog.WithError(err).Error("storage unavailable")
			writeError(w, http.StatusServiceUnavailable, "storage unavailable, try again later")
		default:
			reqLog.WithError(err).Error("ingest failed")
			writeError(w, http.StatusInternalServerError, "ingest failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUtterances(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "utterances")
	filters := parseFilters(r)
	top, skip := parsePaging(r)

	utterances, total, err := s.engine.Utterances(r.Context(), filters, top, skip)
	if err != nil {
		reqLog.WithError(err).Error("utterance query failed")
		writeError(w, http.StatusServiceUnavailable, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":           utterances,
		"total_count":     total,
		"filters_applied": filters,
		"pagination":      map[string]int{"top": top, "skip": skip},
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "trends")
	trends, err := s.engine.Trends(r.Context(), parseFilters(r))
	if err != nil {
		reqLog.WithError(err).Error("trend aggregation failed")
		writeError(w, http.StatusServiceUnavailable, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trends": trends, "count": len(trends)})
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "speakers")
	speakers, err := s.engine.Speakers(r.Context(), parseFilters(r))
	if err != nil {
		reqLog.WithError(err).Error("speaker aggregation failed")
		writeError(w, http.StatusServiceUnavailable, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"speakers": speakers, "count": len(speakers)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "export")
	filters := parseFilters(r)

	trends, err := s.engine.Trends(r.Context(), filters)
	if err != nil {
		reqLog.WithError(err).Error("trend aggregation failed")
		writeError(w, http.StatusServiceUnavailable, "aggregation failed")
		return
	}
	speakers, err := s.engine.Speakers(r.Context(), filters)
	if err != nil {
		reqLog.WithError(err).Error("speaker aggregation failed")
		writeError(w, http.StatusServiceUnavailable, "aggregation failed")
		return
	}

	workbook, err := report.BuildWorkbook(trends, speakers)
	if err != nil {
		reqLog.WithError(err).Error("workbook build failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(filters)))
	w.Write(workbook)
	reqLog.WithField("bytes", len(workbook)).Info("export served")
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "chat")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var body struct {
		Question string `json:"question"`
		Context  string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		reqLog.WithError(err).Warn("bad chat body")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp := s.chat.Answer(r.Context(), body.Question, body.Context)
	reqLog.WithField("intent", resp.Intent).WithField("confidence", resp.Confidence).Info("chat answered")
	writeJSON(w, http.StatusOK, resp)
}

// parseFilters maps query parameters onto the filter shape. Unparseable
// sentiment bounds are dropped rather than rejected.
func parseFilters(r *http.Request) types.FilterSpec {
	q := r.URL.Query()
	f := types.FilterSpec{
		FromDate:   insights.ExpandBareDate(q.Get("from")),
		ToDate:     insights.ExpandBareDate(q.Get("to")),
		Department: q.Get("department"),
		Region:     q.Get("region"),
		Search:     q.Get("search"),
	}
	if topics := q.Get("topicsCsv"); topics != "" {
		for _, t := range strings.Split(topics, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Topics = append(f.Topics, t)
			}
		}
	}
	if v := q.Get("sentiment_min"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.SentimentMin = &n
		}
	}
	if v := q.Get("sentiment_max"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.SentimentMax = &n
		}
	}
	return f
}

func parsePaging(r *http.Request) (top, skip int) {
	top = defaultPage
	q := r.URL.Query()
	if v := q.Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			top = n
		}
	}
	if top > maxPage {
		top = maxPage
	}
	if v := q.Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			skip = n
		}
	}
	return top, skip
}
