// Package api exposes the HTTP interface for the auditor service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/batch"
	"github.com/pmorten/a11y-auditor/internal/config"
	"github.com/pmorten/a11y-auditor/internal/feedback"
	"github.com/pmorten/a11y-auditor/internal/telemetry"
)

// maxBatchURLs bounds one request so a single caller cannot tie up the
// worker pool for minutes.
const maxBatchURLs = 50

// Server wires HTTP handlers to the auditor and the result cache.
type Server struct {
	router   chi.Router
	auditor  batch.Auditor
	cache    audit.ResultCache
	feedback *feedback.Generator
	cfg      config.Config
	log      *zap.Logger
}

// NewServer constructs a Server with middleware and routes. feedbackGen
// may be nil when feedback generation is disabled.
func NewServer(
	auditor batch.Auditor,
	cache audit.ResultCache,
	feedbackGen *feedback.Generator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		auditor:  auditor,
		cache:    cache,
		feedback: feedbackGen,
		cfg:      cfg,
		log:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(120 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", s.runAudits)
			r.Get("/", s.getCachedAudit)
		})
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.cacheStats)
			r.Post("/cleanup", s.cacheCleanup)
			r.Delete("/", s.cacheClear)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.cache != nil {
		// Confirms the cache file is still readable.
		_ = s.cache.Stats()
	}
	writeJSON(s.log, w, http.StatusOK, map[string]string{"status": "ready"})
}

type auditRequest struct {
	URL            string   `json:"url"`
	URLs           []string `json:"urls"`
	UseCache       *bool    `json:"use_cache"`
	Feedback       bool     `json:"feedback"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

type auditResponse struct {
	Results  []audit.AnalysisResult `json:"results"`
	Feedback *feedback.Report       `json:"feedback,omitempty"`
}

func (s *Server) runAudits(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.log, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	urls, err := normalizeURLs(req)
	if err != nil {
		writeError(s.log, w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	cache := s.cache
	if req.UseCache != nil && !*req.UseCache {
		cache = nil
	}
	o := batch.New(s.auditor, cache, batch.Config{
		BatchSize:     s.cfg.Batch.Size,
		MaxConcurrent: s.cfg.Batch.MaxConcurrent,
		Pause:         s.cfg.BatchPause(),
	}, s.log)

	resp := auditResponse{Results: o.Run(ctx, urls)}
	if req.Feedback && s.feedback != nil && len(resp.Results) == 1 {
		report := s.feedback.Generate(ctx, resp.Results[0])
		resp.Feedback = &report
	}
	writeJSON(s.log, w, http.StatusOK, resp)
}

func (s *Server) getCachedAudit(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(s.log, w, http.StatusBadRequest, "url query parameter required")
		return
	}
	if s.cache == nil {
		writeError(s.log, w, http.StatusNotFound, "cache disabled")
		return
	}
	result, ok := s.cache.Get(url)
	telemetry.ObserveCacheLookup(ok)
	if !ok {
		writeError(s.log, w, http.StatusNotFound, "no cached audit for url")
		return
	}
	writeJSON(s.log, w, http.StatusOK, result)
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(s.log, w, http.StatusNotFound, "cache disabled")
		return
	}
	writeJSON(s.log, w, http.StatusOK, s.cache.Stats())
}

func (s *Server) cacheCleanup(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(s.log, w, http.StatusNotFound, "cache disabled")
		return
	}
	removed, err := s.cache.CleanupExpired()
	if err != nil {
		writeError(s.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.log, w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) cacheClear(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(s.log, w, http.StatusNotFound, "cache disabled")
		return
	}
	if err := s.cache.Clear(); err != nil {
		writeError(s.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.log, w, http.StatusOK, map[string]string{"status": "cleared"})
}

func normalizeURLs(req auditRequest) ([]string, error) {
	urls := make([]string, 0, len(req.URLs)+1)
	if req.URL != "" {
		urls = append(urls, req.URL)
	}
	urls = append(urls, req.URLs...)
	if len(urls) == 0 {
		return nil, errors.New("at least one URL required")
	}
	if len(urls) > maxBatchURLs {
		return nil, errors.New("too many URLs in one request")
	}
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}
