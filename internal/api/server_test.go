package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/cache"
	"github.com/pmorten/a11y-auditor/internal/config"
)

type fakeAuditor struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeAuditor) Analyze(_ context.Context, url string) (audit.AnalysisResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	return audit.AnalysisResult{URL: url, Grade: audit.GradeAA, Score: 82}, nil
}

func (f *fakeAuditor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(filepath.Join(t.TempDir(), "cache.json"), cache.Options{})
	require.NoError(t, err)
	return store
}

func baseConfig() config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func newTestServer(t *testing.T) (*Server, *fakeAuditor, *cache.Store) {
	t.Helper()
	auditor := &fakeAuditor{}
	store := newTestCache(t)
	return NewServer(auditor, store, nil, baseConfig(), zap.NewNop()), auditor, store
}

func TestServer_RunSingleAudit(t *testing.T) {
	t.Parallel()

	server, auditor, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/audits", bytes.NewBufferString(`{"url":"https://example.com"}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []audit.AnalysisResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, "https://example.com", resp.Results[0].URL)
	require.Equal(t, audit.GradeAA, resp.Results[0].Grade)
	require.Equal(t, 1, auditor.callCount())
}

func TestServer_RunBatchDeduplicatesURLs(t *testing.T) {
	t.Parallel()

	server, auditor, _ := newTestServer(t)
	body := `{"urls":["https://a.example","https://b.example","https://a.example"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/audits", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []audit.AnalysisResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	require.Equal(t, 2, auditor.callCount())
}

func TestServer_RunAudit_InvalidJSON(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/audits", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunAudit_MissingURLs(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/audits", bytes.NewBufferString(`{"urls":[]}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "at least one URL required")
}

func TestServer_RunAudit_SkipsCacheWhenDisabled(t *testing.T) {
	t.Parallel()

	server, auditor, store := newTestServer(t)
	require.NoError(t, store.Set("https://example.com", audit.AnalysisResult{
		URL: "https://example.com", Grade: audit.GradeAAA, Score: 98,
	}))

	body := `{"url":"https://example.com","use_cache":false}`
	req := httptest.NewRequest(http.MethodPost, "/v1/audits", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []audit.AnalysisResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, audit.GradeAA, resp.Results[0].Grade)
	require.Equal(t, 1, auditor.callCount())
}

func TestServer_GetCachedAudit(t *testing.T) {
	t.Parallel()

	server, auditor, store := newTestServer(t)
	require.NoError(t, store.Set("https://cached.example", audit.AnalysisResult{
		URL: "https://cached.example", Grade: audit.GradeA, Score: 66,
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/audits?url=https%3A%2F%2Fcached.example", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res audit.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "https://cached.example", res.URL)
	require.Zero(t, auditor.callCount())
}

func TestServer_GetCachedAudit_Miss(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/audits?url=https%3A%2F%2Fnobody.example", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CacheStatsAndClear(t *testing.T) {
	t.Parallel()

	server, _, store := newTestServer(t)
	require.NoError(t, store.Set("https://one.example", audit.AnalysisResult{
		URL: "https://one.example", Grade: audit.GradeAA, Score: 80,
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats audit.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.Entries)

	req = httptest.NewRequest(http.MethodDelete, "/v1/cache", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, store.Has("https://one.example"))
}

func TestServer_CacheCleanup(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/cache/cleanup", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "removed")
}

func TestServer_APIKeyRequired(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "sekrit"
	server := NewServer(&fakeAuditor{}, newTestCache(t), nil, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequestIDHeader(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
