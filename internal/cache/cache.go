// Package cache persists audit results as a single JSON snapshot on
// disk. The file doubles as a hand-inspectable artifact: top-level keys
// are URLs, values are the full analysis results.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

// DefaultMaxAge is how long a cached result stays servable.
const DefaultMaxAge = 7 * 24 * time.Hour

// Options configures a Store beyond its file path.
type Options struct {
	MaxAge time.Duration
	Clock  audit.Clock
	Logger *zap.Logger
}

// Store is a persistent, mutex-guarded result cache. All reads and
// writes go through the in-memory map; every mutation is flushed to
// disk before returning.
type Store struct {
	path   string
	maxAge time.Duration
	clock  audit.Clock
	log    *zap.Logger

	mu      sync.Mutex
	entries map[string]audit.AnalysisResult
}

// New opens (or creates) the snapshot at path, dropping entries older
// than the retention window. A corrupt snapshot is discarded rather
// than propagated; the cache is an accelerator, not a system of record.
func New(path string, opts Options) (*Store, error) {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Store{
		path:    path,
		maxAge:  opts.MaxAge,
		clock:   opts.Clock,
		log:     opts.Logger,
		entries: make(map[string]audit.AnalysisResult),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &audit.CacheIOError{Op: "load", Err: err}
	}

	var snapshot map[string]audit.AnalysisResult
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.log.Warn("discarding corrupt cache snapshot",
			zap.String("file", s.path), zap.Error(err))
		return nil
	}

	cutoff := s.clock.Now().Add(-s.maxAge)
	expired := 0
	for url, entry := range snapshot {
		// A zero timestamp means the stored value was unparseable;
		// keep the entry rather than silently losing work.
		if !entry.Timestamp.IsZero() && entry.Timestamp.Before(cutoff) {
			expired++
			continue
		}
		s.entries[url] = entry
	}
	s.log.Info("cache snapshot loaded",
		zap.String("file", s.path),
		zap.Int("entries", len(s.entries)),
		zap.Int("expired", expired))

	if expired > 0 {
		return s.flush()
	}
	return nil
}

// Get returns a deep copy of the cached result for url. A hit updates
// the entry's last-accessed time and persists it.
func (s *Store) Get(url string) (audit.AnalysisResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[url]
	if !ok {
		return audit.AnalysisResult{}, false
	}

	entry.LastAccessed = audit.Timestamp{Time: s.clock.Now()}
	s.entries[url] = entry
	if err := s.flush(); err != nil {
		s.log.Warn("cache touch not persisted", zap.String("url", url), zap.Error(err))
	}
	return entry.Clone(), true
}

// Has reports presence without touching the entry.
func (s *Store) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[url]
	return ok
}

// Set stores a copy of result under url. Error-grade results are
// dropped: caching a transient failure would keep serving it for the
// whole retention window.
func (s *Store) Set(url string, result audit.AnalysisResult) error {
	if result.Grade == audit.GradeError {
		s.log.Warn("refusing to cache error result", zap.String("url", url))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := result.Clone()
	// Stamped here and nowhere else, so re-storing a previously
	// returned result refreshes its retention window.
	now := audit.Timestamp{Time: s.clock.Now()}
	entry.Timestamp = now
	entry.LastAccessed = now
	s.entries[url] = entry
	return s.flush()
}

// CleanupExpired drops entries older than the retention window and
// reports how many were removed.
func (s *Store) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.maxAge)
	removed := 0
	for url, entry := range s.entries {
		if !entry.Timestamp.IsZero() && entry.Timestamp.Before(cutoff) {
			delete(s.entries, url)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.flush()
}

// Clear empties the cache and persists the empty snapshot.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]audit.AnalysisResult)
	return s.flush()
}

// Stats summarises the snapshot for operators.
func (s *Store) Stats() audit.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := audit.CacheStats{
		Entries:    len(s.entries),
		File:       s.path,
		MaxAgeDays: int(s.maxAge / (24 * time.Hour)),
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.TotalBytes = int(info.Size())
	}
	return stats
}

// flush writes the snapshot atomically: marshal to a sibling temp file,
// then rename over the target. Callers hold s.mu.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return &audit.CacheIOError{Op: "marshal", Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s-*", filepath.Base(s.path)))
	if err != nil {
		return &audit.CacheIOError{Op: "flush", Err: err}
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &audit.CacheIOError{Op: "flush", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &audit.CacheIOError{Op: "flush", Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return &audit.CacheIOError{Op: "flush", Err: err}
	}
	return nil
}
