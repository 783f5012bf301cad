// Package analyzer runs the full audit pipeline for a single URL:
// fetch, parse, evaluate the four WCAG principles, detect SPA shells,
// and combine everything into one result. Snapshot archival and event
// publication hang off the side as best-effort steps.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/rules"
	"github.com/pmorten/a11y-auditor/internal/scoring"
	"github.com/pmorten/a11y-auditor/internal/spa"
	"github.com/pmorten/a11y-auditor/internal/telemetry"
)

// CompletedEvent is the payload published after each successful audit.
const CompletedEvent = "audit.completed"

// Options wires the optional side effects. Snapshots and Publisher may
// be nil; the pipeline runs without them.
type Options struct {
	Snapshots audit.BlobStore
	Hasher    audit.Hasher
	Publisher audit.Publisher
	Clock     audit.Clock
	Logger    *zap.Logger
}

// Analyzer audits one page at a time. Safe for concurrent use.
type Analyzer struct {
	fetcher    audit.Fetcher
	snapshots  audit.BlobStore
	hasher     audit.Hasher
	publisher  audit.Publisher
	clock      audit.Clock
	log        *zap.Logger
	evaluators []*rules.Evaluator
}

// New builds an Analyzer around a fetcher.
func New(fetcher audit.Fetcher, opts Options) *Analyzer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Analyzer{
		fetcher:   fetcher,
		snapshots: opts.Snapshots,
		hasher:    opts.Hasher,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		log:       opts.Logger,
		evaluators: []*rules.Evaluator{
			rules.Perceivable(),
			rules.Operable(),
			rules.Understandable(),
			rules.Robust(),
		},
	}
}

// Analyze audits rawURL. Fetch and parse failures return a synthetic
// Error-graded result alongside the error, so batch callers always
// have something to report per URL.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (audit.AnalysisResult, error) {
	start := a.now()

	resp, err := a.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		a.log.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		telemetry.ObserveAudit(rawURL, "fetch_error", a.now().Sub(start))
		return audit.ErrorResult(rawURL, "Fetch", err.Error()), err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		perr := &audit.ParseError{URL: rawURL, Err: err}
		a.log.Warn("parse failed", zap.String("url", rawURL), zap.Error(perr))
		telemetry.ObserveAudit(rawURL, "parse_error", a.now().Sub(start))
		return audit.ErrorResult(rawURL, "Parse", perr.Error()), perr
	}

	principleResults := make([]audit.PrincipleResult, 0, len(a.evaluators))
	for _, ev := range a.evaluators {
		principleResults = append(principleResults, ev.Evaluate(doc))
	}
	spaDetected := spa.Detect(doc, resp.Body)

	// Timestamps are left zero; the cache stamps them on store.
	result := scoring.Combine(rawURL, principleResults, spaDetected)
	elapsed := a.now().Sub(start)
	result.AnalysisSeconds = math.Round(elapsed.Seconds()*100) / 100

	a.log.Info("audit complete",
		zap.String("url", rawURL),
		zap.String("grade", string(result.Grade)),
		zap.Int("score", result.Score),
		zap.Bool("spa", spaDetected),
		zap.Duration("elapsed", elapsed))
	telemetry.ObserveAudit(rawURL, "success", elapsed)
	telemetry.ObserveScore(string(result.Grade), result.Score)

	a.archiveSnapshot(ctx, rawURL, resp.Body)
	a.publishCompleted(ctx, result)
	return result, nil
}

func (a *Analyzer) archiveSnapshot(ctx context.Context, rawURL string, body []byte) {
	if a.snapshots == nil || a.hasher == nil {
		return
	}
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	path := fmt.Sprintf("%s/%s.html", host, a.hasher.Hash(body))

	uri, err := a.snapshots.PutObject(ctx, path, "text/html", bytes.NewReader(body))
	if err != nil {
		a.log.Warn("snapshot archive failed", zap.String("url", rawURL), zap.Error(err))
		return
	}
	a.log.Debug("snapshot archived", zap.String("url", rawURL), zap.String("uri", uri))
}

func (a *Analyzer) publishCompleted(ctx context.Context, result audit.AnalysisResult) {
	if a.publisher == nil {
		return
	}
	id, err := a.publisher.Publish(ctx, CompletedEvent, result)
	if err != nil {
		a.log.Warn("event publish failed", zap.String("url", result.URL), zap.Error(err))
		return
	}
	a.log.Debug("event published", zap.String("url", result.URL), zap.String("message_id", id))
}

func (a *Analyzer) now() time.Time {
	if a.clock != nil {
		return a.clock.Now()
	}
	return time.Now()
}
