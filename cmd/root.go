// Package cmd defines the CLI commands for the auditor executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	pubsubv2 "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/analyzer"
	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/cache"
	"github.com/pmorten/a11y-auditor/internal/clock/system"
	"github.com/pmorten/a11y-auditor/internal/config"
	"github.com/pmorten/a11y-auditor/internal/feedback"
	"github.com/pmorten/a11y-auditor/internal/feedback/openai"
	collyfetcher "github.com/pmorten/a11y-auditor/internal/fetcher/colly"
	"github.com/pmorten/a11y-auditor/internal/hash/sha256"
	"github.com/pmorten/a11y-auditor/internal/logging"
	"github.com/pmorten/a11y-auditor/internal/policy/ratelimit"
	pubsubpublisher "github.com/pmorten/a11y-auditor/internal/publisher/pubsub"
	gcssnapshot "github.com/pmorten/a11y-auditor/internal/snapshot/gcs"
	localsnapshot "github.com/pmorten/a11y-auditor/internal/snapshot/local"
	"github.com/pmorten/a11y-auditor/internal/telemetry"
	"github.com/pmorten/a11y-auditor/internal/throttle"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "a11y-auditor",
		Short: "Audits web pages against the four WCAG principles.",
		Long: `a11y-auditor fetches web pages and evaluates them against the four
WCAG principles (perceivable, operable, understandable, robust),
producing per-principle scores, an overall compliance grade, and a
list of concrete accessibility issues.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus AUDITOR_* env)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired service components shared by the subcommands.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	cache    *cache.Store
	analyzer *analyzer.Analyzer
	feedback *feedback.Generator

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	telemetry.SetupPropagation()

	store, err := cache.New(cfg.Cache.Path, cache.Options{
		MaxAge: cfg.CacheMaxAge(),
		Logger: logger.Named("cache"),
	})
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	a := &app{cfg: cfg, log: logger, cache: store}

	policy := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.DomainRPS,
		DefaultBurst: cfg.Fetch.DomainBurst,
		OnDelay:      telemetry.ObserveRateLimitDelay,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, policy)

	snapshots, err := a.buildSnapshotStore(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.analyzer = analyzer.New(fetcher, analyzer.Options{
		Snapshots: snapshots,
		Hasher:    sha256.New(),
		Publisher: publisher,
		Clock:     system.New(),
		Logger:    logger.Named("analyzer"),
	})
	a.feedback = buildFeedbackGenerator(cfg, logger)
	return a, nil
}

func buildFeedbackGenerator(cfg config.Config, logger *zap.Logger) *feedback.Generator {
	if !cfg.Feedback.Enabled {
		return nil
	}
	completer := openai.New(openai.Config{
		BaseURL: cfg.Feedback.BaseURL,
		APIKey:  cfg.Feedback.APIKey,
		Model:   cfg.Feedback.Model,
	})
	limiter := throttle.New(throttle.Options{
		TPMLimit:     cfg.Feedback.TPMLimit,
		RPMLimit:     cfg.Feedback.RPMLimit,
		SafetyMargin: cfg.Feedback.SafetyMargin,
		MaxRetries:   cfg.Feedback.MaxRetries,
		BaseDelay:    time.Duration(cfg.Feedback.BaseDelayMs) * time.Millisecond,
		Logger:       logger.Named("throttle"),
	})
	return feedback.NewGenerator(completer, limiter, logger.Named("feedback"))
}

func (a *app) buildSnapshotStore(ctx context.Context) (audit.BlobStore, error) {
	switch a.cfg.Snapshot.Backend {
	case "local":
		store, err := localsnapshot.New(localsnapshot.Config{BaseDir: a.cfg.Snapshot.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local snapshot store: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcssnapshot.New(client, gcssnapshot.Config{Bucket: a.cfg.Snapshot.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs snapshot store: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

func (a *app) buildPublisher(ctx context.Context) (audit.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" {
		return nil, nil
	}
	client, err := pubsubv2.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return pubsubpublisher.New(client.Publisher(a.cfg.PubSub.TopicName)), nil
}
