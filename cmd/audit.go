package cmd

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/batch"
)

func newAuditCmd() *cobra.Command {
	var noCache, sortByGrade bool

	cmd := &cobra.Command{
		Use:   "audit URL [URL...]",
		Short: "Audits one or more URLs and prints the results as JSON",
		Long: `Audits each URL against the four WCAG principles and prints one
JSON result per URL to stdout. Results are served from the local
cache when a recent audit exists, unless --no-cache is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditCommand(cmd, args, noCache, sortByGrade)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached results and audit fresh")
	cmd.Flags().BoolVar(&sortByGrade, "sort", false, "print results best grade first instead of input order")
	return cmd
}

func runAuditCommand(cmd *cobra.Command, urls []string, noCache, sortByGrade bool) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	var store audit.ResultCache
	if !noCache {
		store = a.cache
	}
	o := batch.New(a.analyzer, store, batch.Config{
		BatchSize:     a.cfg.Batch.Size,
		MaxConcurrent: a.cfg.Batch.MaxConcurrent,
		Pause:         a.cfg.BatchPause(),
	}, a.log.Named("batch"))

	results := o.Run(cmd.Context(), urls)
	if sortByGrade {
		audit.SortByGrade(results)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Grade == audit.GradeError {
			failed++
		}
	}
	if failed > 0 {
		a.log.Warn("some audits failed", zap.Int("failed", failed), zap.Int("total", len(results)))
		return errors.New("one or more audits failed")
	}
	return nil
}
