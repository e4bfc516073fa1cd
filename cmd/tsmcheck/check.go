package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vincentbai/tsmcheck/internal/models"
	"github.com/vincentbai/tsmcheck/internal/report"
	"github.com/vincentbai/tsmcheck/internal/source"
	"github.com/vincentbai/tsmcheck/internal/validator"
	"go.uber.org/zap"
)

var errInvalidSessions = errors.New("export contains invalid sessions")

type checkOptions struct {
	json    bool
	isolate bool
	strict  bool
	workers int
}

func newCheckCmd(a *app) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate the tab counts of every session in an export",
		Long:  "Validate the tab counts of every session in an export. Use - to read the export from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("isolate") {
				opts.isolate = a.config.Validation.Isolate
			}
			if !cmd.Flags().Changed("workers") {
				opts.workers = a.config.Validation.Workers
			}
			return a.runCheck(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&opts.isolate, "isolate", false, "report undecodable sessions instead of failing the whole export")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error when any session is invalid")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "sessions validated concurrently (0 = unbounded)")

	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, path string, opts checkOptions) error {
	data, err := source.Read(path, a.stdin)
	if err != nil {
		return err
	}

	outcomes, err := models.DecodeOutcomes(data, opts.isolate)
	if err != nil {
		a.logger.Error("Failed to decode export", zap.String("file", path), zap.Error(err))
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	results, err := validator.ValidateOutcomes(cmd.Context(), outcomes, opts.workers)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", path, err)
	}

	summary := validator.Summarize(results)
	a.logger.Info("Checked export",
		zap.String("file", path),
		zap.Int("sessions", summary.Total),
		zap.Int("invalid", summary.Invalid),
		zap.Int("failed", summary.Failed),
	)

	runID, err := a.recordRun(path, results)
	if err != nil {
		return err
	}

	if opts.json {
		payload, err := report.JSON(runID, results)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(a.stdout, string(payload)); err != nil {
			return err
		}
	} else if err := report.Text(a.stdout, results, time.Now()); err != nil {
		return err
	}

	if opts.strict && summary.Valid != summary.Total {
		return errInvalidSessions
	}
	return nil
}

// recordRun stores the run when history is enabled and returns its id.
func (a *app) recordRun(path string, results []validator.Result) (string, error) {
	db, err := a.openHistory(false)
	if err != nil {
		return "", err
	}
	if db == nil {
		return "", nil
	}
	defer db.Close()

	runID, err := db.InsertRun(path, results)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	a.logger.Debug("Recorded run", zap.String("run_id", runID))
	return runID, nil
}
