package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/vincentbai/tsmcheck/internal/config"
	"github.com/vincentbai/tsmcheck/internal/database"
	"github.com/vincentbai/tsmcheck/internal/logging"
)

type app struct {
	stdin  io.Reader
	stdout io.Writer

	config *config.Config
	logger *logging.Logger

	// flags
	history      bool
	databasePath string
	logLevel     string
	logDev       bool
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout}

	rootCmd := &cobra.Command{
		Use:   "tsmcheck",
		Short: "Check Tab Session Manager exports for tab count mismatches",
		Long: "tsmcheck decodes a Tab Session Manager JSON export and reports, per session,\n" +
			"whether the declared tab count matches the tabs recorded in its windows.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)

	rootCmd.PersistentFlags().BoolVar(&a.history, "history", false, "record runs in the default history database")
	rootCmd.PersistentFlags().StringVar(&a.databasePath, "database", "", "history database path (overrides TSMCHECK_DATABASE_PATH)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&a.logDev, "log-dev", false, "human-readable development logging")

	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))

	return rootCmd
}

// setup loads environment config and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("database") {
		cfg.Database.Path = a.databasePath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-dev") {
		cfg.Logging.Development = a.logDev
	}
	a.config = cfg

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return nil
}

// openHistory opens the configured history database. With no configured
// path it falls back to the default location when --history is set or the
// caller requires a database; otherwise it returns nil.
func (a *app) openHistory(required bool) (*database.Database, error) {
	if a.config.HistoryEnabled() {
		return database.NewDatabase(a.config.Database.Path)
	}
	if !a.history && !required {
		return nil, nil
	}
	path, err := defaultDatabasePath()
	if err != nil {
		return nil, err
	}
	return database.NewDatabase(path)
}

// defaultDatabasePath places history in the platform's app data directory.
func defaultDatabasePath() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	var applicationDirectory string
	switch runtime.GOOS {
	case "darwin":
		applicationDirectory = filepath.Join(homeDirectory, "Library", "Application Support", "tsmcheck")
	case "windows":
		applicationDirectory = filepath.Join(homeDirectory, "AppData", "Roaming", "tsmcheck")
	default: // linux and others
		applicationDirectory = filepath.Join(homeDirectory, ".local", "share", "tsmcheck")
	}
	if err := os.MkdirAll(applicationDirectory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create application directory: %w", err)
	}
	return filepath.Join(applicationDirectory, "history.db"), nil
}
