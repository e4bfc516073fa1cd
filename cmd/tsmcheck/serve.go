package main

import (
	"github.com/spf13/cobra"
	"github.com/vincentbai/tsmcheck/internal/config"
	"github.com/vincentbai/tsmcheck/internal/monitoring"
	"github.com/vincentbai/tsmcheck/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Validate exports posted to /sessions/validate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("address") {
				address = a.config.Server.Address
			}

			db, err := a.openHistory(false)
			if err != nil {
				return err
			}
			// Keep the interface nil when history is off.
			var store server.HistoryStore
			if db != nil {
				defer db.Close()
				store = db
			}

			srv := server.NewServer(store, server.Config{
				Address:      address,
				Workers:      a.config.Validation.Workers,
				Isolate:      a.config.Validation.Isolate,
				MaxBodyBytes: a.config.Server.MaxBodyBytes,
			}, a.logger, monitoring.NewMetrics())
			return srv.Start()
		},
	}

	cmd.Flags().StringVar(&address, "address", config.Default().Server.Address, "listen address (overrides TSMCHECK_ADDRESS)")

	return cmd
}
