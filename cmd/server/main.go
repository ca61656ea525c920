package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"campusid/internal/platform/config"
	"campusid/internal/platform/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the campusid CLI. Serving is the default action.
func newRootCmd() *cobra.Command {
	var (
		cfg *config.Config
		log *slog.Logger
	)
	root := &cobra.Command{
		Use:           "campusid",
		Short:         "University identity registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			cfg = loaded
			log = logger.New(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the identity HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportErr(log, "server stopped", serve(cmd.Context(), cfg, log))
		},
	}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportErr(log, "migration failed", migrate(cmd.Context(), cfg, log))
		},
	}
	root.RunE = serveCmd.RunE
	root.AddCommand(serveCmd, migrateCmd)
	return root
}

func reportErr(log *slog.Logger, msg string, err error) error {
	if err != nil {
		log.Error(msg, "error", err)
	}
	return err
}
