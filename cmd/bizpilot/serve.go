package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/bizpilot/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Open the database, apply migrations and serve the HTTP API until
interrupted. Shutdown waits for background correlation runs to finish.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		slog.Info("Waiting for background correlation to finish")
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close: %w", closeErr)
		}
	}()

	slog.Info("Starting bizpilot",
		"database", cfg.Database.Path,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model)

	srv := server.New(a.store, a.records, a.chat, version, slog.Default())
	return srv.Run(ctx, cfg.Server.Addr)
}
