package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credit-service/internal/app"
	"credit-service/internal/config"
	"credit-service/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "credit-service",
		Short:         "Session, profile and credit ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := bootstrap()
				if err != nil {
					return err
				}
				defer logger.Sync()

				return app.MigrateOnly(cmd.Context(), cfg)
			},
		},
	)

	return root
}

func bootstrap() (config.Config, error) {
	cfg := config.Load()

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", map[string]any{"error": err})
		return cfg, err
	}

	return cfg, nil
}

func serve(parent context.Context) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(
		parent,
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err,
		})
	}

	go func() {
		if err := application.Run(); err != nil {
			logger.Fatal("http server failed", map[string]any{
				"error": err,
			})
		}
	}()

	logger.Info("credit-service started", map[string]any{
		"port": cfg.AppPort,
	})

	<-ctx.Done() // wait for Ctrl+C

	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]any{
			"error": err,
		})
		return err
	}

	logger.Info("credit-service stopped cleanly", nil)
	return nil
}
