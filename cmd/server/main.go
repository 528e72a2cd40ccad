package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/demo/internal/config"
	applog "github.com/example/demo/internal/platform/logging"
	"github.com/example/demo/internal/server"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

func main() {
	code := 0
	if err := newRootCommand().Execute(); err != nil {
		applog.LogError(context.Background(), "server failed", err)
		code = 1
	}
	if err := applog.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "logger sync error: %v\n", err)
	}
	os.Exit(code)
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the greeting at GET /home",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applog.Err(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "logger init error: %v\n", err)
			}
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applog.SetLevel(cfg.LogLevel); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// run serves until ctx is cancelled or the server fails, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config) error {
	h, err := server.Start(ctx, cfg, Version)
	if err != nil {
		return err
	}

	var serveErr error
	select {
	case serveErr = <-h.Err():
		applog.LogError(ctx, "serve failed", serveErr)
	case <-ctx.Done():
		applog.LogInfo(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
	}
	applog.LogInfo(shutdownCtx, "server exited", zap.String("addr", h.Addr().String()))
	return serveErr
}
