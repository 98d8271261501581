package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tubechat/config"
	"tubechat/initialization"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if port > 0 {
				cfg.Port = port
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				logger.Warn("configuration incomplete", "error", err)
				config.PrintInstructions(os.Stderr)
			}

			initializer := initialization.NewSystemInitializer(cfg, logger)
			sys, err := initializer.InitializeSystem(signalCtx)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer func() {
				if err := initializer.Cleanup(); err != nil {
					logger.Warn("cleanup", "error", err)
				}
			}()

			errCh := make(chan error, 1)
			go func() { errCh <- sys.Server.ListenAndServe(cfg.Addr()) }()

			select {
			case err := <-errCh:
				return err
			case <-signalCtx.Done():
			}

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			if err := sys.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("tubechat stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}
