package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tubechat/config"
	"tubechat/logging"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type commandContext struct {
	configFlag    string
	logLevelFlag  string
	logFormatFlag string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != "" {
			cfg.LogLevel = c.logLevelFlag
		}
		if c.logFormatFlag != "" {
			cfg.LogFormat = c.logFormatFlag
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}
	serve := newServeCommand(ctx)

	rootCmd := &cobra.Command{
		Use:           "tubechat",
		Short:         "Chat with YouTube videos through their captions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: serve.RunE,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (json, toml or yaml)")
	flags.StringVar(&ctx.logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&ctx.logFormatFlag, "log-format", "", "Log format: json, console or auto")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newNormalizeCommand(ctx))
	rootCmd.AddCommand(newChunkCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	return rootCmd
}
