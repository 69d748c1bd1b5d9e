package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tcserver/tcserver/internal/app"
	"github.com/tcserver/tcserver/internal/config"
	"github.com/tcserver/tcserver/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath     string
		port           int
		maxConnections int
	)

	cmd := &cobra.Command{
		Use:           "tcserver",
		Short:         "Multi-user line-oriented TCP chat server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := log.New("info")

			cfg, path, err := config.Load(bootstrap, configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("max-connections") {
				cfg.MaxConnections = maxConnections
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr()).Msg("starting tcserver")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().IntVar(&port, "port", config.Default().Port, "TCP listen port")
	cmd.Flags().IntVar(&maxConnections, "max-connections", config.Default().MaxConnections, "maximum simultaneous connections")

	return cmd
}
