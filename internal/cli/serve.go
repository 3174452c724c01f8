package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/api"
	"github.com/mcoot/tictactoe-go/internal/config"
	"github.com/mcoot/tictactoe-go/internal/factory"
	"github.com/mcoot/tictactoe-go/internal/observability"
)

func newServeCmd() *cobra.Command {
	var configPath string
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Long: `Run a game server process. Any number of processes may share one Redis;
players connected to different processes play each other through it.

Settings come from flags, then TTT_* environment variables, then the
optional config file. PORT, PROD_CLIENT_URL and REDISCLOUD_URL are honoured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				v.SetConfigFile(configPath)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config file: %w", err)
				}
			}
			appCfg, err := config.LoadFromViper(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), appCfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.Int("port", 0, "Listen port")
	flags.String("allowed-origin", "", "Origin accepted on websocket handshakes, * for any")
	flags.String("storage", "", "Storage backend: redis or memory")
	flags.String("redis-url", "", "Redis URL")
	flags.String("records-url", "", "Record service base URL")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: json or console")

	for key, flag := range map[string]string{
		"server.port":           "port",
		"server.allowed_origin": "allowed-origin",
		"storage.type":          "storage",
		"redis.url":             "redis-url",
		"records.base_url":      "records-url",
		"logging.level":         "log-level",
		"logging.format":        "log-format",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func serve(ctx context.Context, appCfg config.Config) error {
	logger, err := observability.NewLogger(appCfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := factory.New(appCfg, logger)
	if err != nil {
		logger.Error("failed to create application", zap.Error(err))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("error releasing resources", zap.Error(err))
		}
	}()

	server := api.NewServer(app.Router, app.ServerConfig(), logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		zap.String("addr", server.Addr()),
		zap.String("storage", appCfg.Storage.Type),
	)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", zap.Error(err))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}
