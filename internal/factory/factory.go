package factory

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/api"
	"github.com/mcoot/tictactoe-go/internal/config"
	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/dependencies/random"
	"github.com/mcoot/tictactoe-go/internal/dependencies/records"
	"github.com/mcoot/tictactoe-go/internal/observability"
	"github.com/mcoot/tictactoe-go/internal/services/game"
	"github.com/mcoot/tictactoe-go/internal/storage"
	"github.com/mcoot/tictactoe-go/internal/storage/memory"
	redisstorage "github.com/mcoot/tictactoe-go/internal/storage/redis"
	"github.com/mcoot/tictactoe-go/internal/transport/ws"
)

// App contains all wired application components
type App struct {
	Config config.Config
	Logger *zap.Logger

	// Shared state
	Storage storage.Storage
	Broker  storage.Broker

	// External dependencies
	Records records.Store
	Clock   clock.Clock
	Random  random.Random
	Metrics *observability.Metrics

	// Services
	GameController *game.Controller
	Hub            *ws.Hub
	Dispatcher     *ws.Dispatcher

	// Router serves every HTTP route of the process
	Router http.Handler
}

// New creates a new application with all dependencies wired
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, broker, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	recordStore := records.NewClient(cfg.Records.BaseURL, cfg.Records.Timeout)

	return newWithDependencies(cfg, store, broker, recordStore, clock.New(), random.New(), logger), nil
}

func newStorage(cfg config.Config, logger *zap.Logger) (storage.Storage, storage.Broker, error) {
	switch cfg.Storage.Type {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, games are not shared between processes")
		return memory.New(), memory.NewBroker(), nil
	case config.StorageRedis:
		store, err := redisstorage.New(redisstorage.Config{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxTxRetries: cfg.Redis.MaxTxRetries,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, store.Broker(logger), nil
	default:
		return nil, nil, fmt.Errorf("invalid storage type %q: must be %q or %q", cfg.Storage.Type, config.StorageMemory, config.StorageRedis)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	cfg config.Config,
	store storage.Storage,
	broker storage.Broker,
	recordStore records.Store,
	clk clock.Clock,
	rnd random.Random,
	logger *zap.Logger,
) *App {
	metrics := observability.NewMetrics()

	hub := ws.NewHub(clk, logger).WithMetrics(metrics)
	gameController := game.NewController(store, broker, recordStore, hub, rnd, logger).WithMetrics(metrics)
	dispatcher := ws.NewDispatcher(gameController, logger).WithMetrics(metrics)

	routerCfg := api.RouterConfig{
		Logger:      logger,
		Store:       store,
		Connections: hub,
		Games:       gameController,
		WebSocket:   ws.NewHandler(hub, dispatcher, cfg.Server.AllowedOrigin, logger),
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = metrics.Handler()
	}

	return &App{
		Config:         cfg,
		Logger:         logger,
		Storage:        store,
		Broker:         broker,
		Records:        recordStore,
		Clock:          clk,
		Random:         rnd,
		Metrics:        metrics,
		GameController: gameController,
		Hub:            hub,
		Dispatcher:     dispatcher,
		Router:         api.NewRouter(routerCfg),
	}
}

// ServerConfig returns the HTTP server settings of the app's config
func (a *App) ServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Host:            a.Config.Server.Host,
		Port:            a.Config.Server.Port,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}
}

// Close drops every connection and channel subscription, then closes the store
func (a *App) Close() error {
	a.Hub.CloseAll()
	err := a.GameController.Close()
	if closer, ok := a.Storage.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
