package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-go/internal/config"
	"github.com/mcoot/tictactoe-go/internal/model"
	redisstorage "github.com/mcoot/tictactoe-go/internal/storage/redis"
)

func newWatchCmd() *cobra.Command {
	var (
		redisURL string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "watch <game-id>",
		Short: "Stream a game's channel events from Redis",
		Long: `Subscribe to the game's Redis channel and print every event published on it
by any server process.

Events include:
  - PLAYER_JOINED: A client joined the game
  - GAME_START: Both players are in
  - GRID_MARKED: A player marked a cell
  - GAME_OVER: The game was won or drawn

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchGame(cmd, model.GameID(args[0]), redisURL, limit)
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis-url", config.NewViper().GetString("redis.url"), "Redis URL (env: TTT_REDIS_URL, REDISCLOUD_URL)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many events; 0 streams until interrupted")

	return cmd
}

func watchGame(cmd *cobra.Command, gameID model.GameID, redisURL string, limit int) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := NewOutput(cfg.Output, cmd.OutOrStdout())

	var (
		mu   sync.Mutex
		seen int
	)
	channel := redisstorage.NewBroker(rdb).Channel(gameID)
	defer func() { _ = channel.Close() }()

	err = channel.Subscribe(ctx, func(event model.Event) {
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && seen >= limit {
			return
		}
		out.Print(WatchedEvent{Time: time.Now(), Event: event})
		seen++
		if limit > 0 && seen >= limit {
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to game %s: %w", gameID, err)
	}

	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching game %s\n", gameID)
	}

	<-ctx.Done()
	return nil
}
