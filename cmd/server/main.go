// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Reelswipe server: rooms of friends swipe through a shared movie
// catalog until every member says YES to the same title.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/reelswipe/reelswipe/internal/api"
	"github.com/reelswipe/reelswipe/internal/auth"
	"github.com/reelswipe/reelswipe/internal/catalog"
	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/consensus"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/pool"
	"github.com/reelswipe/reelswipe/internal/rooms"
	"github.com/reelswipe/reelswipe/internal/storage"
	"github.com/reelswipe/reelswipe/internal/supervisor"
	"github.com/reelswipe/reelswipe/internal/tmdb"
	"github.com/reelswipe/reelswipe/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting reelswipe")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, sub, closePubSub, err := newPubSub(cfg)
	if err != nil {
		return fmt.Errorf("initialize pub/sub: %w", err)
	}
	defer closePubSub()

	store, closeStore, err := openStore(cfg, pub)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	metadata := tmdb.New(cfg.TMDB)
	builder := pool.NewBuilder(store, metadata, cfg.Pool)
	cat := catalog.NewService(store, cfg.Rooms.BatchWindowSize, cfg.Pool.MoviesPerRoom)
	hub := websocket.NewHub()

	topicNotifier := consensus.NewTopicNotifier(pub, cfg.Rooms.MatchNotificationTopic)
	roomSvc := rooms.NewService(store, builder, cat, cfg.Rooms, cfg.Pool.MaxGenres, hub)
	sweeper := rooms.NewSweeper(roomSvc, cfg.Rooms.SweepInterval)

	feed := storage.NewFeed(sub, pub, store, storage.DefaultFeedConfig())
	pipeline := consensus.NewPipeline(store, feed, topicNotifier, hub)

	authn := auth.New(cfg.Security)
	handlers := api.NewHandlers(roomSvc, cat, metadata, hub, readiness(store))
	router := api.NewRouter(cfg.Security, authn, handlers)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddEngine(supervisor.RunFunc{Name: "websocket-hub", Run: hub.RunWithContext})
	tree.AddEngine(supervisor.RunFunc{Name: "consensus-pipeline", Run: pipeline.Run})
	tree.AddEngine(supervisor.RunFunc{Name: "room-sweeper", Run: sweeper.Run})
	tree.AddAPI(&supervisor.HTTPService{Server: httpServer})

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}

// openStore returns the configured store plus its close func.
func openStore(cfg *config.Config, pub message.Publisher) (storage.Store, func(), error) {
	if cfg.Storage.InMemory {
		logging.Info().Msg("Using in-memory store")
		return storage.NewMemoryStore(pub), func() {}, nil
	}
	db, err := storage.OpenBadger(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	logging.Info().Str("path", cfg.Storage.Path).Msg("Badger store opened")
	store := storage.NewBadgerStore(db, pub, cfg.Rooms.TTL)
	return store, func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Badger close failed")
		}
	}, nil
}

// readiness probes the store with a point read; NOT_FOUND still proves
// the store answers.
func readiness(store storage.Store) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := store.Get(ctx, "readyz:probe")
		if err != nil && domain.KindOf(err) != domain.KindNotFound {
			return err
		}
		return nil
	}
}
