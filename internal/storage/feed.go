// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
)

// cursorRecord is the persisted position of one feed consumer.
type cursorRecord struct {
	Seq uint64 `json:"seq"`
}

// FeedConfig tunes the per-consumer router built by Subscribe.
type FeedConfig struct {
	// RetryMaxRetries bounds in-process retries of transient handler
	// failures before the message is nacked back to the broker.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonTopic receives mutations whose handler failed permanently.
	PoisonTopic string
}

// DefaultFeedConfig returns the retry and poison-queue settings used in
// production.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		RetryMaxRetries:      5,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		RetryMultiplier:      2.0,
		PoisonTopic:          "storage.mutations.poison",
	}
}

// Feed implements ChangeFeed on a Watermill router. Each Subscribe call
// runs its own router with recovery, transient retry, and a poison queue:
// transient handler errors back off and redeliver without advancing the
// cursor, permanent ones are routed to the poison topic and skipped. The
// cursor is persisted in the store after each handled mutation; a crash
// between handling and persisting replays the mutation, which every
// consumer in this system tolerates.
type Feed struct {
	sub   message.Subscriber
	pub   message.Publisher // poison sink; nil drops poisoned mutations after logging
	store Store
	cfg   FeedConfig
}

// NewFeed builds a change feed over sub, persisting cursors in store.
// Poisoned mutations are published via pub when it is non-nil.
func NewFeed(sub message.Subscriber, pub message.Publisher, store Store, cfg FeedConfig) *Feed {
	return &Feed{sub: sub, pub: pub, store: store, cfg: cfg}
}

func (f *Feed) Subscribe(ctx context.Context, consumer, prefix string, handler FeedHandler) error {
	cursor, err := f.loadCursor(ctx, consumer)
	if err != nil {
		return err
	}

	wmLogger := logging.NewWatermillAdapter()
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return domain.Wrap(domain.KindTransient, "build feed router", err)
	}

	// Middleware order matters: a permanent failure is poisoned before the
	// retry layer ever sees it, a transient one is retried with backoff and
	// finally nacked for broker-level redelivery.
	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      f.cfg.RetryMaxRetries,
		InitialInterval: f.cfg.RetryInitialInterval,
		MaxInterval:     f.cfg.RetryMaxInterval,
		Multiplier:      f.cfg.RetryMultiplier,
		Logger:          wmLogger,
	}.Middleware)
	if f.pub != nil {
		poison, err := middleware.PoisonQueueWithFilter(f.pub, f.cfg.PoisonTopic, func(err error) bool {
			return !redeliverable(err)
		})
		if err != nil {
			return domain.Wrap(domain.KindTransient, "build poison queue", err)
		}
		router.AddMiddleware(poison)
	}

	router.AddConsumerHandler(
		"feed-"+consumer,
		MutationTopic(prefix),
		f.sub,
		func(msg *message.Message) error {
			var m Mutation
			if err := json.Unmarshal(msg.Payload, &m); err != nil {
				return f.poisoned(consumer, "", domain.Wrap(domain.KindValidation, "malformed mutation record", err))
			}
			if m.Seq != 0 && m.Seq <= cursor {
				return nil // already processed before the last cursor save
			}
			if err := handler(msg.Context(), m); err != nil {
				if redeliverable(err) {
					return err
				}
				return f.poisoned(consumer, m.Key, err)
			}
			cursor = m.Seq
			f.saveCursor(msg.Context(), consumer, cursor)
			return nil
		},
	)

	if err := router.Run(ctx); err != nil {
		return domain.Wrap(domain.KindTransient, "run feed router", err)
	}
	return ctx.Err()
}

// redeliverable reports whether the handler failure should be retried
// and eventually nacked. Feed handlers are idempotent, so TIMEOUT is
// safe to redeliver alongside TRANSIENT.
func redeliverable(err error) bool {
	k := domain.KindOf(err)
	return k == domain.KindTransient || k == domain.KindTimeout
}

// poisoned logs a permanently failed mutation and, when no poison
// publisher is configured, swallows the error so the message is acked
// instead of redelivered forever.
func (f *Feed) poisoned(consumer, key string, err error) error {
	logging.Error().Err(err).Str("key", key).Str("consumer", consumer).Msg("Poisoned mutation")
	if f.pub == nil {
		return nil
	}
	return err
}

func (f *Feed) loadCursor(ctx context.Context, consumer string) (uint64, error) {
	data, err := f.store.Get(ctx, CursorKey(consumer))
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var c cursorRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return 0, nil // unreadable cursor restarts from the beginning
	}
	return c.Seq, nil
}

// saveCursor is best effort; a lost save only widens the replay window.
func (f *Feed) saveCursor(ctx context.Context, consumer string, seq uint64) {
	data, err := json.Marshal(cursorRecord{Seq: seq})
	if err != nil {
		return
	}
	if err := f.store.PutConditional(ctx, CursorKey(consumer), data, Unconditional()); err != nil {
		logging.Warn().Err(err).Str("consumer", consumer).Msg("Persist feed cursor")
	}
}
