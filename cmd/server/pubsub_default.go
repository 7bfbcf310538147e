// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

//go:build !nats

package main

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/logging"
)

// newPubSub returns the in-process go-channel pub/sub. Builds without
// the nats tag always use it; durable cross-restart delivery needs the
// JetStream build.
func newPubSub(cfg *config.Config) (message.Publisher, message.Subscriber, func(), error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("NATS_ENABLED is set but this binary was built without the nats tag; using in-process pub/sub")
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 1024,
	}, logging.NewWatermillAdapter())
	closeFn := func() {
		if err := pubsub.Close(); err != nil {
			logging.Error().Err(err).Msg("Pub/sub close failed")
		}
	}
	return pubsub, pubsub, closeFn, nil
}
