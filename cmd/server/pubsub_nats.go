// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

//go:build nats

package main

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/logging"
)

// newPubSub wires JetStream-backed pub/sub when NATS is enabled,
// optionally starting an embedded server first. With NATS disabled the
// in-process go-channel pub/sub is used even in nats builds.
func newPubSub(cfg *config.Config) (message.Publisher, message.Subscriber, func(), error) {
	if !cfg.NATS.Enabled {
		pubsub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 1024,
		}, logging.NewWatermillAdapter())
		return pubsub, pubsub, func() {
			if err := pubsub.Close(); err != nil {
				logging.Error().Err(err).Msg("Pub/sub close failed")
			}
		}, nil
	}

	var (
		natsURL  = cfg.NATS.URL
		embedded *server.Server
	)
	if cfg.NATS.EmbeddedServer {
		ns, err := startEmbeddedServer(cfg.NATS)
		if err != nil {
			return nil, nil, nil, err
		}
		embedded = ns
		natsURL = ns.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	wmLogger := logging.NewWatermillAdapter()

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, wmLogger)
	if err != nil {
		shutdownEmbedded(embedded)
		return nil, nil, nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:              natsURL,
		QueueGroupPrefix: "reelswipe",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			AckAsync:      false,
			DurablePrefix: "reelswipe",
		},
	}, wmLogger)
	if err != nil {
		if cerr := pub.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("Publisher close failed")
		}
		shutdownEmbedded(embedded)
		return nil, nil, nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	closeFn := func() {
		if err := sub.Close(); err != nil {
			logging.Error().Err(err).Msg("Subscriber close failed")
		}
		if err := pub.Close(); err != nil {
			logging.Error().Err(err).Msg("Publisher close failed")
		}
		shutdownEmbedded(embedded)
	}
	return pub, sub, closeFn, nil
}

func startEmbeddedServer(cfg config.NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName: "reelswipe-events",
		Host:       "127.0.0.1",
		Port:       4222,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		MaxPayload: 1024 * 1024,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()
	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}
	return ns, nil
}

func shutdownEmbedded(ns *server.Server) {
	if ns == nil {
		return
	}
	ns.Shutdown()
	ns.WaitForShutdown()
	logging.Info().Msg("Embedded NATS server stopped")
}
