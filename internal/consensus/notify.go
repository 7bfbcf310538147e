// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package consensus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/models"
)

// TopicNotifier publishes room events to a broker topic. Downstream
// services (push gateways, analytics) subscribe there rather than
// coupling to this process.
type TopicNotifier struct {
	pub   message.Publisher
	topic string
}

// NewTopicNotifier wires a notifier over a publisher and topic name.
func NewTopicNotifier(pub message.Publisher, topic string) *TopicNotifier {
	return &TopicNotifier{pub: pub, topic: topic}
}

// Notify publishes the event as JSON with the room ID in metadata for
// broker-side filtering.
func (n *TopicNotifier) Notify(_ context.Context, event models.RoomEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return domain.Wrap(domain.KindTransient, "marshal room event", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("room_id", event.RoomID)
	msg.Metadata.Set("event_type", event.Type)
	return n.pub.Publish(n.topic, msg)
}
