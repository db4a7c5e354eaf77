// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/metrics"
)

// Bus fans published events out to every subscriber of a scenario.
//
// Delivery is best-effort and at most once: there is no retry or backlog, and
// a subscriber whose Send fails is terminated while the rest still receive the
// event. Publish never blocks on a slow client.
type Bus struct {
	registry *Registry
}

// NewBus creates a bus over registry.
func NewBus(registry *Registry) *Bus {
	return &Bus{registry: registry}
}

// Publish delivers ev to the current subscribers of scenarioID in admission
// order and returns how many accepted it. A scenario nobody watches is a no-op.
func (b *Bus) Publish(scenarioID string, ev Event) int {
	subs := b.registry.Subscribers(scenarioID)
	metrics.RecordPublish(publishLabel(ev), len(subs))
	if len(subs) == 0 {
		return 0
	}

	msg, err := NewMessage(ev)
	if err != nil {
		logging.Error().Err(err).
			Str("scenario_id", scenarioID).
			Str("event", ev.EventName()).
			Msg("dropping event that could not be encoded")
		return 0
	}

	return b.fanOut(scenarioID, subs, msg)
}

// PublishRaw publishes an event whose name is outside the typed set.
func (b *Bus) PublishRaw(scenarioID, name string, payload json.RawMessage) int {
	return b.Publish(scenarioID, RawEvent{Name: name, Payload: payload})
}

// publishLabel is the metric label for ev. Producer-defined names share one
// label; only the typed variants get their own series.
func publishLabel(ev Event) string {
	if _, raw := ev.(RawEvent); raw {
		return metrics.EventOther
	}
	return ev.EventName()
}

func (b *Bus) fanOut(scenarioID string, subs []Subscriber, msg *Message) int {
	delivered := 0
	for _, sub := range subs {
		if err := sub.Send(msg); err != nil {
			metrics.RecordSendFailure(string(sub.Transport()))
			logging.Debug().Err(err).
				Str("conn_id", sub.ID()).
				Str("scenario_id", scenarioID).
				Str("event", msg.Name()).
				Msg("send failed, terminating subscriber")
			b.registry.Terminate(sub, CloseInternalError, "send failed")
			continue
		}
		metrics.RecordDelivery(string(sub.Transport()))
		delivered++
	}
	return delivered
}
