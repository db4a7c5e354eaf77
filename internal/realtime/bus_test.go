// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/rolestage/internal/metrics"
)

func TestBus_PublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus(NewRegistry(Limits{}))
	if n := bus.Publish("empty", PostCreated{PostID: "p1", ScenarioID: "empty", ProfileID: "pr"}); n != 0 {
		t.Errorf("Publish = %d, want 0", n)
	}
}

func TestBus_PublishIsolatesScenarios(t *testing.T) {
	r := NewRegistry(Limits{})
	bus := NewBus(r)

	a := admitFake(t, r, "s1", "u1", "ip")
	b := admitFake(t, r, "s1", "u2", "ip")
	c := admitFake(t, r, "s2", "u3", "ip")

	n := bus.Publish("s1", PostCreated{PostID: "p1", ScenarioID: "s1", ProfileID: "pr1"})
	if n != 2 {
		t.Errorf("Publish delivered %d, want 2", n)
	}

	for _, sub := range []*fakeSubscriber{a, b} {
		msgs := sub.received()
		if len(msgs) != 1 || msgs[0].Name() != EventPostCreated {
			t.Errorf("subscriber %s received %v, want one post.created", sub.UserID(), msgs)
		}
	}
	if got := c.received(); len(got) != 0 {
		t.Errorf("subscriber in s2 received %d messages, want 0", len(got))
	}
}

func TestBus_FailedSendTerminatesOnlyThatSubscriber(t *testing.T) {
	r := NewRegistry(Limits{})
	bus := NewBus(r)

	first := admitFake(t, r, "s1", "u1", "ip")
	bad := admitFake(t, r, "s1", "u2", "ip")
	last := admitFake(t, r, "s1", "u3", "ip")
	bad.failSend = true

	n := bus.Publish("s1", MessageCreated{MessageID: "m1", ConversationID: "c1", SenderProfileID: "pr"})
	if n != 2 {
		t.Errorf("Publish delivered %d, want 2", n)
	}
	if len(first.received()) != 1 || len(last.received()) != 1 {
		t.Error("healthy subscribers must still receive the event")
	}
	if code, closed := bad.closeCode(); !closed || code != CloseInternalError {
		t.Errorf("failing subscriber close = (%d, %v), want (1011, true)", code, closed)
	}
	if got := r.CountScenario("s1"); got != 2 {
		t.Errorf("CountScenario = %d, want 2 after removing failing subscriber", got)
	}
}

func TestBus_SameMessageSharedAcrossSubscribers(t *testing.T) {
	r := NewRegistry(Limits{})
	bus := NewBus(r)
	a := admitFake(t, r, "s1", "u1", "ip")
	b := admitFake(t, r, "s1", "u2", "ip")

	bus.Publish("s1", ConversationCreated{ConversationID: "c1", ParticipantProfileIDs: []string{"a", "b"}})

	if a.received()[0] != b.received()[0] {
		t.Error("expected a single encoded Message shared by every subscriber")
	}
}

func TestBus_PublishRaw(t *testing.T) {
	r := NewRegistry(Limits{})
	bus := NewBus(r)
	sub := admitFake(t, r, "s1", "u1", "ip")

	bus.PublishRaw("s1", "scenario.updated", json.RawMessage(`{ "name": "Heist" }`))

	msgs := sub.received()
	if len(msgs) != 1 {
		t.Fatalf("received %d messages, want 1", len(msgs))
	}
	want := `{"event":"scenario.updated","payload":{"name":"Heist"}}`
	if got := string(msgs[0].WebSocketFrame()); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
}

func TestBus_PublishRawInvalidJSONDropped(t *testing.T) {
	r := NewRegistry(Limits{})
	bus := NewBus(r)
	sub := admitFake(t, r, "s1", "u1", "ip")

	if n := bus.PublishRaw("s1", "broken", json.RawMessage(`{not json`)); n != 0 {
		t.Errorf("PublishRaw = %d, want 0", n)
	}
	if len(sub.received()) != 0 {
		t.Error("invalid payload must not be delivered")
	}
	if _, closed := sub.closeCode(); closed {
		t.Error("encoding failure must not terminate subscribers")
	}
}

func TestBus_RawEventNamesShareOneMetricLabel(t *testing.T) {
	bus := NewBus(NewRegistry(Limits{}))
	other := metrics.RealtimeEventsPublished.WithLabelValues(metrics.EventOther)
	before := testutil.ToFloat64(other)
	series := testutil.CollectAndCount(metrics.RealtimeEventsPublished)

	for i := 0; i < 5; i++ {
		bus.PublishRaw("nobody-watching", fmt.Sprintf("custom.event%d", i), json.RawMessage(`{}`))
	}

	if got := testutil.ToFloat64(other) - before; got != 5 {
		t.Errorf("other counter grew by %v, want 5", got)
	}
	if got := testutil.CollectAndCount(metrics.RealtimeEventsPublished); got != series {
		t.Errorf("events_published series = %d, want %d (no new label per event name)", got, series)
	}
}

func TestPublishLabel(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{PostCreated{}, EventPostCreated},
		{Typing{}, EventTyping},
		{RawEvent{Name: "scenario.updated"}, metrics.EventOther},
	}
	for _, tt := range tests {
		if got := publishLabel(tt.ev); got != tt.want {
			t.Errorf("publishLabel(%T) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}
