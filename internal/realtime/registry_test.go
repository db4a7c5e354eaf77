// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_AdmitIndexesAllDimensions(t *testing.T) {
	r := NewRegistry(Limits{})
	sub := admitFake(t, r, "s1", "u1", "1.1.1.1")

	if sub.ID() == "" {
		t.Fatal("expected subscriber ID to be assigned")
	}
	if got := r.CountScenario("s1"); got != 1 {
		t.Errorf("CountScenario = %d, want 1", got)
	}
	if got := r.CountUser("u1"); got != 1 {
		t.Errorf("CountUser = %d, want 1", got)
	}
	if got := r.CountIP("1.1.1.1"); got != 1 {
		t.Errorf("CountIP = %d, want 1", got)
	}
	if got := r.Count(); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
}

func TestRegistry_AdmitSequenceIncreases(t *testing.T) {
	r := NewRegistry(Limits{})
	a := admitFake(t, r, "s1", "u1", "ip")
	b := admitFake(t, r, "s1", "u2", "ip")
	if b.Seq() <= a.Seq() {
		t.Errorf("expected increasing sequence, got %d then %d", a.Seq(), b.Seq())
	}
}

func TestRegistry_CapacityDimensions(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		first   [3]string // scenario, user, ip
		second  [3]string
		wantDim Dimension
	}{
		{
			name:    "scenario full",
			limits:  Limits{PerScenario: 1, PerIP: 10, PerUser: 10},
			first:   [3]string{"s1", "u1", "ip1"},
			second:  [3]string{"s1", "u2", "ip2"},
			wantDim: DimensionScenario,
		},
		{
			name:    "ip full",
			limits:  Limits{PerScenario: 10, PerIP: 1, PerUser: 10},
			first:   [3]string{"s1", "u1", "ip1"},
			second:  [3]string{"s2", "u2", "ip1"},
			wantDim: DimensionIP,
		},
		{
			name:    "user full",
			limits:  Limits{PerScenario: 10, PerIP: 10, PerUser: 1},
			first:   [3]string{"s1", "u1", "ip1"},
			second:  [3]string{"s2", "u1", "ip2"},
			wantDim: DimensionUser,
		},
		{
			name:    "scenario checked before ip and user",
			limits:  Limits{PerScenario: 1, PerIP: 1, PerUser: 1},
			first:   [3]string{"s1", "u1", "ip1"},
			second:  [3]string{"s1", "u1", "ip1"},
			wantDim: DimensionScenario,
		},
		{
			name:    "ip checked before user",
			limits:  Limits{PerScenario: 10, PerIP: 1, PerUser: 1},
			first:   [3]string{"s1", "u1", "ip1"},
			second:  [3]string{"s2", "u1", "ip1"},
			wantDim: DimensionIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.limits)
			admitFake(t, r, tt.first[0], tt.first[1], tt.first[2])

			built := false
			_, err := r.Admit(tt.second[0], tt.second[1], tt.second[2], TransportWebSocket, func(id Identity) Subscriber {
				built = true
				return &fakeSubscriber{Identity: id}
			})

			capErr, ok := IsCapacityError(err)
			if !ok {
				t.Fatalf("expected CapacityError, got %v", err)
			}
			if capErr.Dimension != tt.wantDim {
				t.Errorf("Dimension = %s, want %s", capErr.Dimension, tt.wantDim)
			}
			if built {
				t.Error("subscriber must not be built when admission is rejected")
			}
			if got := r.Count(); got != 1 {
				t.Errorf("Count = %d, want 1 (no partial admission)", got)
			}
		})
	}
}

func TestRegistry_AdmitAtLimitSucceeds(t *testing.T) {
	r := NewRegistry(Limits{PerScenario: 3})
	for i := 0; i < 3; i++ {
		admitFake(t, r, "s1", fmt.Sprintf("u%d", i), fmt.Sprintf("ip%d", i))
	}
	_, err := r.Admit("s1", "u9", "ip9", TransportSSE, func(id Identity) Subscriber {
		return &fakeSubscriber{Identity: id}
	})
	if _, ok := IsCapacityError(err); !ok {
		t.Fatalf("fourth admission: expected CapacityError, got %v", err)
	}
}

func TestRegistry_RemovePrunesEmptySets(t *testing.T) {
	r := NewRegistry(Limits{})
	a := admitFake(t, r, "s1", "u1", "ip1")
	b := admitFake(t, r, "s1", "u2", "ip1")

	if !r.Remove(a) {
		t.Fatal("Remove returned false for admitted subscriber")
	}
	if s := r.Stats(); s.Scenarios != 1 || s.Users != 1 || s.ClientIPs != 1 {
		t.Errorf("index slots after first remove = %d,%d,%d; want 1,1,1", s.Scenarios, s.Users, s.ClientIPs)
	}

	r.Remove(b)
	if s := r.Stats(); s.Scenarios != 0 || s.Users != 0 || s.ClientIPs != 0 {
		t.Errorf("index slots after removing all = %d,%d,%d; want 0,0,0", s.Scenarios, s.Users, s.ClientIPs)
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(Limits{})
	a := admitFake(t, r, "s1", "u1", "ip1")

	if !r.Remove(a) {
		t.Fatal("first Remove returned false")
	}
	if r.Remove(a) {
		t.Error("second Remove returned true")
	}
	if got := r.Count(); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
}

func TestRegistry_RemoveFreesCapacity(t *testing.T) {
	r := NewRegistry(Limits{PerUser: 1})
	a := admitFake(t, r, "s1", "u1", "ip1")
	r.Remove(a)
	admitFake(t, r, "s1", "u1", "ip1")
}

func TestRegistry_TerminateRemovesAndCloses(t *testing.T) {
	r := NewRegistry(Limits{})
	a := admitFake(t, r, "s1", "u1", "ip1")

	r.Terminate(a, CloseTryAgainLater, "rate limit exceeded")
	r.Terminate(a, CloseInternalError, "again")

	code, closed := a.closeCode()
	if !closed || code != CloseTryAgainLater {
		t.Errorf("close = (%d, %v), want (%d, true)", code, closed, CloseTryAgainLater)
	}
	if r.CountScenario("s1") != 0 {
		t.Error("terminated subscriber still indexed")
	}
}

func TestRegistry_SubscribersSnapshot(t *testing.T) {
	r := NewRegistry(Limits{})
	if subs := r.Subscribers("nobody"); subs != nil {
		t.Errorf("expected nil for empty scenario, got %v", subs)
	}

	var want []string
	for i := 0; i < 5; i++ {
		sub := admitFake(t, r, "s1", fmt.Sprintf("u%d", i), "ip")
		want = append(want, sub.ID())
	}
	admitFake(t, r, "s2", "other", "ip")

	subs := r.Subscribers("s1")
	if len(subs) != len(want) {
		t.Fatalf("got %d subscribers, want %d", len(subs), len(want))
	}
	for i, sub := range subs {
		if sub.ID() != want[i] {
			t.Errorf("subscriber %d = %s, want %s (admission order)", i, sub.ID(), want[i])
		}
	}
}

func TestRegistry_HeartbeatersOnlyWebSocket(t *testing.T) {
	r := NewRegistry(Limits{})
	admitFake(t, r, "s1", "u1", "ip")
	hb := admitHeartbeater(t, r, "s1", "u2")

	got := r.Heartbeaters()
	if len(got) != 1 || got[0].ID() != hb.ID() {
		t.Errorf("Heartbeaters = %v, want only %s", got, hb.ID())
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(Limits{})
	admitFake(t, r, "s1", "u1", "ip")
	admitFake(t, r, "s2", "u1", "ip")
	admitHeartbeater(t, r, "s2", "u2")

	stats := r.Stats()
	if stats.Connections != 3 || stats.Scenarios != 2 {
		t.Errorf("Stats = %+v, want 3 connections in 2 scenarios", stats)
	}
	if stats.ByTransport["sse"] != 2 || stats.ByTransport["websocket"] != 1 {
		t.Errorf("ByTransport = %v", stats.ByTransport)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(Limits{})
	a := admitFake(t, r, "s1", "u1", "ip")
	b := admitFake(t, r, "s2", "u2", "ip")

	if n := r.CloseAll(CloseGoingAway, "server shutting down"); n != 2 {
		t.Errorf("CloseAll = %d, want 2", n)
	}
	for _, sub := range []*fakeSubscriber{a, b} {
		if code, closed := sub.closeCode(); !closed || code != CloseGoingAway {
			t.Errorf("subscriber %s close = (%d, %v), want 1001", sub.ID(), code, closed)
		}
	}
	if !r.Stats().Closed {
		t.Error("Stats().Closed = false after CloseAll")
	}

	_, err := r.Admit("s1", "u1", "ip", TransportSSE, func(id Identity) Subscriber {
		return &fakeSubscriber{Identity: id}
	})
	if !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Admit after CloseAll: got %v, want ErrRegistryClosed", err)
	}
}

func TestRegistry_ConcurrentAdmitRemove(t *testing.T) {
	r := NewRegistry(Limits{PerScenario: 1000, PerIP: 1000, PerUser: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := r.Admit("s1", fmt.Sprintf("u%d", i%5), "ip", TransportSSE, func(id Identity) Subscriber {
				return &fakeSubscriber{Identity: id}
			})
			if err != nil {
				t.Errorf("Admit: %v", err)
				return
			}
			_ = r.Subscribers("s1")
			r.Remove(sub)
		}(i)
	}
	wg.Wait()

	if got := r.Count(); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
	if s := r.Stats(); s.Scenarios+s.Users+s.ClientIPs != 0 {
		t.Errorf("index slots leaked: %d,%d,%d", s.Scenarios, s.Users, s.ClientIPs)
	}
}

func TestCapacityError_Message(t *testing.T) {
	err := fmt.Errorf("admit: %w", &CapacityError{Dimension: DimensionIP, Limit: 50})
	capErr, ok := IsCapacityError(err)
	if !ok {
		t.Fatal("IsCapacityError should unwrap")
	}
	if capErr.Limit != 50 {
		t.Errorf("Limit = %d", capErr.Limit)
	}
	if want := "realtime: ip connection limit reached (50)"; capErr.Error() != want {
		t.Errorf("Error() = %q, want %q", capErr.Error(), want)
	}
	if _, ok := IsCapacityError(errors.New("other")); ok {
		t.Error("IsCapacityError matched an unrelated error")
	}
}
