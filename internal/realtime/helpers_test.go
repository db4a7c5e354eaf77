// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/tomtom215/rolestage/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
	os.Exit(m.Run())
}

// fakeSubscriber records deliveries and closes for assertions.
type fakeSubscriber struct {
	Identity

	mu       sync.Mutex
	messages []*Message
	failSend bool
	closed   bool
	code     int
	reason   string
	closes   int
}

func (f *fakeSubscriber) Send(msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("boom")
	}
	if f.closed {
		return ErrSubscriberClosed
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSubscriber) Close(code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closed {
		return
	}
	f.closed = true
	f.code = code
	f.reason = reason
}

func (f *fakeSubscriber) received() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Message(nil), f.messages...)
}

func (f *fakeSubscriber) closeCode() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code, f.closed
}

// fakeHeartbeater is a fakeSubscriber that takes part in heartbeat sweeps.
type fakeHeartbeater struct {
	fakeSubscriber

	alive   bool
	pings   int
	pingErr error
}

func (f *fakeHeartbeater) ResetAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.alive
	f.alive = false
	return was
}

func (f *fakeHeartbeater) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeHeartbeater) pong() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = true
}

// admitFake admits a fakeSubscriber and fails the test on error.
func admitFake(t *testing.T, r *Registry, scenarioID, userID, ip string) *fakeSubscriber {
	t.Helper()
	var fake *fakeSubscriber
	_, err := r.Admit(scenarioID, userID, ip, TransportSSE, func(id Identity) Subscriber {
		fake = &fakeSubscriber{Identity: id}
		return fake
	})
	if err != nil {
		t.Fatalf("Admit(%s, %s, %s) failed: %v", scenarioID, userID, ip, err)
	}
	return fake
}

// admitHeartbeater admits a fakeHeartbeater with alive set.
func admitHeartbeater(t *testing.T, r *Registry, scenarioID, userID string) *fakeHeartbeater {
	t.Helper()
	var fake *fakeHeartbeater
	_, err := r.Admit(scenarioID, userID, "10.0.0.1", TransportWebSocket, func(id Identity) Subscriber {
		fake = &fakeHeartbeater{fakeSubscriber: fakeSubscriber{Identity: id}, alive: true}
		return fake
	})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	return fake
}

// recordingPublisher captures what the gate publishes.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	scenarioID string
	event      Event
}

func (p *recordingPublisher) Publish(scenarioID string, ev Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{scenarioID: scenarioID, event: ev})
	return 1
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
