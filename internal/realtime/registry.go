// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/metrics"
)

// Limits bounds how many subscribers a scenario, user or client IP may hold.
// Zero means unlimited.
type Limits struct {
	PerScenario int
	PerIP       int
	PerUser     int
}

// subscriberSet holds the subscribers of one index slot, keyed by subscriber ID.
type subscriberSet map[string]Subscriber

// Registry is the only owner of connection state. It indexes every admitted
// subscriber by scenario, user and client IP.
//
// A subscriber is present in exactly one slot of each index while admitted and
// in none after Remove. All three indices change together under mu; empty
// slots are pruned so churned scenarios, users and IPs do not accumulate.
type Registry struct {
	mu     sync.Mutex
	limits Limits

	byScenario map[string]subscriberSet
	byUser     map[string]subscriberSet
	byIP       map[string]subscriberSet

	// DETERMINISM: admission sequence, used to order fan-out and shutdown.
	seq    uint64
	closed bool
}

// NewRegistry creates an empty registry enforcing limits.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		limits:     limits,
		byScenario: make(map[string]subscriberSet),
		byUser:     make(map[string]subscriberSet),
		byIP:       make(map[string]subscriberSet),
	}
}

// Limits returns the configured admission limits.
func (r *Registry) Limits() Limits {
	return r.limits
}

// Admit checks scenario, IP and user capacity in that order and, when all
// pass, builds the subscriber with build and indexes it. A *CapacityError
// names the first exhausted dimension; nothing is indexed in that case.
func (r *Registry) Admit(scenarioID, userID, clientIP string, transport Transport, build SubscriberFactory) (Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	checks := []struct {
		dim   Dimension
		set   subscriberSet
		limit int
	}{
		{DimensionScenario, r.byScenario[scenarioID], r.limits.PerScenario},
		{DimensionIP, r.byIP[clientIP], r.limits.PerIP},
		{DimensionUser, r.byUser[userID], r.limits.PerUser},
	}
	for _, c := range checks {
		if c.limit > 0 && len(c.set) >= c.limit {
			metrics.RecordAdmissionRejected(string(c.dim))
			return nil, &CapacityError{Dimension: c.dim, Limit: c.limit}
		}
	}

	r.seq++
	sub := build(Identity{
		id:         uuid.NewString(),
		seq:        r.seq,
		transport:  transport,
		scenarioID: scenarioID,
		userID:     userID,
		clientIP:   clientIP,
	})

	addTo(r.byScenario, scenarioID, sub)
	addTo(r.byUser, userID, sub)
	addTo(r.byIP, clientIP, sub)

	metrics.RecordConnectionOpened(string(transport))
	logging.Debug().
		Str("conn_id", sub.ID()).
		Str("transport", string(transport)).
		Str("scenario_id", scenarioID).
		Str("user_id", userID).
		Int("scenario_connections", len(r.byScenario[scenarioID])).
		Msg("subscriber admitted")

	return sub, nil
}

// Remove deletes sub from all three indices. It reports whether sub was
// present; calling it again for the same subscriber is a no-op.
func (r *Registry) Remove(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(sub)
}

func (r *Registry) removeLocked(sub Subscriber) bool {
	set, ok := r.byScenario[sub.ScenarioID()]
	if !ok {
		return false
	}
	if _, ok := set[sub.ID()]; !ok {
		return false
	}

	removeFrom(r.byScenario, sub.ScenarioID(), sub.ID())
	removeFrom(r.byUser, sub.UserID(), sub.ID())
	removeFrom(r.byIP, sub.ClientIP(), sub.ID())

	metrics.RecordConnectionClosed(string(sub.Transport()))
	logging.Debug().
		Str("conn_id", sub.ID()).
		Str("transport", string(sub.Transport())).
		Str("scenario_id", sub.ScenarioID()).
		Msg("subscriber removed")
	return true
}

// Terminate is the single exit path for a connection: it removes sub from the
// indices and closes it with code. Every terminal condition (write failure,
// read error, heartbeat timeout, rate limit) goes through here.
func (r *Registry) Terminate(sub Subscriber, code int, reason string) bool {
	removed := r.Remove(sub)
	sub.Close(code, reason)
	return removed
}

// Subscribers returns a snapshot of a scenario's subscribers in admission
// order. It returns nil, without allocating, when the scenario has none.
func (r *Registry) Subscribers(scenarioID string) []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byScenario[scenarioID]
	if len(set) == 0 {
		return nil
	}
	return sortedSnapshot(set)
}

// Heartbeaters returns every admitted subscriber that takes part in the
// heartbeat sweep, in admission order.
func (r *Registry) Heartbeaters() []Heartbeater {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Heartbeater
	for _, set := range r.byScenario {
		for _, sub := range set {
			if hb, ok := sub.(Heartbeater); ok {
				out = append(out, hb)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq() < out[j].Seq() })
	return out
}

// Count returns the total number of admitted subscribers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, set := range r.byScenario {
		n += len(set)
	}
	return n
}

// CountScenario returns the number of subscribers of a scenario.
func (r *Registry) CountScenario(scenarioID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byScenario[scenarioID])
}

// CountUser returns the number of subscribers held by a user.
func (r *Registry) CountUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID])
}

// CountIP returns the number of subscribers from a client IP.
func (r *Registry) CountIP(clientIP string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byIP[clientIP])
}

// Stats summarises the registry for readiness reporting.
type Stats struct {
	Connections int            `json:"connections"`
	Scenarios   int            `json:"scenarios"`
	Users       int            `json:"users"`
	ClientIPs   int            `json:"client_ips"`
	ByTransport map[string]int `json:"by_transport"`
	Closed      bool           `json:"closed"`
}

// Stats returns a point-in-time summary.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Scenarios:   len(r.byScenario),
		Users:       len(r.byUser),
		ClientIPs:   len(r.byIP),
		ByTransport: map[string]int{string(TransportSSE): 0, string(TransportWebSocket): 0},
		Closed:      r.closed,
	}
	for _, set := range r.byScenario {
		for _, sub := range set {
			stats.Connections++
			stats.ByTransport[string(sub.Transport())]++
		}
	}
	return stats
}

// CloseAll removes and closes every subscriber and refuses further
// admissions. It is called once on shutdown and returns the number closed.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	r.closed = true

	var all []Subscriber
	for _, set := range r.byScenario {
		for _, sub := range set {
			all = append(all, sub)
		}
	}
	// DETERMINISM: close in admission order
	sort.Slice(all, func(i, j int) bool { return all[i].Seq() < all[j].Seq() })
	for _, sub := range all {
		r.removeLocked(sub)
	}
	r.mu.Unlock()

	for _, sub := range all {
		sub.Close(code, reason)
	}

	logging.Info().
		Str("component", "realtime-registry").
		Int("subscribers_closed", len(all)).
		Str("reason", reason).
		Msg("closed all realtime subscribers")
	return len(all)
}

func addTo(index map[string]subscriberSet, key string, sub Subscriber) {
	set, ok := index[key]
	if !ok {
		set = make(subscriberSet)
		index[key] = set
	}
	set[sub.ID()] = sub
}

func removeFrom(index map[string]subscriberSet, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

// sortedSnapshot copies a set into a slice ordered by admission sequence.
func sortedSnapshot(set subscriberSet) []Subscriber {
	out := make([]Subscriber, 0, len(set))
	for _, sub := range set {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq() < out[j].Seq() })
	return out
}
