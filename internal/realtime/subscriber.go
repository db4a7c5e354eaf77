// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"github.com/gorilla/websocket"
)

// Transport identifies how a subscriber receives events.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// WebSocket close codes used by the realtime endpoints.
const (
	CloseGoingAway       = websocket.CloseGoingAway         // 1001: shutdown, heartbeat timeout
	ClosePolicyViolation = websocket.ClosePolicyViolation   // 1008: missing params, bad token, not a member
	CloseMessageTooBig   = websocket.CloseMessageTooBig     // 1009: frame over MAX_PAYLOAD_BYTES
	CloseInternalError   = websocket.CloseInternalServerErr // 1011: send failure, handshake error
	CloseTryAgainLater   = websocket.CloseTryAgainLater     // 1013: capacity or inbound rate limit
)

// Subscriber is one live connection registered against a scenario.
//
// Send must never block: implementations enqueue onto a bounded per-connection
// queue and report failure when the queue is full or the connection is gone.
// Close is idempotent and also must not block.
type Subscriber interface {
	ID() string
	Seq() uint64
	Transport() Transport
	ScenarioID() string
	UserID() string
	ClientIP() string

	Send(msg *Message) error
	Close(code int, reason string)
}

// Heartbeater is implemented by subscribers that take part in the heartbeat
// sweep (WebSocket only).
type Heartbeater interface {
	Subscriber

	// ResetAlive reports whether the connection answered since the previous
	// sweep and clears the flag.
	ResetAlive() bool

	// Ping sends a ping control frame.
	Ping() error
}

// Identity is the immutable part of a subscriber, fixed at admission.
// Seq increases with every admission and gives fan-out a stable order.
type Identity struct {
	id         string
	seq        uint64
	transport  Transport
	scenarioID string
	userID     string
	clientIP   string
}

// NewIdentity builds an Identity. The registry assigns id and seq on admission;
// this constructor exists for tests and adapters that build subscribers by hand.
func NewIdentity(id string, seq uint64, transport Transport, scenarioID, userID, clientIP string) Identity {
	return Identity{
		id:         id,
		seq:        seq,
		transport:  transport,
		scenarioID: scenarioID,
		userID:     userID,
		clientIP:   clientIP,
	}
}

func (i Identity) ID() string           { return i.id }
func (i Identity) Seq() uint64          { return i.seq }
func (i Identity) Transport() Transport { return i.transport }
func (i Identity) ScenarioID() string   { return i.scenarioID }
func (i Identity) UserID() string       { return i.userID }
func (i Identity) ClientIP() string     { return i.clientIP }

// SubscriberFactory builds the transport-specific subscriber for an admitted
// identity. It runs under the registry lock and must not block.
type SubscriberFactory func(Identity) Subscriber
