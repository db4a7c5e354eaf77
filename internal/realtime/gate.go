// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"bytes"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/metrics"
	"github.com/tomtom215/rolestage/internal/validation"
)

// RateWindowLength is the inbound rate-limit window.
const RateWindowLength = 10 * time.Second

// RateWindow counts inbound frames for one connection. It is owned by that
// connection's read loop and is not safe for concurrent use.
type RateWindow struct {
	start time.Time
	count int
}

// Allow records one frame at now and reports whether the connection is still
// within limit. The count resets once more than RateWindowLength has passed
// since the window started.
func (w *RateWindow) Allow(now time.Time, limit int) bool {
	if w.start.IsZero() || now.Sub(w.start) > RateWindowLength {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count <= limit
}

// GateResult is the gate's verdict on one inbound frame.
type GateResult int

const (
	// GateAccepted means the frame was valid and re-broadcast.
	GateAccepted GateResult = iota
	// GateDropped means the frame was ignored; the connection stays open.
	GateDropped
	// GateRateLimited means the connection exceeded its budget and must be closed with 1013.
	GateRateLimited
)

func (r GateResult) String() string {
	switch r {
	case GateAccepted:
		return metrics.ResultAccepted
	case GateRateLimited:
		return metrics.ResultRateLimited
	default:
		return metrics.ResultDropped
	}
}

// inboundMessage is the only client-to-server shape accepted. Keys must
// match exactly; "data" is an alias of "payload" kept for older clients.
type inboundMessage struct {
	Event string          `validate:"required,eq=typing"`
	Body  *typingEnvelope `validate:"required"`
}

// typingEnvelope is the client-supplied typing payload. Any userId the client
// sends is ignored.
type typingEnvelope struct {
	ConversationID string  `validate:"required,min=1,max=128"`
	ProfileID      *string `validate:"omitnil,min=1,max=128"`
	IsTyping       *bool
}

var jsonNull = []byte("null")

// decodeInbound decodes a frame field by field. goccy/go-json, like
// encoding/json, matches struct keys case-insensitively, so the object is
// read as a map and only the exact key names are used. When both "payload"
// and "data" are present, "payload" wins and "data" is never looked at.
func decodeInbound(data []byte) (*inboundMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	msg := &inboundMessage{}
	if err := decodeField(fields, "event", &msg.Event); err != nil {
		return nil, err
	}

	raw, ok := fields["payload"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		raw, ok = fields["data"]
	}
	if !ok || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return msg, nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	msg.Body = &typingEnvelope{}
	if err := decodeField(body, "conversationId", &msg.Body.ConversationID); err != nil {
		return nil, err
	}
	if err := decodeField(body, "profileId", &msg.Body.ProfileID); err != nil {
		return nil, err
	}
	if err := decodeField(body, "isTyping", &msg.Body.IsTyping); err != nil {
		return nil, err
	}
	return msg, nil
}

// decodeField unmarshals fields[key] into dst; a missing key leaves dst untouched.
func decodeField(fields map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// Publisher is the part of the Bus the gate needs.
type Publisher interface {
	Publish(scenarioID string, ev Event) int
}

// Gate rate-limits, decodes and validates inbound WebSocket frames and
// re-broadcasts valid typing indicators to the sender's scenario.
type Gate struct {
	publisher Publisher
	limit     int
	now       func() time.Time
}

// NewGate creates a gate allowing limit frames per RateWindowLength.
func NewGate(publisher Publisher, limit int) *Gate {
	return &Gate{publisher: publisher, limit: limit, now: time.Now}
}

// Handle processes one frame from the connection identified by id.
func (g *Gate) Handle(id Identity, window *RateWindow, frameType int, data []byte) GateResult {
	result := g.handle(id, window, frameType, data)
	metrics.RecordInbound(result.String())
	return result
}

func (g *Gate) handle(id Identity, window *RateWindow, frameType int, data []byte) GateResult {
	if !window.Allow(g.now(), g.limit) {
		return GateRateLimited
	}

	if frameType != websocket.TextMessage && frameType != websocket.BinaryMessage {
		return GateDropped
	}
	if !utf8.Valid(data) {
		return GateDropped
	}

	msg, err := decodeInbound(data)
	if err != nil {
		return GateDropped
	}
	if verr := validation.ValidateStruct(msg); verr != nil {
		return GateDropped
	}
	body := msg.Body

	g.publisher.Publish(id.ScenarioID(), Typing{
		ConversationID: body.ConversationID,
		ProfileID:      body.ProfileID,
		IsTyping:       body.IsTyping,
		UserID:         id.UserID(),
	})

	logging.Trace().
		Str("conn_id", id.ID()).
		Str("scenario_id", id.ScenarioID()).
		Msg("typing indicator re-broadcast")
	return GateAccepted
}
