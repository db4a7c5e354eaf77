// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rolestage/internal/validation"
)

// Event names on the wire.
const (
	EventPostCreated         = "post.created"
	EventMessageCreated      = "message.created"
	EventConversationCreated = "conversation.created"
	EventMentionCreated      = "mention.created"
	EventTyping              = "typing"
)

// ErrInvalidPayload is returned by DecodeEvent when a payload does not match its event.
var ErrInvalidPayload = errors.New("realtime: invalid event payload")

// Event is an outbound domain event. The variant's JSON encoding is the
// "payload" part of the wire message.
type Event interface {
	EventName() string
}

// PostCreated is published when a post is added to a scenario feed.
type PostCreated struct {
	PostID     string    `json:"postId" validate:"required,max=128"`
	ScenarioID string    `json:"scenarioId" validate:"required,max=128"`
	ProfileID  string    `json:"profileId" validate:"required,max=128"`
	Content    string    `json:"content,omitempty" validate:"max=20000"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (PostCreated) EventName() string { return EventPostCreated }

// MessageCreated is published when a message is sent in a conversation.
type MessageCreated struct {
	MessageID       string    `json:"messageId" validate:"required,max=128"`
	ConversationID  string    `json:"conversationId" validate:"required,max=128"`
	SenderProfileID string    `json:"senderProfileId" validate:"required,max=128"`
	Content         string    `json:"content,omitempty" validate:"max=20000"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (MessageCreated) EventName() string { return EventMessageCreated }

// ConversationCreated is published when a conversation is opened between profiles.
type ConversationCreated struct {
	ConversationID        string    `json:"conversationId" validate:"required,max=128"`
	Title                 string    `json:"title,omitempty" validate:"max=256"`
	ParticipantProfileIDs []string  `json:"participantProfileIds" validate:"max=256,dive,required,max=128"`
	CreatedAt             time.Time `json:"createdAt"`
}

func (ConversationCreated) EventName() string { return EventConversationCreated }

// MentionCreated is published when a profile is mentioned in a post or message.
type MentionCreated struct {
	MentionedProfileID string    `json:"mentionedProfileId" validate:"required,max=128"`
	ByProfileID        string    `json:"byProfileId,omitempty" validate:"max=128"`
	PostID             string    `json:"postId,omitempty" validate:"max=128"`
	MessageID          string    `json:"messageId,omitempty" validate:"max=128"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (MentionCreated) EventName() string { return EventMentionCreated }

// Typing is the ephemeral typing indicator. UserID is always set server-side.
type Typing struct {
	ConversationID string  `json:"conversationId" validate:"required,min=1,max=128"`
	ProfileID      *string `json:"profileId,omitempty" validate:"omitnil,min=1,max=128"`
	IsTyping       *bool   `json:"isTyping,omitempty"`
	UserID         string  `json:"userId" validate:"required,max=128"`
}

func (Typing) EventName() string { return EventTyping }

// RawEvent carries a producer event whose name is outside the typed set.
// Payload must be valid JSON.
type RawEvent struct {
	Name    string
	Payload json.RawMessage
}

func (e RawEvent) EventName() string { return e.Name }

// IsTypedEvent reports whether name has a typed variant that DecodeEvent validates.
func IsTypedEvent(name string) bool {
	switch name {
	case EventPostCreated, EventMessageCreated, EventConversationCreated, EventMentionCreated, EventTyping:
		return true
	}
	return false
}

// DecodeEvent turns a producer-supplied name and JSON payload into an Event.
// Known names decode into their typed variant and are validated; unknown fields
// are ignored. Any other name becomes a RawEvent with the payload compacted.
func DecodeEvent(name string, payload []byte) (Event, error) {
	switch name {
	case EventPostCreated:
		return decodeTyped[PostCreated](payload)
	case EventMessageCreated:
		return decodeTyped[MessageCreated](payload)
	case EventConversationCreated:
		return decodeTyped[ConversationCreated](payload)
	case EventMentionCreated:
		return decodeTyped[MentionCreated](payload)
	case EventTyping:
		return decodeTyped[Typing](payload)
	}

	compact, err := compactJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return RawEvent{Name: name, Payload: compact}, nil
}

func decodeTyped[T Event](payload []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if verr := validation.ValidateStruct(&ev); verr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, verr.Error())
	}
	return ev, nil
}

func compactJSON(payload []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return json.RawMessage("null"), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wireMessage is the WebSocket envelope, unchanged for existing clients.
type wireMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Message is an event encoded once for every transport, so a fan-out to N
// subscribers marshals the payload a single time.
type Message struct {
	name string
	ws   []byte
	sse  []byte
}

// NewMessage encodes ev for both transports.
func NewMessage(ev Event) (*Message, error) {
	var payload []byte
	if raw, ok := ev.(RawEvent); ok {
		compact, err := compactJSON(raw.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", raw.Name, err)
		}
		payload = compact
	} else {
		encoded, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", ev.EventName(), err)
		}
		payload = encoded
	}

	ws, err := json.Marshal(wireMessage{Event: ev.EventName(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", ev.EventName(), err)
	}

	return &Message{
		name: ev.EventName(),
		ws:   ws,
		sse:  encodeSSE(ev.EventName(), payload),
	}, nil
}

// Name returns the event name.
func (m *Message) Name() string { return m.name }

// WebSocketFrame returns the {"event","payload"} text frame.
func (m *Message) WebSocketFrame() []byte { return m.ws }

// SSEFrame returns the "event:/data:" block including the blank-line terminator.
func (m *Message) SSEFrame() []byte { return m.sse }

// encodeSSE formats one server-sent event. Every payload line gets its own
// "data:" field so a stray newline cannot end the event early.
func encodeSSE(name string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(name) + len(payload) + 16)
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteByte('\n')
	for _, line := range bytes.Split(payload, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimSuffix(line, []byte("\r")))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}
