// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNewMessage_WebSocketFrame(t *testing.T) {
	msg, err := NewMessage(PostCreated{
		PostID:     "p1",
		ScenarioID: "s1",
		ProfileID:  "pr1",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	var frame struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(msg.WebSocketFrame(), &frame); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if frame.Event != EventPostCreated {
		t.Errorf("event = %q", frame.Event)
	}
	if frame.Payload["postId"] != "p1" || frame.Payload["createdAt"] != "2026-03-01T12:00:00Z" {
		t.Errorf("payload = %v", frame.Payload)
	}
	if _, ok := frame.Payload["content"]; ok {
		t.Error("empty content should be omitted")
	}
}

func TestNewMessage_SSEFrame(t *testing.T) {
	msg, err := NewMessage(RawEvent{Name: "note", Payload: json.RawMessage(`{"a":1}`)})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	want := "event: note\ndata: {\"a\":1}\n\n"
	if got := string(msg.SSEFrame()); got != want {
		t.Errorf("SSEFrame = %q, want %q", got, want)
	}
}

func TestEncodeSSE_MultiLinePayload(t *testing.T) {
	got := string(encodeSSE("x", []byte("line1\r\nline2")))
	want := "event: x\ndata: line1\ndata: line2\n\n"
	if got != want {
		t.Errorf("encodeSSE = %q, want %q", got, want)
	}
}

func TestTyping_OmitsNilOptionals(t *testing.T) {
	msg, err := NewMessage(Typing{ConversationID: "c1", UserID: "u1"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	frame := string(msg.WebSocketFrame())
	if strings.Contains(frame, "profileId") || strings.Contains(frame, "isTyping") {
		t.Errorf("nil optionals should be omitted: %s", frame)
	}
	if !strings.Contains(frame, `"userId":"u1"`) {
		t.Errorf("userId missing: %s", frame)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		payload  string
		wantType string
		wantErr  bool
	}{
		{"post", EventPostCreated, `{"postId":"p","scenarioId":"s","profileId":"pr","extra":1}`, "PostCreated", false},
		{"message", EventMessageCreated, `{"messageId":"m","conversationId":"c","senderProfileId":"p"}`, "MessageCreated", false},
		{"conversation", EventConversationCreated, `{"conversationId":"c","participantProfileIds":["a","b"]}`, "ConversationCreated", false},
		{"mention", EventMentionCreated, `{"mentionedProfileId":"p"}`, "MentionCreated", false},
		{"typing", EventTyping, `{"conversationId":"c","userId":"u"}`, "Typing", false},
		{"post missing id", EventPostCreated, `{"scenarioId":"s","profileId":"pr"}`, "", true},
		{"empty participant", EventConversationCreated, `{"conversationId":"c","participantProfileIds":[""]}`, "", true},
		{"malformed", EventMessageCreated, `{`, "", true},
		{"unknown name", "scenario.archived", `{"id": "s1"}`, "RawEvent", false},
		{"unknown name bad json", "scenario.archived", `{`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent(tt.event, []byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("err = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if ev.EventName() != tt.event {
				t.Errorf("EventName = %q, want %q", ev.EventName(), tt.event)
			}
			var gotType string
			switch ev.(type) {
			case PostCreated:
				gotType = "PostCreated"
			case MessageCreated:
				gotType = "MessageCreated"
			case ConversationCreated:
				gotType = "ConversationCreated"
			case MentionCreated:
				gotType = "MentionCreated"
			case Typing:
				gotType = "Typing"
			case RawEvent:
				gotType = "RawEvent"
			}
			if gotType != tt.wantType {
				t.Errorf("type = %s, want %s", gotType, tt.wantType)
			}
		})
	}
}

func TestDecodeEvent_RawCompacted(t *testing.T) {
	ev, err := DecodeEvent("custom", []byte("{\n  \"k\": \"v\"\n}"))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	raw := ev.(RawEvent)
	if string(raw.Payload) != `{"k":"v"}` {
		t.Errorf("payload = %s", raw.Payload)
	}
}

func TestDecodeEvent_EmptyRawPayload(t *testing.T) {
	ev, err := DecodeEvent("ping.test", nil)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	msg, err := NewMessage(ev)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if got := string(msg.WebSocketFrame()); got != `{"event":"ping.test","payload":null}` {
		t.Errorf("frame = %s", got)
	}
}

func TestIsTypedEvent(t *testing.T) {
	for _, name := range []string{EventPostCreated, EventMessageCreated, EventConversationCreated, EventMentionCreated, EventTyping} {
		if !IsTypedEvent(name) {
			t.Errorf("IsTypedEvent(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"scenario.updated", "", "Typing"} {
		if IsTypedEvent(name) {
			t.Errorf("IsTypedEvent(%q) = true, want false", name)
		}
	}
}
