// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

// Package validation provides struct validation using go-playground/validator v10.
//
// The package wraps a thread-safe singleton validator so struct metadata is
// cached once per process. Two kinds of input go through it:
//
//   - inbound WebSocket frames checked by the realtime gate (typing indicators)
//   - producer API bodies (published events, membership grants)
//
// Field names in errors are taken from json tags, so a failure on
// ConversationID reads "conversationId is required".
//
// # Custom Tags
//
//   - eventname: lowercase dotted event names, at most 64 bytes ("message.created")
//
// # Quick Start
//
//	type GrantRequest struct {
//	    Role string `json:"role" validate:"required,oneof=owner gm player"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
