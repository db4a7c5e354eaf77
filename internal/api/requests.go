// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rolestage/internal/membership"
)

// maxRequestBodyBytes bounds internal API request bodies.
const maxRequestBodyBytes = 1 << 20

// PublishEventRequest is the body of POST /internal/v1/scenarios/{scenarioId}/events.
type PublishEventRequest struct {
	Event   string          `json:"event" validate:"required,eventname"`
	Payload json.RawMessage `json:"payload"`
}

// PublishEventResponse reports how many subscribers the event was queued for.
type PublishEventResponse struct {
	Event      string `json:"event"`
	ScenarioID string `json:"scenario_id"`
	Delivered  int    `json:"delivered"`
}

// GrantMemberRequest is the body of PUT /internal/v1/scenarios/{scenarioId}/members/{userId}.
type GrantMemberRequest struct {
	Role membership.Role `json:"role" validate:"required,oneof=owner gm player"`
}

// MembersResponse lists a scenario's members.
type MembersResponse struct {
	ScenarioID string              `json:"scenario_id"`
	Members    []membership.Record `json:"members"`
}

// decodeJSONBody decodes a bounded JSON body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	return nil
}
