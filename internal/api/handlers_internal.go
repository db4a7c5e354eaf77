// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/membership"
	"github.com/tomtom215/rolestage/internal/realtime"
	"github.com/tomtom215/rolestage/internal/validation"
)

// maxPathIDLength bounds scenario and user IDs taken from the URL.
const maxPathIDLength = 128

// pathID returns a URL parameter, or "" if it is missing or too long.
func pathID(r *http.Request, name string) string {
	id := chi.URLParam(r, name)
	if len(id) > maxPathIDLength {
		return ""
	}
	return id
}

// PublishEvent accepts a domain event from the CRUD layer and fans it out to
// every subscriber of the scenario. Known event names are decoded and
// validated against their typed payloads; other names pass through as raw
// JSON.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	scenarioID := pathID(r, "scenarioId")
	if scenarioID == "" {
		rw.BadRequest("invalid scenario id")
		return
	}

	var req PublishEventRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	var delivered int
	if realtime.IsTypedEvent(req.Event) {
		ev, err := realtime.DecodeEvent(req.Event, req.Payload)
		if err != nil {
			rw.BadRequest(err.Error())
			return
		}
		delivered = h.bus.Publish(scenarioID, ev)
	} else {
		delivered = h.bus.PublishRaw(scenarioID, req.Event, req.Payload)
	}

	logging.Ctx(r.Context()).Debug().
		Str("scenario_id", scenarioID).
		Str("event", req.Event).
		Int("delivered", delivered).
		Msg("event published")

	rw.Accepted(PublishEventResponse{
		Event:      req.Event,
		ScenarioID: scenarioID,
		Delivered:  delivered,
	})
}

// GrantMember creates or updates a user's role in a scenario.
func (h *Handler) GrantMember(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	scenarioID, userID := pathID(r, "scenarioId"), pathID(r, "userId")
	if scenarioID == "" || userID == "" {
		rw.BadRequest("invalid scenario or user id")
		return
	}

	var req GrantMemberRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	if err := h.members.Grant(r.Context(), scenarioID, userID, req.Role); err != nil {
		h.membershipError(rw, r, err)
		return
	}

	rw.Success(membership.Record{ScenarioID: scenarioID, UserID: userID, Role: req.Role})
}

// RevokeMember removes a user from a scenario. Live connections of that user
// are not cut; the next handshake is refused.
func (h *Handler) RevokeMember(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	scenarioID, userID := pathID(r, "scenarioId"), pathID(r, "userId")
	if scenarioID == "" || userID == "" {
		rw.BadRequest("invalid scenario or user id")
		return
	}

	existed, err := h.members.Revoke(r.Context(), scenarioID, userID)
	if err != nil {
		h.membershipError(rw, r, err)
		return
	}
	if !existed {
		rw.NotFound("membership not found")
		return
	}
	rw.NoContent()
}

// ListMembers returns a scenario's members ordered by user ID.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	scenarioID := pathID(r, "scenarioId")
	if scenarioID == "" {
		rw.BadRequest("invalid scenario id")
		return
	}

	records, err := h.members.Members(r.Context(), scenarioID)
	if err != nil {
		h.membershipError(rw, r, err)
		return
	}
	if records == nil {
		records = []membership.Record{}
	}

	rw.Success(MembersResponse{ScenarioID: scenarioID, Members: records})
}

func (h *Handler) membershipError(rw *ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, membership.ErrInvalidID), errors.Is(err, membership.ErrInvalidRole):
		rw.BadRequest(err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("membership store operation failed")
		rw.InternalError("membership store unavailable")
	}
}
