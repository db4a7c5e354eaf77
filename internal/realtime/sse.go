// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/metrics"
)

// keepAliveComment is an SSE comment line; clients ignore it but proxies see traffic.
var keepAliveComment = []byte(": keep-alive\n\n")

// SSEOptions configures the SSE endpoint.
type SSEOptions struct {
	// KeepAlive is the interval between comment frames. Zero disables them.
	KeepAlive time.Duration

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int

	// Principal returns the authenticated user for the request. SSE requests
	// are authenticated by upstream middleware, not by the handler.
	Principal func(r *http.Request) (userID string, ok bool)

	// ScenarioID extracts the scenario from the request path.
	ScenarioID func(r *http.Request) string

	// Member reports whether the user may subscribe to the scenario. Nil
	// skips the check (middleware already enforced it).
	Member func(r *http.Request, userID, scenarioID string) (bool, error)
}

// SSEHandler serves GET /scenarios/{scenarioId}/events as a server-sent event
// stream. The stream stays open until the client goes away, the subscriber
// is terminated, or the server shuts down.
type SSEHandler struct {
	registry *Registry
	opts     SSEOptions
	security *logging.SecurityLogger
}

// NewSSEHandler creates the SSE endpoint.
func NewSSEHandler(registry *Registry, opts SSEOptions) *SSEHandler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	return &SSEHandler{registry: registry, opts: opts, security: logging.NewSecurityLogger()}
}

// ServeHTTP admits the request and streams events until it ends.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	attempt := &logging.HandshakeEvent{
		Transport:  string(TransportSSE),
		ScenarioID: h.opts.ScenarioID(r),
		IPAddress:  ClientIP(r),
	}

	userID, ok := h.opts.Principal(r)
	if !ok {
		h.reject(w, attempt, "unauthorized", http.StatusUnauthorized, "unauthorized")
		return
	}
	attempt.UserID = userID

	if attempt.ScenarioID == "" {
		h.reject(w, attempt, "missing_params", http.StatusBadRequest, "scenarioId is required")
		return
	}

	if h.opts.Member != nil {
		member, err := h.opts.Member(r, userID, attempt.ScenarioID)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("scenario_id", attempt.ScenarioID).Msg("sse membership check failed")
			h.reject(w, attempt, "error", http.StatusInternalServerError, "internal error")
			return
		}
		if !member {
			h.reject(w, attempt, "forbidden", http.StatusForbidden, "forbidden")
			return
		}
	}

	var sub *sseSubscriber
	_, err := h.registry.Admit(attempt.ScenarioID, userID, attempt.IPAddress, TransportSSE, func(id Identity) Subscriber {
		sub = newSSESubscriber(id, h.opts.SendBuffer)
		return sub
	})
	if err != nil {
		if capErr, isCap := IsCapacityError(err); isCap {
			w.Header().Set("Retry-After", strconv.Itoa(int(RateWindowLength.Seconds())))
			h.reject(w, attempt, "capacity_"+string(capErr.Dimension), http.StatusServiceUnavailable, "capacity exceeded")
			return
		}
		if errors.Is(err, ErrRegistryClosed) {
			h.reject(w, attempt, "shutting_down", http.StatusServiceUnavailable, "server shutting down")
			return
		}
		h.reject(w, attempt, "error", http.StatusInternalServerError, "internal error")
		return
	}
	defer h.registry.Remove(sub)

	attempt.Accepted = true
	h.security.LogHandshake(attempt)

	h.stream(w, r, sub)
}

// reject records a refused subscription and answers with a plain HTTP error;
// the response is never upgraded to a stream.
func (h *SSEHandler) reject(w http.ResponseWriter, attempt *logging.HandshakeEvent, reason string, status int, text string) {
	attempt.Reason = reason
	attempt.CloseCode = status
	metrics.RecordHandshakeFailure(string(TransportSSE), reason)
	h.security.LogHandshake(attempt)
	http.Error(w, text, status)
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, sub *sseSubscriber) {
	logger := logging.WithConnection(sub.ID(), string(sub.Transport()), sub.ScenarioID(), sub.UserID())
	rc := http.NewResponseController(w)

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Warn().Err(err).Msg("sse response does not support flushing")
		h.registry.Terminate(sub, CloseInternalError, "flush unsupported")
		return
	}

	logger.Debug().Msg("sse subscriber connected")

	var keepAlive <-chan time.Time
	if h.opts.KeepAlive > 0 {
		ticker := time.NewTicker(h.opts.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("sse client disconnected")
			return

		case <-sub.done:
			logger.Debug().Int("close_code", sub.closeCode).Str("reason", sub.closeReason).Msg("sse subscriber closed")
			return

		case msg := <-sub.send:
			if err := writeSSE(rc, w, msg.SSEFrame()); err != nil {
				metrics.RecordSendFailure(string(TransportSSE))
				logger.Debug().Err(err).Msg("sse write failed")
				h.registry.Terminate(sub, CloseInternalError, "write failed")
				return
			}

		case <-keepAlive:
			if err := writeSSE(rc, w, keepAliveComment); err != nil {
				h.registry.Terminate(sub, CloseGoingAway, "keep-alive failed")
				return
			}
		}
	}
}

// writeSSE writes one frame under a write deadline and flushes it.
func writeSSE(rc *http.ResponseController, w http.ResponseWriter, frame []byte) error {
	if err := rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return rc.Flush()
}

// sseSubscriber is one admitted SSE stream. Frames are written by the
// handler goroutine that owns the response.
type sseSubscriber struct {
	Identity

	send chan *Message

	done        chan struct{}
	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newSSESubscriber(id Identity, sendBuffer int) *sseSubscriber {
	return &sseSubscriber{
		Identity: id,
		send:     make(chan *Message, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Send enqueues msg without blocking.
func (s *sseSubscriber) Send(msg *Message) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close ends the stream. SSE has no close frame; code and reason are only logged.
func (s *sseSubscriber) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeReason = reason
		close(s.done)
	})
}
