// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/metrics"
)

const (
	// writeWait bounds every frame and control write.
	writeWait = 10 * time.Second

	// closeGracePeriod is how long the write loop waits for the client's
	// close reply before dropping the TCP connection.
	closeGracePeriod = time.Second

	defaultSendBuffer = 256
)

// WSOptions configures the WebSocket endpoint.
type WSOptions struct {
	// MaxPayloadBytes is the largest inbound frame accepted; larger frames
	// close the connection with 1009.
	MaxPayloadBytes int64

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int

	// CheckOrigin validates the Origin header on upgrade. Nil accepts
	// same-origin requests only (gorilla's default).
	CheckOrigin func(r *http.Request) bool
}

// WSHandler serves GET /api/v1/realtime?scenarioId=…&token=…
//
// The upgrade happens before verification so every rejection can be
// delivered as a close code: 1008 for missing parameters, an invalid token or
// non-membership, 1013 for capacity, 1011 for internal errors.
type WSHandler struct {
	registry  *Registry
	gate      *Gate
	handshake Handshake
	opts      WSOptions
	upgrader  websocket.Upgrader
	security  *logging.SecurityLogger
}

// NewWSHandler creates the WebSocket endpoint.
func NewWSHandler(registry *Registry, gate *Gate, handshake Handshake, opts WSOptions) *WSHandler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	return &WSHandler{
		registry:  registry,
		gate:      gate,
		handshake: handshake,
		opts:      opts,
		security:  logging.NewSecurityLogger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// ServeHTTP upgrades, verifies, admits and then runs the connection until it ends.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		logging.Ctx(r.Context()).Debug().Err(err).
			Str("query", logging.SanitizeQuery(r.URL.RawQuery)).
			Msg("websocket upgrade failed")
		return
	}

	attempt := &logging.HandshakeEvent{
		Transport:  string(TransportWebSocket),
		ScenarioID: r.URL.Query().Get("scenarioId"),
		IPAddress:  ClientIP(r),
	}

	token := BearerToken(r)
	if attempt.ScenarioID == "" || token == "" {
		h.reject(conn, attempt, "missing_params", ClosePolicyViolation, "scenarioId and token are required")
		return
	}

	userID, ok, err := h.handshake.Verify(r.Context(), token, attempt.ScenarioID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("scenario_id", attempt.ScenarioID).Msg("websocket handshake failed")
		h.reject(conn, attempt, "error", CloseInternalError, "internal error")
		return
	}
	if !ok {
		h.reject(conn, attempt, "unauthorized", ClosePolicyViolation, "unauthorized")
		return
	}
	attempt.UserID = userID

	var sub *wsSubscriber
	_, err = h.registry.Admit(attempt.ScenarioID, userID, attempt.IPAddress, TransportWebSocket, func(id Identity) Subscriber {
		sub = newWSSubscriber(id, conn, h.registry, h.opts.SendBuffer)
		return sub
	})
	if err != nil {
		if capErr, isCap := IsCapacityError(err); isCap {
			h.reject(conn, attempt, "capacity_"+string(capErr.Dimension), CloseTryAgainLater, "capacity exceeded")
			return
		}
		if errors.Is(err, ErrRegistryClosed) {
			h.reject(conn, attempt, "shutting_down", CloseGoingAway, "server shutting down")
			return
		}
		h.reject(conn, attempt, "error", CloseInternalError, "internal error")
		return
	}

	attempt.Accepted = true
	h.security.LogHandshake(attempt)

	sub.run(h.gate, h.opts.MaxPayloadBytes)
}

// reject records a refused handshake and closes the never-admitted connection.
func (h *WSHandler) reject(conn *websocket.Conn, attempt *logging.HandshakeEvent, reason string, code int, text string) {
	attempt.Reason = reason
	attempt.CloseCode = code
	metrics.RecordHandshakeFailure(string(TransportWebSocket), reason)
	h.security.LogHandshake(attempt)
	rejectConn(conn, code, text)
}

// rejectConn closes a connection that was never admitted.
func rejectConn(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

// wsSubscriber is one admitted WebSocket connection.
//
// The write loop owns all data frames and the final close; the read loop
// feeds the gate. Both end through Registry.Terminate.
type wsSubscriber struct {
	Identity

	conn     *websocket.Conn
	registry *Registry
	send     chan *Message
	logger   zerolog.Logger

	alive  atomic.Bool
	window RateWindow // read loop only

	done        chan struct{}
	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newWSSubscriber(id Identity, conn *websocket.Conn, registry *Registry, sendBuffer int) *wsSubscriber {
	s := &wsSubscriber{
		Identity: id,
		conn:     conn,
		registry: registry,
		send:     make(chan *Message, sendBuffer),
		logger:   logging.WithConnection(id.ID(), string(id.Transport()), id.ScenarioID(), id.UserID()),
		done:     make(chan struct{}),
	}
	s.alive.Store(true)
	return s
}

// Send enqueues msg without blocking.
func (s *wsSubscriber) Send(msg *Message) error {
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

// Close records the close code and signals the write loop, which sends the
// close frame and releases the connection.
func (s *wsSubscriber) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeReason = reason
		close(s.done)
	})
}

// ResetAlive implements Heartbeater.
func (s *wsSubscriber) ResetAlive() bool {
	return s.alive.Swap(false)
}

// Ping implements Heartbeater. gorilla allows WriteControl concurrently
// with the write loop.
func (s *wsSubscriber) Ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// run serves the connection until both loops have finished.
func (s *wsSubscriber) run(gate *Gate, maxPayload int64) {
	s.logger.Debug().Msg("websocket subscriber connected")

	readDone := make(chan struct{})
	writeDone := make(chan struct{})

	go func() {
		defer close(writeDone)
		s.writePump(readDone)
	}()

	s.readPump(gate, maxPayload)
	close(readDone)
	<-writeDone

	s.logger.Debug().Int("close_code", s.closeCode).Str("reason", s.closeReason).Msg("websocket subscriber disconnected")
}

// readPump reads frames into the gate until the connection fails. After the
// subscriber is closed it keeps draining frames, without gating them, so the
// client's close reply can be read.
func (s *wsSubscriber) readPump(gate *Gate, maxPayload int64) {
	if maxPayload > 0 {
		s.conn.SetReadLimit(maxPayload)
	}
	s.conn.SetPongHandler(func(string) error {
		s.alive.Store(true)
		return nil
	})

	for {
		frameType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.terminateOnReadError(err)
			return
		}

		if s.isClosed() {
			continue
		}

		if gate.Handle(s.Identity, &s.window, frameType, data) == GateRateLimited {
			s.logger.Info().Msg("inbound rate limit exceeded")
			s.registry.Terminate(s, CloseTryAgainLater, "rate limit exceeded")
		}
	}
}

func (s *wsSubscriber) terminateOnReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		metrics.RecordInbound(metrics.ResultOversized)
		s.logger.Info().Msg("inbound frame over payload limit")
		s.registry.Terminate(s, CloseMessageTooBig, "message too big")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		if !s.isClosed() {
			s.logger.Debug().Err(err).Msg("unexpected websocket close")
		}
		s.registry.Terminate(s, websocket.CloseNormalClosure, "")
	default:
		s.registry.Terminate(s, websocket.CloseNormalClosure, "")
	}
}

// writePump drains the send queue until the subscriber is closed, then sends
// the close frame and waits briefly for the read loop before dropping the
// connection.
func (s *wsSubscriber) writePump(readDone <-chan struct{}) {
	defer func() {
		_ = s.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		// Priority 1: stop as soon as the subscriber is closed
		select {
		case <-s.done:
			s.writeClose(readDone)
			return
		default:
		}

		select {
		case <-s.done:
			s.writeClose(readDone)
			return
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.registry.Terminate(s, CloseInternalError, "write failed")
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg.WebSocketFrame()); err != nil {
				metrics.RecordSendFailure(string(TransportWebSocket))
				s.logger.Debug().Err(err).Msg("websocket write failed")
				s.registry.Terminate(s, CloseInternalError, "write failed")
			}
		}
	}
}

func (s *wsSubscriber) writeClose(readDone <-chan struct{}) {
	msg := websocket.FormatCloseMessage(s.closeCode, s.closeReason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		// Peer already gone or close already sent (read limit, echoed close)
		return
	}

	timer := time.NewTimer(closeGracePeriod)
	defer timer.Stop()
	select {
	case <-readDone:
	case <-timer.C:
	}
}

func (s *wsSubscriber) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
