// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistryClosed is returned by Admit after CloseAll (server shutdown).
	ErrRegistryClosed = errors.New("realtime: registry closed")

	// ErrSubscriberClosed is returned by Send once the connection has been closed.
	ErrSubscriberClosed = errors.New("realtime: subscriber closed")

	// ErrSendQueueFull is returned by Send when a slow client's queue is full.
	ErrSendQueueFull = errors.New("realtime: send queue full")
)

// Dimension names the admission limit a connection ran into.
type Dimension string

const (
	DimensionScenario Dimension = "scenario"
	DimensionIP       Dimension = "ip"
	DimensionUser     Dimension = "user"
)

// CapacityError is returned by Admit when a connection limit is exhausted.
type CapacityError struct {
	Dimension Dimension
	Limit     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("realtime: %s connection limit reached (%d)", e.Dimension, e.Limit)
}

// IsCapacityError reports whether err is a *CapacityError and returns it.
func IsCapacityError(err error) (*CapacityError, bool) {
	var capErr *CapacityError
	if errors.As(err, &capErr) {
		return capErr, true
	}
	return nil, false
}
