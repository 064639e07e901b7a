// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "errors"

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateLogging
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateLogging:
		return "logging"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrInvalidState is returned when an operation is not allowed in the
// driver's current state.
var ErrInvalidState = errors.New("session: operation not allowed in current state")
