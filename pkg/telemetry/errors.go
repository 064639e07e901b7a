// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "errors"

// Frame-level errors. A frame that fails with one of these is discarded and
// acquisition continues with the next request or read.
var (
	ErrTooShort     = errors.New("frame too short")
	ErrBadByteCount = errors.New("unexpected byte count")
	ErrCRCMismatch  = errors.New("CRC mismatch")
	ErrIncomplete   = errors.New("incomplete frame")
	ErrFraming      = errors.New("framing error")
)

// Session-level errors. These end the logging session.
var (
	ErrDeviceUnavailable     = errors.New("device unavailable")
	ErrConfigurationRejected = errors.New("configuration rejected")
	ErrTransportClosed       = errors.New("transport closed")
)

// IsFrameError reports whether err only invalidates the current frame.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrTooShort) ||
		errors.Is(err, ErrBadByteCount) ||
		errors.Is(err, ErrCRCMismatch) ||
		errors.Is(err, ErrIncomplete) ||
		errors.Is(err, ErrFraming)
}
