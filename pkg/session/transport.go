// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"io"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesccan"
)

// ByteStream is a serial-like transport: a serial port or a serial bridge.
// Read must return periodically even when no data arrives.
type ByteStream interface {
	io.Reader
	io.Writer
	io.Closer
}

// StreamOpener opens a byte stream. Failures to find or open the device
// should wrap telemetry.ErrDeviceUnavailable.
type StreamOpener func(ctx context.Context) (ByteStream, error)

// CANBus is a CAN adapter.
type CANBus interface {
	Scan() ([]string, error)
	SetBitrate(bitrate int) error
	Start() error
	Stop() error
	Send(f vesccan.Frame) error
	Read(timeout time.Duration) (vesccan.Frame, bool, error)
	Close() error
}

// CANOpener opens a CAN adapter.
type CANOpener func(ctx context.Context) (CANBus, error)

// Reading is one decoded value before policy is applied.
type Reading struct {
	Quantity telemetry.Quantity
	Value    float64
}

// Emitter is handed to acquisition tasks. Emit publishes the readings
// decoded from one frame or poll tick under a single timestamp. Frame
// reports the outcome of every received frame, nil for a valid one.
type Emitter interface {
	Emit(readings ...Reading)
	Frame(err error)
}

// Task is one concurrently running part of an acquisition. It returns nil
// when ctx is cancelled and a non-nil error only for session-fatal
// transport failures.
type Task struct {
	Name string
	Run  func(ctx context.Context, emit Emitter) error
}

// Acquisition is a transport together with its acquisition discipline.
type Acquisition interface {
	// Name identifies the transport in logs and metrics.
	Name() string
	// Open acquires the transport.
	Open(ctx context.Context) error
	// Reset clears buffered input ahead of a logging run. A failure is
	// not fatal; stale bytes are dropped as bad frames.
	Reset() error
	// Tasks returns the tasks to run while logging.
	Tasks() []Task
	// Close releases the transport. It is only called after every task
	// has returned.
	Close() error
}
