// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

// StatusKind classifies session status notifications.
type StatusKind uint8

const (
	StatusConnected StatusKind = iota
	StatusLogging
	StatusStopped
	StatusDisconnected
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusConnected:
		return "connected"
	case StatusLogging:
		return "logging"
	case StatusStopped:
		return "stopped"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusEvent is a session lifecycle notification. Err is set only for
// StatusError.
type StatusEvent struct {
	Kind StatusKind
	Err  error
}

// Sink receives decoded samples and status notifications. Calls are
// serialized by the session driver; implementations need no locking of
// their own for calls from a single driver.
type Sink interface {
	Publish(Sample)
	Status(StatusEvent)
}

// RecordSink is implemented by sinks that want a backfilled row of
// last-known values after every accepted sample.
type RecordSink interface {
	PublishRecord(Record)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Sample)     {}
func (discard) Status(StatusEvent) {}
