// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"errors"
	"io"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Multi fans out to several sinks in order. Records go to the members
// that accept them.
type Multi []telemetry.Sink

func (m Multi) Publish(s telemetry.Sample) {
	for _, sink := range m {
		sink.Publish(s)
	}
}

func (m Multi) Status(ev telemetry.StatusEvent) {
	for _, sink := range m {
		sink.Status(ev)
	}
}

func (m Multi) PublishRecord(r telemetry.Record) {
	for _, sink := range m {
		if rs, ok := sink.(telemetry.RecordSink); ok {
			rs.PublishRecord(r)
		}
	}
}

// Close closes every member that is an io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
