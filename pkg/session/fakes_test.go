// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesccan"
	"github.com/sirupsen/logrus"
)

// recordingSink captures everything the driver publishes.
type recordingSink struct {
	mu       sync.Mutex
	samples  []telemetry.Sample
	statuses []telemetry.StatusEvent
	records  []telemetry.Record
}

func (s *recordingSink) Publish(sample telemetry.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
}

func (s *recordingSink) Status(ev telemetry.StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, ev)
}

func (s *recordingSink) PublishRecord(r telemetry.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

func (s *recordingSink) Samples() []telemetry.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Sample(nil), s.samples...)
}

func (s *recordingSink) Records() []telemetry.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Record(nil), s.records...)
}

func (s *recordingSink) Count(kind telemetry.StatusKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.statuses {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (s *recordingSink) Kinds() []telemetry.StatusKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]telemetry.StatusKind, 0, len(s.statuses))
	for _, ev := range s.statuses {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (s *recordingSink) ByQuantity(q telemetry.Quantity) []telemetry.Sample {
	var out []telemetry.Sample
	for _, sample := range s.Samples() {
		if sample.Quantity == q {
			out = append(out, sample)
		}
	}
	return out
}

// fakeClock only moves when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeBus is a scripted CAN adapter.
type fakeBus struct {
	mu         sync.Mutex
	ids        []string
	bitrateErr error
	sendErr    error
	bitrate    int
	started    bool
	closed     bool
	sent       []vesccan.Frame

	frames chan vesccan.Frame

	// hold makes Read block until a frame arrives on release, ignoring
	// the timeout, and signal inRead when it starts waiting.
	hold    bool
	inRead  chan struct{}
	release chan vesccan.Frame
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		ids:     []string{"V1013"},
		frames:  make(chan vesccan.Frame, 16),
		inRead:  make(chan struct{}, 1),
		release: make(chan vesccan.Frame),
	}
}

func (b *fakeBus) Scan() ([]string, error) { return b.ids, nil }

func (b *fakeBus) SetBitrate(bitrate int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bitrate = bitrate
	return b.bitrateErr
}

func (b *fakeBus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
	return nil
}

func (b *fakeBus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	return nil
}

func (b *fakeBus) Send(f vesccan.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, f)
	return nil
}

func (b *fakeBus) Read(timeout time.Duration) (vesccan.Frame, bool, error) {
	b.mu.Lock()
	hold, closed := b.hold, b.closed
	b.mu.Unlock()
	if closed {
		return vesccan.Frame{}, false, errors.New("read from closed adapter")
	}

	if hold {
		select {
		case b.inRead <- struct{}{}:
		default:
		}
		return <-b.release, true, nil
	}

	select {
	case f := <-b.frames:
		return f, true, nil
	case <-time.After(timeout):
		return vesccan.Frame{}, false, nil
	}
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	b.closed = true
	return nil
}

func (b *fakeBus) Sent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func (b *fakeBus) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *fakeBus) setSendErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

func (b *fakeBus) opener() CANOpener {
	return func(context.Context) (CANBus, error) { return b, nil }
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}
