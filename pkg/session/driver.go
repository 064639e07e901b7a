// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session drives an acquisition through the connect, log, stop
// lifecycle and publishes decoded samples to a sink.
//
// State machine:
//
//	Idle -> Connected -> Logging -> Idle    (Stop or Disconnect)
//	Connected|Logging -> Error -> Idle      (fatal transport failure)
//
// Tasks are joined before the transport is closed, and no sample reaches
// the sink once the session has left Logging.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/dynostat/pkg/policy"
	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the clock used for sample timestamps.
func WithClock(c Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithPolicy sets the field-validity policy applied before publishing.
func WithPolicy(p policy.Policy) Option {
	return func(d *Driver) { d.policy = p }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = log }
}

// WithObserver sets the frame and sample observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// Driver owns one acquisition and its sink for the lifetime of a session.
type Driver struct {
	acq      Acquisition
	sink     telemetry.Sink
	policy   policy.Policy
	clock    Clock
	log      logrus.FieldLogger
	observer Observer

	// mu guards the fields below and serializes every sink call.
	mu       sync.Mutex
	state    State
	run      uint64
	started  time.Time
	last     map[telemetry.Quantity]float64
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool
	err      error
}

// New creates a driver in the Idle state.
func New(acq Acquisition, sink telemetry.Sink, opts ...Option) *Driver {
	d := &Driver{
		acq:      acq,
		sink:     sink,
		clock:    RealClock,
		log:      logrus.StandardLogger(),
		observer: nopObserver{},
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sink == nil {
		d.sink = telemetry.Discard
	}
	d.log = d.log.WithField("transport", acq.Name())
	return d
}

// State returns the current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Connect opens the transport. Open failures are returned unchanged and
// leave the driver Idle.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateIdle {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, state)
	}
	d.mu.Unlock()

	if err := d.acq.Open(ctx); err != nil {
		d.log.WithError(err).Error("Failed to open transport")
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateConnected
	d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusConnected})
	d.log.Info("Connected")
	return nil
}

// Start resets the session clock and runs the acquisition's tasks until
// Stop, Disconnect, a fatal transport error, or cancellation of ctx.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateConnected {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, d.state)
	}

	if err := d.acq.Reset(); err != nil {
		d.log.WithError(err).Debug("Failed to clear input buffer")
	}
	d.run++
	d.started = d.clock.Now()
	d.last = make(map[telemetry.Quantity]float64)
	d.stopping = false
	d.err = nil
	d.state = StateLogging

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	em := &emitter{d: d, run: d.run}
	for _, task := range d.acq.Tasks() {
		task := task
		g.Go(func() error {
			err := task.Run(gctx, em)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	go func(run uint64) {
		err := g.Wait()
		cancel()
		d.finish(run, err)
		close(done)
	}(d.run)

	d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusLogging})
	d.log.Info("Logging started")
	return nil
}

// finish runs after every task of a run has returned. A Stop in progress
// owns the transport; otherwise the run ended on its own and the driver
// closes the transport here.
func (d *Driver) finish(run uint64, err error) {
	d.mu.Lock()
	if d.run != run || d.stopping || d.state != StateLogging {
		d.mu.Unlock()
		return
	}

	d.stopping = true
	if err != nil {
		d.err = err
		d.state = StateError
		d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusError, Err: err})
		d.log.WithError(err).Error("Session failed")
	}
	d.mu.Unlock()

	if closeErr := d.acq.Close(); closeErr != nil {
		d.log.WithError(closeErr).Warn("Failed to close transport")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusStopped})
		d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusDisconnected})
		d.log.Info("Logging ended")
	}
	d.state = StateIdle
}

// Stop ends logging, joins every task, then closes the transport and reports
// Stopped followed by Disconnected. Samples from reads still in flight are
// discarded. Stopping a session that is not logging is a no-op.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if d.stopping || d.state == StateError {
		// The run already ended on its own; finish is closing the
		// transport and will move to Idle.
		done := d.done
		d.mu.Unlock()
		<-done
		return nil
	}
	if d.state != StateLogging {
		d.mu.Unlock()
		return nil
	}

	d.stopping = true
	d.state = StateIdle
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done

	err := d.acq.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusStopped})
	d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusDisconnected})
	d.log.Info("Logging stopped")
	return err
}

// Disconnect closes the transport, stopping logging first if needed. Every
// close of the transport is reported once as Disconnected, except after a
// fatal error, whose Error status ends the session.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	var err error
	switch state {
	case StateError, StateLogging:
		return d.Stop()
	case StateConnected:
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		err = d.acq.Close()
	default:
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink.Status(telemetry.StatusEvent{Kind: telemetry.StatusDisconnected})
	d.log.Info("Disconnected")
	return err
}

// Wait blocks until the current logging run has ended.
func (d *Driver) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Err returns the fatal error that ended the last run, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Elapsed returns the time since logging started.
func (d *Driver) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateLogging {
		return 0
	}
	return d.clock.Now().Sub(d.started)
}

type emitter struct {
	d   *Driver
	run uint64
}

func (e *emitter) Emit(readings ...Reading) {
	d := e.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateLogging || d.run != e.run {
		return
	}

	elapsed := d.clock.Now().Sub(d.started)
	accepted := 0
	for _, r := range readings {
		sample := telemetry.Sample{Quantity: r.Quantity, Value: r.Value, Elapsed: elapsed}
		sample, verdict, ok := d.policy.Apply(sample)
		d.observer.ObserveSample(d.acq.Name(), sample, verdict)
		if !ok {
			d.log.WithFields(logrus.Fields{"quantity": r.Quantity, "value": r.Value}).Debug("Sample suppressed")
			continue
		}
		d.sink.Publish(sample)
		d.last[sample.Quantity] = sample.Value
		accepted++
	}

	if accepted == 0 {
		return
	}
	if rs, ok := d.sink.(telemetry.RecordSink); ok {
		values := make(map[telemetry.Quantity]float64, len(d.last))
		for q, v := range d.last {
			values[q] = v
		}
		rs.PublishRecord(telemetry.Record{Elapsed: elapsed, Values: values})
	}
}

func (e *emitter) Frame(err error) {
	d := e.d
	d.observer.ObserveFrame(d.acq.Name(), err)
	if err != nil {
		d.log.WithError(err).Debug("Dropped frame")
	}
}
