// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/dynostat/pkg/modbus"
	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Modbus poll timing
const (
	DefaultPollInterval = 100 * time.Millisecond
	MinPollInterval     = 10 * time.Millisecond
)

// ModbusConfig configures request/response polling of the transducer.
type ModbusConfig struct {
	Queries  []modbus.Query
	Interval time.Duration
	// Strict rejects responses whose CRC does not match.
	Strict     bool
	ReadBudget time.Duration
	IdleSleep  time.Duration
}

// ModbusPolling polls each query in turn on one byte stream. Requests are
// strictly sequential; a new request is never written before the previous
// response budget has elapsed.
type ModbusPolling struct {
	open     StreamOpener
	cfg      ModbusConfig
	exchange *modbus.Exchanger
	port     ByteStream
}

// NewModbusPolling validates cfg and returns the acquisition.
func NewModbusPolling(open StreamOpener, cfg ModbusConfig) (*ModbusPolling, error) {
	if open == nil {
		return nil, errors.New("session: modbus opener is nil")
	}
	if len(cfg.Queries) == 0 {
		return nil, errors.New("session: modbus needs at least one query")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Interval < MinPollInterval {
		cfg.Interval = MinPollInterval
	}

	ex := modbus.NewExchanger()
	if cfg.ReadBudget > 0 {
		ex.Budget = cfg.ReadBudget
	}
	if cfg.IdleSleep > 0 {
		ex.IdleSleep = cfg.IdleSleep
	}

	return &ModbusPolling{open: open, cfg: cfg, exchange: ex}, nil
}

// Name implements Acquisition.
func (m *ModbusPolling) Name() string { return "modbus" }

// Interval returns the effective poll interval.
func (m *ModbusPolling) Interval() time.Duration { return m.cfg.Interval }

// Open implements Acquisition.
func (m *ModbusPolling) Open(ctx context.Context) error {
	port, err := m.open(ctx)
	if err != nil {
		return err
	}
	m.port = port
	return nil
}

// Reset implements Acquisition.
func (m *ModbusPolling) Reset() error {
	return resetInput(m.port)
}

// Close implements Acquisition.
func (m *ModbusPolling) Close() error {
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}

// Tasks implements Acquisition.
func (m *ModbusPolling) Tasks() []Task {
	return []Task{{Name: "modbus poll", Run: m.poll}}
}

func (m *ModbusPolling) poll(ctx context.Context, emit Emitter) error {
	port := m.port
	parse := modbus.ParseResponse
	if m.cfg.Strict {
		parse = modbus.ParseResponseStrict
	}

	for {
		tickStart := time.Now()
		readings := make([]Reading, 0, len(m.cfg.Queries))

		for _, q := range m.cfg.Queries {
			if ctx.Err() != nil {
				return nil
			}

			frame, err := m.exchange.Transact(ctx, port, q.Request)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if telemetry.IsFrameError(err) {
					emit.Frame(fmt.Errorf("%s: %w", q, err))
					continue
				}
				return fmt.Errorf("%w: %w", telemetry.ErrTransportClosed, err)
			}

			raw, err := parse(frame)
			if err != nil {
				emit.Frame(fmt.Errorf("%s: %w (frame % X)", q, err, frame))
				continue
			}
			emit.Frame(nil)
			readings = append(readings, Reading{Quantity: q.Quantity, Value: q.Convert(raw)})
		}

		if len(readings) > 0 {
			emit.Emit(readings...)
		}

		wait := m.cfg.Interval - time.Since(tickStart)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// inputResetter is implemented by serial ports.
type inputResetter interface {
	ResetInputBuffer() error
}

func resetInput(s ByteStream) error {
	if r, ok := s.(inputResetter); ok {
		return r.ResetInputBuffer()
	}
	return nil
}
