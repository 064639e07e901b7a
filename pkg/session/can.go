// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesccan"
)

// CANConfig configures status listening on a CAN adapter.
type CANConfig struct {
	Bitrate           int
	Node              uint8
	KeepAliveInterval time.Duration
	ReadTimeout       time.Duration
}

// CANStreaming drains status broadcasts on one task and sends keep-alive
// frames on another.
type CANStreaming struct {
	open    CANOpener
	cfg     CANConfig
	decoder vesccan.Decoder
	bus     CANBus
	adapter string
}

// NewCANStreaming validates cfg and returns the acquisition.
func NewCANStreaming(open CANOpener, cfg CANConfig) (*CANStreaming, error) {
	if open == nil {
		return nil, errors.New("session: can opener is nil")
	}
	if cfg.Bitrate == 0 {
		cfg.Bitrate = vesccan.Bitrate1M
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = vesccan.KeepAliveInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = vesccan.ReadTimeout
	}
	return &CANStreaming{open: open, cfg: cfg, decoder: vesccan.Decoder{Node: cfg.Node}}, nil
}

// Name implements Acquisition.
func (c *CANStreaming) Name() string { return "can" }

// Adapter returns the identifier reported by the adapter on Open.
func (c *CANStreaming) Adapter() string { return c.adapter }

// Open finds the adapter, sets the bitrate and starts the channel.
func (c *CANStreaming) Open(ctx context.Context) error {
	bus, err := c.open(ctx)
	if err != nil {
		return err
	}

	ids, err := bus.Scan()
	if err == nil && len(ids) == 0 {
		err = fmt.Errorf("%w: no CAN adapter found", telemetry.ErrDeviceUnavailable)
	}
	if err == nil {
		c.adapter = ids[0]
		err = bus.SetBitrate(c.cfg.Bitrate)
	}
	if err == nil {
		err = bus.Start()
	}
	if err != nil {
		bus.Close()
		return err
	}

	c.bus = bus
	return nil
}

// Reset implements Acquisition. Frames are consumed as they arrive, so
// there is no buffered state to clear.
func (c *CANStreaming) Reset() error { return nil }

// Close stops the channel and releases the adapter.
func (c *CANStreaming) Close() error {
	if c.bus == nil {
		return nil
	}
	err := c.bus.Close()
	c.bus = nil
	return err
}

// Tasks implements Acquisition.
func (c *CANStreaming) Tasks() []Task {
	return []Task{
		{Name: "can listen", Run: c.listen},
		{Name: "can keep-alive", Run: c.heartbeat},
	}
}

func (c *CANStreaming) listen(ctx context.Context, emit Emitter) error {
	bus := c.bus
	for {
		if ctx.Err() != nil {
			return nil
		}

		f, ok, err := bus.Read(c.cfg.ReadTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", telemetry.ErrTransportClosed, err)
		}
		if !ok {
			continue
		}

		msg, err := c.decoder.Decode(f)
		if err != nil {
			emit.Frame(fmt.Errorf("frame %s: %w", f, err))
			continue
		}

		switch m := msg.(type) {
		case vesccan.Status:
			emit.Frame(nil)
			emit.Emit(
				Reading{Quantity: telemetry.MotorRPM, Value: float64(m.ERPM)},
				Reading{Quantity: telemetry.MotorCurrent, Value: m.Current},
			)
		case vesccan.Status5:
			emit.Frame(nil)
			emit.Emit(Reading{Quantity: telemetry.BusVoltage, Value: m.InputVoltage})
		case nil:
			// not ours
		default:
			emit.Frame(nil)
		}
	}
}

func (c *CANStreaming) heartbeat(ctx context.Context, _ Emitter) error {
	bus := c.bus
	frame := vesccan.KeepAlive(c.cfg.Node)
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := bus.Send(frame); err != nil {
				return fmt.Errorf("%w: keep-alive: %w", telemetry.ErrTransportClosed, err)
			}
		}
	}
}
