// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesccan"
)

// DefaultBridgeIdleSleep is the pause after a read that returned nothing.
const DefaultBridgeIdleSleep = 5 * time.Millisecond

// CANBridgeConfig configures the text CAN bridge listener.
type CANBridgeConfig struct {
	IdleSleep time.Duration
}

// CANBridgeStreaming reads newline-terminated text readings from a CAN bridge
// on a serial port. The bridge talks to the bus itself, so nothing is sent.
type CANBridgeStreaming struct {
	open StreamOpener
	cfg  CANBridgeConfig
	port ByteStream
}

// NewCANBridgeStreaming returns the acquisition.
func NewCANBridgeStreaming(open StreamOpener, cfg CANBridgeConfig) (*CANBridgeStreaming, error) {
	if open == nil {
		return nil, errors.New("session: can bridge opener is nil")
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = DefaultBridgeIdleSleep
	}
	return &CANBridgeStreaming{open: open, cfg: cfg}, nil
}

// Name implements Acquisition.
func (c *CANBridgeStreaming) Name() string { return "canbridge" }

// Open implements Acquisition.
func (c *CANBridgeStreaming) Open(ctx context.Context) error {
	port, err := c.open(ctx)
	if err != nil {
		return err
	}
	c.port = port
	return nil
}

// Reset implements Acquisition.
func (c *CANBridgeStreaming) Reset() error {
	return resetInput(c.port)
}

// Close implements Acquisition.
func (c *CANBridgeStreaming) Close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}

// Tasks implements Acquisition.
func (c *CANBridgeStreaming) Tasks() []Task {
	return []Task{{Name: "canbridge listen", Run: c.listen}}
}

func (c *CANBridgeStreaming) listen(ctx context.Context, emit Emitter) error {
	port := c.port
	buf := make([]byte, 256)
	line := make([]byte, 0, vesccan.MaxBridgeLine)
	overflow := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", telemetry.ErrTransportClosed, err)
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.IdleSleep):
			}
			continue
		}

		for _, b := range buf[:n] {
			if b == '\n' {
				if overflow {
					emit.Frame(fmt.Errorf("%w: bridge line longer than %d bytes", telemetry.ErrFraming, vesccan.MaxBridgeLine))
				} else {
					publishBridgeLine(string(line), emit)
				}
				line = line[:0]
				overflow = false
				continue
			}
			if overflow {
				continue
			}
			if len(line) == vesccan.MaxBridgeLine {
				overflow = true
				continue
			}
			line = append(line, b)
		}
	}
}

// publishBridgeLine emits one parsed line. Blank lines are skipped.
func publishBridgeLine(text string, emit Emitter) {
	if strings.TrimSpace(text) == "" {
		return
	}
	parsed, err := vesccan.ParseBridgeLine(text)
	if err != nil {
		emit.Frame(err)
		return
	}
	emit.Frame(nil)
	emit.Emit(
		Reading{Quantity: telemetry.MotorCurrent, Value: parsed.Current},
		Reading{Quantity: telemetry.BusVoltage, Value: parsed.Voltage},
		Reading{Quantity: telemetry.MotorRPM, Value: parsed.RPM},
	)
}
