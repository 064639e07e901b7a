// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesc"
)

// UART timing defaults
const (
	DefaultUARTPollInterval = 100 * time.Millisecond
	DefaultUARTTimeout      = 100 * time.Millisecond
	DefaultUARTKeepAlive    = 250 * time.Millisecond
)

// UARTConfig configures GET_VALUES polling of the motor controller.
type UARTConfig struct {
	// Node forwards every command over CAN to this controller; 0 talks
	// to the controller on the UART.
	Node              uint8
	PollInterval      time.Duration
	Timeout           time.Duration
	KeepAliveInterval time.Duration
}

// UARTStreaming polls GET_VALUES on one task and sends ALIVE keep-alives
// on another. Writes from both tasks are serialized.
type UARTStreaming struct {
	open StreamOpener
	cfg  UARTConfig

	writeMu sync.Mutex
	port    ByteStream

	getValues []byte
	alive     []byte
}

// NewUARTStreaming validates cfg and returns the acquisition.
func NewUARTStreaming(open StreamOpener, cfg UARTConfig) (*UARTStreaming, error) {
	if open == nil {
		return nil, errors.New("session: uart opener is nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultUARTPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultUARTTimeout
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultUARTKeepAlive
	}

	getValues, err := vesc.ForwardCAN(cfg.Node, vesc.NewGetValues()).Bytes()
	if err != nil {
		return nil, err
	}
	alive, err := vesc.ForwardCAN(cfg.Node, vesc.NewAlive()).Bytes()
	if err != nil {
		return nil, err
	}

	return &UARTStreaming{open: open, cfg: cfg, getValues: getValues, alive: alive}, nil
}

// Name implements Acquisition.
func (u *UARTStreaming) Name() string { return "uart" }

// Open implements Acquisition.
func (u *UARTStreaming) Open(ctx context.Context) error {
	port, err := u.open(ctx)
	if err != nil {
		return err
	}
	u.port = port
	return nil
}

// Reset implements Acquisition.
func (u *UARTStreaming) Reset() error {
	return resetInput(u.port)
}

// Close implements Acquisition.
func (u *UARTStreaming) Close() error {
	if u.port == nil {
		return nil
	}
	err := u.port.Close()
	u.port = nil
	return err
}

// Tasks implements Acquisition.
func (u *UARTStreaming) Tasks() []Task {
	return []Task{
		{Name: "uart listen", Run: u.listen},
		{Name: "uart keep-alive", Run: u.heartbeat},
	}
}

func (u *UARTStreaming) write(port ByteStream, frame []byte) error {
	u.writeMu.Lock()
	defer u.writeMu.Unlock()
	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", telemetry.ErrTransportClosed, err)
	}
	return nil
}

func (u *UARTStreaming) listen(ctx context.Context, emit Emitter) error {
	port := u.port
	for {
		tickStart := time.Now()

		if err := u.write(port, u.getValues); err != nil {
			return err
		}

		payload, err := vesc.Receive(ctx, port, u.cfg.Timeout)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil && telemetry.IsFrameError(err):
			emit.Frame(err)
		case err != nil:
			return fmt.Errorf("%w: %w", telemetry.ErrTransportClosed, err)
		default:
			u.publish(payload, emit)
		}

		wait := u.cfg.PollInterval - time.Since(tickStart)
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

func (u *UARTStreaming) publish(payload []byte, emit Emitter) {
	values, err := vesc.DecodeValues(payload)
	if err != nil {
		emit.Frame(err)
		return
	}
	emit.Frame(nil)

	var readings []Reading
	if values.Has(vesc.FieldAvgMotorCurrent) {
		readings = append(readings, Reading{Quantity: telemetry.MotorCurrent, Value: values.AvgMotorCurrent})
	}
	if values.Has(vesc.FieldRPM) {
		readings = append(readings, Reading{Quantity: telemetry.MotorRPM, Value: float64(values.RPM)})
	}
	if values.Has(vesc.FieldInputVoltage) {
		readings = append(readings, Reading{Quantity: telemetry.BusVoltage, Value: values.InputVoltage})
	}
	if len(readings) > 0 {
		emit.Emit(readings...)
	}
}

func (u *UARTStreaming) heartbeat(ctx context.Context, _ Emitter) error {
	port := u.port
	ticker := time.NewTicker(u.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := u.write(port, u.alive); err != nil {
				return err
			}
		}
	}
}
