// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package modbus

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// InputResetter is implemented by ports that can discard pending input.
type InputResetter interface {
	ResetInputBuffer() error
}

// Exchanger performs one request/response exchange on a byte stream.
//
// The transducer gives no length hint beyond the byte count, so the response
// is collected by draining the port for a fixed budget. Ports must return
// from Read periodically (a serial read timeout) for the budget to hold.
type Exchanger struct {
	Budget    time.Duration
	IdleSleep time.Duration
}

// NewExchanger returns an Exchanger with the default drain timing.
func NewExchanger() *Exchanger {
	return &Exchanger{Budget: DefaultReadBudget, IdleSleep: DefaultIdleSleep}
}

// Transact writes req and returns every byte received within the budget.
// Write failures are returned as-is and end the session; an empty drain
// returns telemetry.ErrIncomplete.
func (e *Exchanger) Transact(ctx context.Context, port io.ReadWriter, req Request) ([]byte, error) {
	if r, ok := port.(InputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return nil, fmt.Errorf("reset input: %w", err)
		}
	}

	if _, err := port.Write(req.Bytes()); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	budget := e.Budget
	if budget <= 0 {
		budget = DefaultReadBudget
	}
	idle := e.IdleSleep
	if idle <= 0 {
		idle = DefaultIdleSleep
	}

	deadline := time.Now().Add(budget)
	var frame []byte
	buf := make([]byte, 64)

	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if n > 0 {
			frame = append(frame, buf[:n]...)
		}
		if err != nil && err != io.EOF {
			return frame, fmt.Errorf("read response: %w", err)
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return frame, ctx.Err()
		case <-time.After(idle):
		}
	}

	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: no response from station %d", telemetry.ErrIncomplete, req.Station())
	}
	return frame, nil
}
