// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsFrameError(t *testing.T) {
	frame := []error{ErrTooShort, ErrBadByteCount, ErrCRCMismatch, ErrIncomplete, ErrFraming}
	for _, err := range frame {
		if !IsFrameError(err) {
			t.Errorf("IsFrameError(%v) = false, want true", err)
		}
		wrapped := fmt.Errorf("torque@0x0000: %w", err)
		if !IsFrameError(wrapped) {
			t.Errorf("IsFrameError(%v) = false, want true", wrapped)
		}
	}

	fatal := []error{ErrDeviceUnavailable, ErrConfigurationRejected, ErrTransportClosed, errors.New("io failure"), nil}
	for _, err := range fatal {
		if IsFrameError(err) {
			t.Errorf("IsFrameError(%v) = true, want false", err)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	for _, q := range Quantities {
		got, err := ParseQuantity(q.String())
		if err != nil {
			t.Fatalf("ParseQuantity(%q): %v", q.String(), err)
		}
		if got != q {
			t.Errorf("ParseQuantity(%q) = %v, want %v", q.String(), got, q)
		}
		if q.Unit() == "" {
			t.Errorf("%s has no unit", q)
		}
	}

	if _, err := ParseQuantity("humidity"); err == nil {
		t.Error("expected error for unknown quantity")
	}
}

func TestSampleString(t *testing.T) {
	s := Sample{Quantity: Torque, Value: 12.34, Elapsed: 1500 * time.Millisecond}
	want := "   1.500s torque=12.340 Nm"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRecordValue(t *testing.T) {
	r := Record{Elapsed: time.Second, Values: map[Quantity]float64{BusVoltage: 48.4}}

	v, ok := r.Value(BusVoltage)
	if !ok || v != 48.4 {
		t.Errorf("Value(BusVoltage) = %v, %v", v, ok)
	}
	if _, ok := r.Value(MotorCurrent); ok {
		t.Error("Value(MotorCurrent) should be absent")
	}

	var empty Record
	if _, ok := empty.Value(Torque); ok {
		t.Error("zero Record should have no values")
	}
}

func TestStatusKindString(t *testing.T) {
	kinds := map[StatusKind]string{
		StatusConnected:    "connected",
		StatusLogging:      "logging",
		StatusStopped:      "stopped",
		StatusDisconnected: "disconnected",
		StatusError:        "error",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", k, got, want)
		}
	}
}
