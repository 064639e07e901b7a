// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry defines the samples, status events and sink contract shared
// by the dynamometer and motor controller protocol codecs.
package telemetry

import (
	"fmt"
	"time"
)

// Quantity identifies a physical quantity carried by a Sample.
type Quantity uint8

const (
	Torque Quantity = iota
	Speed
	Watts
	MotorCurrent
	BusVoltage
	MotorRPM
)

// Quantities lists every known quantity in column order.
var Quantities = []Quantity{Torque, Speed, Watts, MotorCurrent, BusVoltage, MotorRPM}

// String returns the quantity's stable identifier, used as a metric label
// and MQTT topic segment.
func (q Quantity) String() string {
	switch q {
	case Torque:
		return "torque"
	case Speed:
		return "speed"
	case Watts:
		return "watts"
	case MotorCurrent:
		return "motor_current"
	case BusVoltage:
		return "bus_voltage"
	case MotorRPM:
		return "motor_rpm"
	default:
		return fmt.Sprintf("quantity_%d", uint8(q))
	}
}

// Unit returns the engineering unit of the quantity.
func (q Quantity) Unit() string {
	switch q {
	case Torque:
		return "Nm"
	case Speed, MotorRPM:
		return "RPM"
	case Watts:
		return "W"
	case MotorCurrent:
		return "A"
	case BusVoltage:
		return "V"
	default:
		return ""
	}
}

// ParseQuantity returns the quantity named by s.
func ParseQuantity(s string) (Quantity, error) {
	for _, q := range Quantities {
		if q.String() == s {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quantity %q", s)
}

// Sample is one decoded physical value. Elapsed is measured from the start
// of the logging session on a monotonic clock.
type Sample struct {
	Quantity Quantity
	Value    float64
	Elapsed  time.Duration
}

func (s Sample) String() string {
	return fmt.Sprintf("%8.3fs %s=%.3f %s", s.Elapsed.Seconds(), s.Quantity, s.Value, s.Quantity.Unit())
}

// Record is a row of last-known values taken right after a sample was
// accepted. Quantities that have not been observed yet are absent.
type Record struct {
	Elapsed time.Duration
	Values  map[Quantity]float64
}

// Value returns the last-known value of q, or 0 and false.
func (r Record) Value(q Quantity) (float64, bool) {
	v, ok := r.Values[q]
	return v, ok
}
