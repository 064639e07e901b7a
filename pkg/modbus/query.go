// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package modbus

import (
	"fmt"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Query describes one polled register: the request to send and how to turn
// the returned register value into a physical quantity.
type Query struct {
	Quantity telemetry.Quantity
	Request  Request
	Signed   bool
	Scale    float64 // physical value = raw * Scale
}

// NewQuery builds a two-register query for the given station and register.
func NewQuery(q telemetry.Quantity, station uint8, register uint16, signed bool, scale float64) Query {
	return Query{
		Quantity: q,
		Request:  BuildReadRequest(station, register, RegisterCount),
		Signed:   signed,
		Scale:    scale,
	}
}

// Convert applies sign interpretation and scaling to a raw register value.
func (q Query) Convert(raw uint16) float64 {
	if q.Signed {
		return float64(int16(raw)) * q.Scale
	}
	return float64(raw) * q.Scale
}

func (q Query) String() string {
	return fmt.Sprintf("%s@0x%04X", q.Quantity, q.Request.StartRegister())
}

// TorqueQuery reads signed torque in hundredths of a newton metre.
func TorqueQuery(station uint8) Query {
	return NewQuery(telemetry.Torque, station, RegisterTorque, true, 0.01)
}

// SpeedQuery reads shaft speed in tenths of an RPM.
func SpeedQuery(station uint8) Query {
	return NewQuery(telemetry.Speed, station, RegisterSpeed, false, 0.1)
}

// WattsQuery reads mechanical power in watts.
func WattsQuery(station uint8) Query {
	return NewQuery(telemetry.Watts, station, RegisterWatts, false, 1)
}

// DefaultQueries returns the torque, speed and power queries in poll order.
func DefaultQueries(station uint8) []Query {
	return []Query{TorqueQuery(station), SpeedQuery(station), WattsQuery(station)}
}
