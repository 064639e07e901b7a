// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package modbus implements the Modbus RTU read-holding-registers exchange
// used to poll the dynamometer's torque, speed and power transducer.
//
// Only function 0x03 with a two-register read is supported. The transducer
// answers with a four-byte data block whose last two bytes hold the value.
package modbus

import "time"

// Function codes
const (
	FuncReadHoldingRegisters = 0x03
)

// Frame sizes
const (
	RequestSize       = 8
	ExpectedByteCount = 4
	headerSize        = 3 // station + function + byte count
	crcSize           = 2
	MinResponseSize   = headerSize + ExpectedByteCount + crcSize
)

// Transducer register map
const (
	DefaultStation = 0x01

	RegisterTorque = 0x0000
	RegisterSpeed  = 0x0002
	RegisterWatts  = 0x0004

	RegisterCount = 2
)

// Receive timing
const (
	DefaultReadBudget = 50 * time.Millisecond
	DefaultIdleSleep  = 5 * time.Millisecond
)

// CRC-16/MODBUS configuration
const (
	crcPolynomial = 0xA001 // reflected 0x8005
	crcInitial    = 0xFFFF
)
