// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vesc implements the motor controller's UART packet protocol:
// length-prefixed framing with a CRC-16/CCITT trailer, command builders, and
// decoders for the replies the dynamometer logger consumes.
//
// Frame layout:
//
//	short: 0x02 len            payload crc_hi crc_lo 0x03
//	long:  0x03 len_hi len_lo  payload crc_hi crc_lo 0x03
package vesc

// Protocol framing bytes
const (
	StartShort = 0x02
	StartLong  = 0x03
	EndByte    = 0x03
)

// Packet size limits
const (
	MaxShortPayload   = 0xFF // largest payload with a one-byte length
	MaxReceivePayload = 4096 // largest payload packed or buffered
	shortOverhead     = 5    // start + len + crc(2) + end
	longOverhead      = 6    // start + len(2) + crc(2) + end
)

// CRC-16/CCITT (XMODEM) configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0x0000
)

// Command identifiers
const (
	CommFirmwareVersion = 0
	CommGetValues       = 4
	CommSetDuty         = 5
	CommSetCurrent      = 6
	CommSetCurrentBrake = 7
	CommSetRPM          = 8
	CommSetChuckData    = 23
	CommAlive           = 29
	CommForwardCAN      = 33
)

// Fixed-point scale factors used by command arguments
const (
	dutyScale    = 100000
	currentScale = 1000
)
