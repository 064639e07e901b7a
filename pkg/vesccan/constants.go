// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vesccan decodes the motor controller's periodic CAN status
// broadcasts and builds the keep-alive frames that keep it driving.
//
// Identifiers are 29-bit extended: (packet << 8) | controller node.
package vesccan

import "time"

// Packet identifiers carried in bits 8..15 of the CAN id
const (
	PacketSetDuty         = 0
	PacketSetCurrent      = 1
	PacketSetCurrentBrake = 2
	PacketSetRPM          = 3
	PacketStatus          = 9
	PacketSetCurrentRel   = 10
	PacketStatus2         = 14
	PacketStatus3         = 15
	PacketStatus4         = 16
	PacketStatus5         = 27
)

// Adapter frame flags
const (
	// EchoNone marks a frame received from the bus rather than an echo of
	// one this host transmitted.
	EchoNone = 0xFFFFFFFF

	MaxDataLength = 8
)

// Timing
const (
	KeepAliveInterval = 20 * time.Millisecond
	ReadTimeout       = 10 * time.Millisecond
)

// Supported bus bitrates
const (
	Bitrate125k = 125000
	Bitrate250k = 250000
	Bitrate500k = 500000
	Bitrate1M   = 1000000
)

// Bitrates lists the bitrates the controller family supports.
var Bitrates = []int{Bitrate125k, Bitrate250k, Bitrate500k, Bitrate1M}

// Fixed-point scales
const (
	relativeScale = 100000
	currentScale  = 1000
	dutyScale     = 100000
)
