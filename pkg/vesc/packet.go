// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Packet is a UART packet payload together with its framing metadata.
type Packet struct {
	payload   []byte
	crc       uint16
	long      bool
	timestamp time.Time
}

// NewPacket wraps a payload. The CRC is computed immediately.
func NewPacket(payload []byte) *Packet {
	return &Packet{
		payload:   payload,
		crc:       CalculateCRC(payload),
		long:      len(payload) > MaxShortPayload,
		timestamp: time.Now(),
	}
}

// Command returns the first payload byte, or -1 for an empty payload.
func (p *Packet) Command() int {
	if len(p.payload) == 0 {
		return -1
	}
	return int(p.payload[0])
}

// Payload returns the packet payload including the command byte.
func (p *Packet) Payload() []byte {
	return p.payload
}

// Length returns the payload length.
func (p *Packet) Length() int {
	return len(p.payload)
}

// CRC returns the payload checksum.
func (p *Packet) CRC() uint16 {
	return p.crc
}

// IsLong reports whether the packet uses the two-byte length form.
func (p *Packet) IsLong() bool {
	return p.long
}

// Timestamp returns when the packet was built or decoded.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// Bytes returns the framed packet.
func (p *Packet) Bytes() ([]byte, error) {
	return Pack(p.payload)
}

// Pack frames a payload for transmission. Payloads that fit a one-byte
// length use the short form; longer payloads use the two-byte form.
//
// Pack accepts exactly the payloads the Decoder accepts: at least the
// command byte and at most MaxReceivePayload bytes.
func Pack(payload []byte) ([]byte, error) {
	n := len(payload)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty payload", telemetry.ErrFraming)
	}
	if n > MaxReceivePayload {
		return nil, fmt.Errorf("%w: payload too large: %d bytes (max %d)", telemetry.ErrFraming, n, MaxReceivePayload)
	}

	var frame []byte
	if n <= MaxShortPayload {
		frame = make([]byte, 0, n+shortOverhead)
		frame = append(frame, StartShort, byte(n))
	} else {
		frame = make([]byte, 0, n+longOverhead)
		frame = append(frame, StartLong, byte(n>>8), byte(n))
	}

	crc := CalculateCRC(payload)
	frame = append(frame, payload...)
	frame = append(frame, byte(crc>>8), byte(crc), EndByte)
	return frame, nil
}
