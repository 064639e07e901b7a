// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesccan

import (
	"fmt"
	"strings"
)

// Frame is a classic CAN frame as delivered by an adapter, including the
// adapter's receive flags.
type Frame struct {
	ID       uint32
	Extended bool
	Remote   bool
	Error    bool
	EchoID   uint32
	Len      uint8
	Data     [MaxDataLength]byte
}

// NewFrame returns an extended data frame carrying data. Data beyond eight
// bytes is truncated.
func NewFrame(id uint32, data []byte) Frame {
	f := Frame{ID: id, Extended: true, EchoID: EchoNone}
	f.Len = uint8(copy(f.Data[:], data))
	return f
}

// Payload returns the valid data bytes.
func (f Frame) Payload() []byte {
	n := int(f.Len)
	if n > MaxDataLength {
		n = MaxDataLength
	}
	return f.Data[:n]
}

// Packet returns the packet identifier of an extended frame.
func (f Frame) Packet() uint8 {
	return uint8(f.ID >> 8)
}

// Node returns the controller node of an extended frame.
func (f Frame) Node() uint8 {
	return uint8(f.ID)
}

func (f Frame) String() string {
	var flags []string
	if f.Extended {
		flags = append(flags, "EXT")
	}
	if f.Remote {
		flags = append(flags, "RTR")
	}
	if f.Error {
		flags = append(flags, "ERR")
	}
	if f.EchoID != EchoNone {
		flags = append(flags, fmt.Sprintf("ECHO=%d", f.EchoID))
	}
	return fmt.Sprintf("%08X [%d] % X %s", f.ID, f.Len, f.Payload(), strings.Join(flags, ","))
}

// MakeExtendedID builds the 29-bit identifier for a packet addressed to or
// sent by node.
func MakeExtendedID(packet, node uint8) uint32 {
	return uint32(packet)<<8 | uint32(node)
}

// Accept reports whether a received frame is worth decoding: an extended
// data frame from the bus, not an echo and not an error frame. Frames that
// fail this check are dropped silently.
func Accept(f Frame) bool {
	return f.Extended && f.EchoID == EchoNone && !f.Error
}
