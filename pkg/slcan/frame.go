// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package slcan drives a serial-line CAN (Lawicel ASCII) adapter, the USB
// dongle used to reach the motor controller's CAN bus.
package slcan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesccan"
)

// EncodeFrame converts a frame into its ASCII transmit command.
func EncodeFrame(f vesccan.Frame) string {
	var b strings.Builder
	switch {
	case f.Remote && f.Extended:
		b.WriteByte('R')
	case f.Remote:
		b.WriteByte('r')
	case f.Extended:
		b.WriteByte('T')
	default:
		b.WriteByte('t')
	}

	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID&0x1FFFFFFF)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID&0x7FF)
	}

	n := f.Len
	if n > vesccan.MaxDataLength {
		n = vesccan.MaxDataLength
	}
	b.WriteByte('0' + n)

	if !f.Remote {
		for i := uint8(0); i < n; i++ {
			fmt.Fprintf(&b, "%02X", f.Data[i])
		}
	}

	b.WriteByte('\r')
	return b.String()
}

// ParseFrame decodes a received frame line without its terminator. Lines
// from the adapter carry no echo, so EchoID is always vesccan.EchoNone.
func ParseFrame(line string) (vesccan.Frame, error) {
	f := vesccan.Frame{EchoID: vesccan.EchoNone}
	if line == "" {
		return f, fmt.Errorf("%w: empty line", telemetry.ErrTooShort)
	}

	idLen := 3
	switch line[0] {
	case 't':
	case 'r':
		f.Remote = true
	case 'T':
		f.Extended = true
		idLen = 8
	case 'R':
		f.Extended = true
		f.Remote = true
		idLen = 8
	default:
		return f, fmt.Errorf("%w: not a frame: %q", telemetry.ErrFraming, line)
	}

	if len(line) < 1+idLen+1 {
		return f, fmt.Errorf("%w: %q", telemetry.ErrTooShort, line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return f, fmt.Errorf("%w: bad identifier in %q", telemetry.ErrFraming, line)
	}
	f.ID = uint32(id)

	dlc := line[1+idLen] - '0'
	if dlc > vesccan.MaxDataLength {
		return f, fmt.Errorf("%w: bad length in %q", telemetry.ErrFraming, line)
	}
	f.Len = dlc

	if f.Remote {
		return f, nil
	}

	data := line[2+idLen:]
	if len(data) < int(dlc)*2 {
		return f, fmt.Errorf("%w: %q declares %d bytes", telemetry.ErrTooShort, line, dlc)
	}
	for i := 0; i < int(dlc); i++ {
		v, err := strconv.ParseUint(data[i*2:i*2+2], 16, 8)
		if err != nil {
			return f, fmt.Errorf("%w: bad data in %q", telemetry.ErrFraming, line)
		}
		f.Data[i] = byte(v)
	}
	return f, nil
}
