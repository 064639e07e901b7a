// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Decoder states
const (
	stateIdle = iota
	stateLengthHi
	stateLength
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)

// Decoder implements the UART packet framing state machine. Bytes outside
// a frame are skipped until a start marker is seen.
type Decoder struct {
	state     int
	long      bool
	length    int
	payload   []byte
	crc       uint16
	rawBuffer []byte
	skipped   int
}

// NewDecoder creates a new packet decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		payload:   make([]byte, 0, MaxShortPayload),
		rawBuffer: make([]byte, 0, MaxShortPayload+shortOverhead),
	}
}

// Reset returns the decoder to idle and drops any partial frame.
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.long = false
	d.length = 0
	d.crc = 0
	d.payload = d.payload[:0]
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes of the frame in progress.
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// Skipped returns the number of bytes discarded while hunting for a start
// marker since the decoder was created.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Pending reports whether a frame is partially decoded.
func (d *Decoder) Pending() bool {
	return d.state != stateIdle
}

// DecodeByte feeds one byte to the state machine. It returns a packet once
// a complete frame with a matching CRC has been seen. A CRC mismatch returns
// telemetry.ErrCRCMismatch; a bad length or end marker returns
// telemetry.ErrFraming. In both cases the frame is discarded.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	if d.state != stateIdle {
		d.rawBuffer = append(d.rawBuffer, b)
	}

	switch d.state {
	case stateIdle:
		switch b {
		case StartShort:
			d.Reset()
			d.rawBuffer = append(d.rawBuffer, b)
			d.state = stateLength
		case StartLong:
			d.Reset()
			d.rawBuffer = append(d.rawBuffer, b)
			d.long = true
			d.state = stateLengthHi
		default:
			d.skipped++
		}
		return nil, nil

	case stateLengthHi:
		d.length = int(b) << 8
		d.state = stateLength
		return nil, nil

	case stateLength:
		d.length |= int(b)
		if d.length == 0 || d.length > MaxReceivePayload {
			n := d.length
			d.Reset()
			return nil, fmt.Errorf("%w: invalid length %d (max %d)", telemetry.ErrFraming, n, MaxReceivePayload)
		}
		d.state = statePayload
		return nil, nil

	case statePayload:
		d.payload = append(d.payload, b)
		if len(d.payload) >= d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		if b != EndByte {
			d.Reset()
			return nil, fmt.Errorf("%w: expected end byte 0x%02X, got 0x%02X", telemetry.ErrFraming, EndByte, b)
		}

		calculated := CalculateCRC(d.payload)
		if d.crc != calculated {
			received := d.crc
			d.Reset()
			return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", telemetry.ErrCRCMismatch, calculated, received)
		}

		payload := make([]byte, len(d.payload))
		copy(payload, d.payload)
		packet := &Packet{
			payload:   payload,
			crc:       d.crc,
			long:      d.long,
			timestamp: time.Now(),
		}
		d.Reset()
		return packet, nil

	default:
		state := d.state
		d.Reset()
		return nil, fmt.Errorf("%w: invalid state %d", telemetry.ErrFraming, state)
	}
}

// idlePoll is how long Receive waits after a read that returned no data.
const idlePoll = time.Millisecond

// Receive reads from r until a complete packet arrives and returns its
// payload. It fails with telemetry.ErrCRCMismatch as soon as a frame with a
// bad checksum completes, and with telemetry.ErrIncomplete when timeout
// elapses first. Framing errors resynchronise on the next start marker.
//
// r must return from Read periodically, as a serial port with a read
// timeout does, for the timeout to be honoured.
func Receive(ctx context.Context, r io.Reader, timeout time.Duration) ([]byte, error) {
	p, err := ReceivePacket(ctx, r, timeout)
	if err != nil {
		return nil, err
	}
	return p.Payload(), nil
}

// ReceivePacket is Receive returning the decoded packet.
func ReceivePacket(ctx context.Context, r io.Reader, timeout time.Duration) (*Packet, error) {
	decoder := NewDecoder()
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.Read(buf)
		if n == 1 {
			packet, decodeErr := decoder.DecodeByte(buf[0])
			if decodeErr != nil && !errors.Is(decodeErr, telemetry.ErrFraming) {
				return nil, decodeErr
			}
			if packet != nil {
				return packet, nil
			}
			continue
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		time.Sleep(idlePoll)
	}

	if decoder.Pending() {
		return nil, fmt.Errorf("%w: timed out with %d bytes buffered", telemetry.ErrIncomplete, len(decoder.GetRawBytes()))
	}
	return nil, fmt.Errorf("%w: no packet within %v", telemetry.ErrIncomplete, timeout)
}
