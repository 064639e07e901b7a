// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package modbus

import (
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Request is an encoded read-holding-registers request frame.
type Request [RequestSize]byte

// Bytes returns the request as a slice suitable for writing.
func (r Request) Bytes() []byte {
	return r[:]
}

// Station returns the addressed station.
func (r Request) Station() uint8 {
	return r[0]
}

// StartRegister returns the first register read by the request.
func (r Request) StartRegister() uint16 {
	return binary.BigEndian.Uint16(r[2:4])
}

func (r Request) String() string {
	return fmt.Sprintf("% X", r[:])
}

// BuildReadRequest encodes a function 0x03 request. The start register and
// count are big-endian; the CRC is appended low byte first.
func BuildReadRequest(station uint8, startReg, count uint16) Request {
	var r Request
	r[0] = station
	r[1] = FuncReadHoldingRegisters
	binary.BigEndian.PutUint16(r[2:4], startReg)
	binary.BigEndian.PutUint16(r[4:6], count)
	crc := CalculateCRC(r[:6])
	r[6] = byte(crc)
	r[7] = byte(crc >> 8)
	return r
}

// Response is a decoded read-holding-registers response.
type Response struct {
	station   uint8
	function  uint8
	byteCount uint8
	data      []byte
	crc       uint16
	computed  uint16
}

// Station returns the responding station.
func (r *Response) Station() uint8 {
	return r.station
}

// Function returns the function code echoed by the station.
func (r *Response) Function() uint8 {
	return r.function
}

// ByteCount returns the declared data length.
func (r *Response) ByteCount() uint8 {
	return r.byteCount
}

// Data returns the register data block.
func (r *Response) Data() []byte {
	return r.data
}

// CRC returns the checksum carried by the frame.
func (r *Response) CRC() uint16 {
	return r.crc
}

// CRCValid reports whether the carried checksum matches the frame contents.
func (r *Response) CRCValid() bool {
	return r.crc == r.computed
}

// Value returns the last two data bytes as a big-endian register value.
func (r *Response) Value() uint16 {
	return binary.BigEndian.Uint16(r.data[len(r.data)-2:])
}

// DecodeResponse checks the structure of a response frame. Any trailing
// bytes after the CRC are ignored.
func DecodeResponse(buf []byte) (*Response, error) {
	if len(buf) < MinResponseSize {
		return nil, fmt.Errorf("%w: %d bytes (need %d)", telemetry.ErrTooShort, len(buf), MinResponseSize)
	}
	byteCount := buf[2]
	if byteCount != ExpectedByteCount {
		return nil, fmt.Errorf("%w: %d (expected %d)", telemetry.ErrBadByteCount, byteCount, ExpectedByteCount)
	}
	end := headerSize + int(byteCount)
	return &Response{
		station:   buf[0],
		function:  buf[1],
		byteCount: byteCount,
		data:      buf[headerSize:end],
		crc:       binary.LittleEndian.Uint16(buf[end : end+crcSize]),
		computed:  CalculateCRC(buf[:end]),
	}, nil
}

// ParseResponse returns the register value of a response frame. The CRC is
// not checked; use ParseResponseStrict to reject corrupted frames.
func ParseResponse(buf []byte) (uint16, error) {
	resp, err := DecodeResponse(buf)
	if err != nil {
		return 0, err
	}
	return resp.Value(), nil
}

// ParseResponseStrict is ParseResponse with CRC verification.
func ParseResponseStrict(buf []byte) (uint16, error) {
	resp, err := DecodeResponse(buf)
	if err != nil {
		return 0, err
	}
	if !resp.CRCValid() {
		return 0, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", telemetry.ErrCRCMismatch, resp.computed, resp.crc)
	}
	return resp.Value(), nil
}

// FormatFrame renders a raw frame as space-separated hex for diagnostics.
func FormatFrame(buf []byte) string {
	if len(buf) == 0 {
		return "<empty>"
	}
	return fmt.Sprintf("% X", buf)
}
