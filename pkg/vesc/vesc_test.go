// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// referenceCRC is the bitwise CRC-16/CCITT used to cross-check the table.
func referenceCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func mustPack(t *testing.T, payload []byte) []byte {
	t.Helper()
	frame, err := Pack(payload)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	return frame
}

func decodeAll(t *testing.T, d *Decoder, data []byte) (*Packet, error) {
	t.Helper()
	for i, b := range data {
		p, err := d.DecodeByte(b)
		if err != nil || p != nil {
			if i != len(data)-1 {
				t.Fatalf("decoder finished early at byte %d of %d", i, len(data))
			}
			return p, err
		}
	}
	return nil, nil
}

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	if crc := CalculateCRC([]byte{}); crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestCalculateCRC_CheckValue(t *testing.T) {
	if crc := CalculateCRC([]byte("123456789")); crc != 0x31C3 {
		t.Errorf("CRC mismatch: expected 0x31C3, got 0x%04X", crc)
	}
}

func TestCalculateCRC_MatchesBitwise(t *testing.T) {
	rng := newFuzzRng(t)
	for round := 0; round < getFuzzRounds(); round++ {
		data := make([]byte, rng.Intn(300))
		rng.Read(data)
		if got, want := CalculateCRC(data), referenceCRC(data); got != want {
			t.Fatalf("round %d: table 0x%04X, bitwise 0x%04X for % X", round, got, want, data)
		}
	}
}

// ============================================================
// Pack Tests
// ============================================================

func TestPack_ShortForm(t *testing.T) {
	frame := mustPack(t, []byte{CommGetValues})
	crc := CalculateCRC([]byte{CommGetValues})
	expected := []byte{StartShort, 0x01, CommGetValues, byte(crc >> 8), byte(crc), EndByte}
	if !bytes.Equal(frame, expected) {
		t.Errorf("expected % X, got % X", expected, frame)
	}
}

func TestPack_LongForm(t *testing.T) {
	payload := bytes.Repeat([]byte{0x55}, 300)
	frame := mustPack(t, payload)

	if frame[0] != StartLong {
		t.Fatalf("expected long start marker, got 0x%02X", frame[0])
	}
	if n := int(frame[1])<<8 | int(frame[2]); n != 300 {
		t.Errorf("expected length 300, got %d", n)
	}
	if len(frame) != 300+longOverhead {
		t.Errorf("expected frame size %d, got %d", 300+longOverhead, len(frame))
	}
	if frame[len(frame)-1] != EndByte {
		t.Errorf("expected end byte, got 0x%02X", frame[len(frame)-1])
	}
}

func TestPack_BoundaryUsesLongForm(t *testing.T) {
	if frame := mustPack(t, make([]byte, MaxShortPayload)); frame[0] != StartShort {
		t.Errorf("%d byte payload should use short form", MaxShortPayload)
	}
	if frame := mustPack(t, make([]byte, MaxShortPayload+1)); frame[0] != StartLong {
		t.Errorf("%d byte payload should use long form", MaxShortPayload+1)
	}
}

func TestPack_ReceiveBoundaries(t *testing.T) {
	tests := []struct {
		size   int
		packed bool
	}{
		{0, false},
		{1, true},
		{MaxShortPayload, true},
		{MaxShortPayload + 1, true},
		{MaxReceivePayload, true},
		{MaxReceivePayload + 1, false},
	}

	for _, tt := range tests {
		payload := bytes.Repeat([]byte{0x5A}, tt.size)
		frame, err := Pack(payload)
		if !tt.packed {
			if !errors.Is(err, telemetry.ErrFraming) {
				t.Errorf("%d byte payload: expected ErrFraming, got %v", tt.size, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%d byte payload: Pack failed: %v", tt.size, err)
		}

		got, err := Receive(context.Background(), bytes.NewReader(frame), 50*time.Millisecond)
		if err != nil {
			t.Fatalf("%d byte payload: Receive failed: %v", tt.size, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("%d byte payload did not round trip", tt.size)
		}
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{CommAlive},
		{CommGetValues, 0x01, 0x02, 0x03},
		bytes.Repeat([]byte{0x03}, 64),
		bytes.Repeat([]byte{0xA7}, 1024),
	}

	for _, payload := range payloads {
		d := NewDecoder()
		p, err := decodeAll(t, d, mustPack(t, payload))
		if err != nil {
			t.Fatalf("decode error for %d byte payload: %v", len(payload), err)
		}
		if p == nil {
			t.Fatalf("no packet for %d byte payload", len(payload))
		}
		if !bytes.Equal(p.Payload(), payload) {
			t.Errorf("payload mismatch for %d byte payload", len(payload))
		}
		if p.IsLong() != (len(payload) > MaxShortPayload) {
			t.Errorf("long form flag wrong for %d byte payload", len(payload))
		}
	}
}

func TestDecoder_CRCMismatch(t *testing.T) {
	frame := mustPack(t, []byte{CommGetValues, 0x10, 0x20})
	frame[3] ^= 0xFF

	_, err := decodeAll(t, NewDecoder(), frame)
	if !errors.Is(err, telemetry.ErrCRCMismatch) {
		t.Errorf("expected ErrCRCMismatch, got %v", err)
	}
}

func TestDecoder_BadEndByte(t *testing.T) {
	frame := mustPack(t, []byte{CommAlive})
	frame[len(frame)-1] = 0x7F

	d := NewDecoder()
	_, err := decodeAll(t, d, frame)
	if !errors.Is(err, telemetry.ErrFraming) {
		t.Errorf("expected ErrFraming, got %v", err)
	}
	if d.Pending() {
		t.Error("decoder should be idle after a framing error")
	}
}

func TestDecoder_ZeroLength(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(StartShort)
	if _, err := d.DecodeByte(0x00); !errors.Is(err, telemetry.ErrFraming) {
		t.Errorf("expected ErrFraming for zero length, got %v", err)
	}
}

func TestDecoder_SkipsGarbage(t *testing.T) {
	d := NewDecoder()
	for _, b := range []byte{0xFF, 0x00, 0x7E, 0x41} {
		if p, err := d.DecodeByte(b); p != nil || err != nil {
			t.Fatalf("garbage byte 0x%02X produced packet=%v err=%v", b, p, err)
		}
	}
	if d.Skipped() != 4 {
		t.Errorf("expected 4 skipped bytes, got %d", d.Skipped())
	}

	p, err := decodeAll(t, d, mustPack(t, []byte{CommAlive}))
	if err != nil || p == nil {
		t.Fatalf("expected packet after garbage, got err=%v", err)
	}
}

// ============================================================
// Receive Tests
// ============================================================

// trickleReader returns one chunk per Read and then reports no data, the
// way a serial port with a read timeout behaves.
type trickleReader struct {
	chunks [][]byte
}

func (r *trickleReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestReceive_RoundTrip(t *testing.T) {
	payload := []byte{CommFirmwareVersion, 6, 2}
	r := &trickleReader{chunks: [][]byte{{0x00, 0x11}, mustPack(t, payload)}}

	got, err := Receive(context.Background(), r, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("expected % X, got % X", payload, got)
	}
}

func TestReceive_CRCMismatch(t *testing.T) {
	frame := mustPack(t, []byte{CommGetValues, 0x00})
	frame[len(frame)-2] ^= 0x01

	_, err := Receive(context.Background(), bytes.NewReader(frame), 50*time.Millisecond)
	if !errors.Is(err, telemetry.ErrCRCMismatch) {
		t.Errorf("expected ErrCRCMismatch, got %v", err)
	}
}

func TestReceive_TimeoutIsIncomplete(t *testing.T) {
	frame := mustPack(t, []byte{CommGetValues, 0x00, 0x01})
	r := &trickleReader{chunks: [][]byte{frame[:4]}}

	start := time.Now()
	_, err := Receive(context.Background(), r, 20*time.Millisecond)
	if !errors.Is(err, telemetry.ErrIncomplete) {
		t.Errorf("expected ErrIncomplete, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Receive returned before the timeout elapsed")
	}
}

func TestReceive_ReadError(t *testing.T) {
	r := io.MultiReader(bytes.NewReader([]byte{StartShort}), &errReader{io.ErrUnexpectedEOF})
	_, err := Receive(context.Background(), r, 50*time.Millisecond)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected read error, got %v", err)
	}
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }

// ============================================================
// Command Tests
// ============================================================

func TestCommands_Encoding(t *testing.T) {
	tests := []struct {
		name     string
		packet   *Packet
		expected []byte
	}{
		{"get values", NewGetValues(), []byte{CommGetValues}},
		{"alive", NewAlive(), []byte{CommAlive}},
		{"firmware", NewFirmwareVersion(), []byte{CommFirmwareVersion}},
		{"duty 0.5", NewSetDuty(0.5), []byte{CommSetDuty, 0x00, 0x00, 0xC3, 0x50}},
		{"current 2.5A", NewSetCurrent(2.5), []byte{CommSetCurrent, 0x00, 0x00, 0x09, 0xC4}},
		{"brake 1A", NewSetCurrentBrake(1), []byte{CommSetCurrentBrake, 0x00, 0x00, 0x03, 0xE8}},
		{"rpm -1000", NewSetRPM(-1000), []byte{CommSetRPM, 0xFF, 0xFF, 0xFC, 0x18}},
		{"chuck", NewSetChuckData(NunchuckValues{ValueX: 10, ValueY: 200, UpperButton: true}),
			[]byte{CommSetChuckData, 10, 200, 0, 1, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.packet.Payload(), tt.expected) {
				t.Errorf("expected % X, got % X", tt.expected, tt.packet.Payload())
			}
		})
	}
}

func TestForwardCAN_Prefix(t *testing.T) {
	p := ForwardCAN(7, NewGetValues())
	expected := []byte{CommForwardCAN, 7, CommGetValues}
	if !bytes.Equal(p.Payload(), expected) {
		t.Errorf("expected % X, got % X", expected, p.Payload())
	}
	if p.CRC() != CalculateCRC(expected) {
		t.Error("forwarded packet CRC should cover the prefix")
	}
}

func TestForwardCAN_LocalNode(t *testing.T) {
	inner := NewAlive()
	if ForwardCAN(0, inner) != inner {
		t.Error("node 0 should return the packet unchanged")
	}
}

// ============================================================
// GET_VALUES Tests
// ============================================================

// buildValuesPayload encodes a GET_VALUES reply the way the controller does.
func buildValuesPayload() []byte {
	b := []byte{CommGetValues}
	put16 := func(v int16) { b = binary.BigEndian.AppendUint16(b, uint16(v)) }
	put32 := func(v int32) { b = binary.BigEndian.AppendUint32(b, uint32(v)) }
	put8 := func(v uint8) { b = append(b, v) }

	put16(453)     // MOSFET 45.3 °C
	put16(612)     // motor 61.2 °C
	put32(1250)    // motor current 12.50 A
	put32(-300)    // input current -3.00 A
	put32(0)       // id
	put32(0)       // iq
	put16(-250)    // duty -0.25
	put32(-4200)   // ERPM
	put16(484)     // 48.4 V
	put32(12345)   // 1.2345 Ah
	put32(0)       // Ah charged
	put32(600000)  // 60 Wh
	put32(0)       // Wh charged
	put32(99)      // tachometer
	put32(120)     // tachometer abs
	put8(0)        // fault
	put32(1500000) // PID pos 1.5
	put8(9)        // controller id
	return b
}

func TestDecodeValues_Full(t *testing.T) {
	v, err := DecodeValues(buildValuesPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Complete() {
		t.Errorf("expected all fields decoded, got %d", v.Fields)
	}

	checks := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"TempMOSFET", v.TempMOSFET, 45.3},
		{"TempMotor", v.TempMotor, 61.2},
		{"AvgMotorCurrent", v.AvgMotorCurrent, 12.5},
		{"AvgInputCurrent", v.AvgInputCurrent, -3},
		{"DutyCycle", v.DutyCycle, -0.25},
		{"RPM", float64(v.RPM), -4200},
		{"InputVoltage", v.InputVoltage, 48.4},
		{"AmpHours", v.AmpHours, 1.2345},
		{"WattHours", v.WattHours, 60},
		{"PIDPos", v.PIDPos, 1.5},
	}
	for _, c := range checks {
		if diff := c.got - c.expected; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: expected %v, got %v", c.name, c.expected, c.got)
		}
	}
	if v.TachometerAbs != 120 || v.ControllerID != 9 {
		t.Errorf("tail fields wrong: tach_abs=%d id=%d", v.TachometerAbs, v.ControllerID)
	}
}

func TestDecodeValues_Partial(t *testing.T) {
	full := buildValuesPayload()
	// command + temps + currents + id/iq + duty + rpm + voltage
	upToVoltage := 1 + 2 + 2 + 4 + 4 + 4 + 4 + 2 + 4 + 2

	v, err := DecodeValues(full[:upToVoltage+3])
	if err != nil {
		t.Fatalf("partial payload should decode, got %v", err)
	}
	if !v.Has(FieldInputVoltage) {
		t.Errorf("input voltage should be present, fields=%d", v.Fields)
	}
	if v.Has(FieldAmpHours) {
		t.Error("amp hours should be absent")
	}
	if v.AmpHours != 0 {
		t.Errorf("absent field should keep zero value, got %v", v.AmpHours)
	}
	if v.InputVoltage != 48.4 {
		t.Errorf("expected 48.4 V, got %v", v.InputVoltage)
	}
}

func TestDecodeValues_WrongCommand(t *testing.T) {
	if _, err := DecodeValues([]byte{CommAlive, 0x00}); !errors.Is(err, telemetry.ErrFraming) {
		t.Errorf("expected ErrFraming, got %v", err)
	}
	if _, err := DecodeValues(nil); !errors.Is(err, telemetry.ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
}

func TestDecodeFirmwareVersion(t *testing.T) {
	fw, err := DecodeFirmwareVersion([]byte{CommFirmwareVersion, 6, 5, 'x'})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fw.String() != "6.05" {
		t.Errorf("expected 6.05, got %s", fw)
	}
}

func TestFormatPacket_Values(t *testing.T) {
	p := NewPacket(buildValuesPayload())
	out := FormatPacket(p)
	for _, want := range []string{"GET_VALUES", "Input Voltage:   48.4 V", "ERPM:          -4200"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted packet missing %q:\n%s", want, out)
		}
	}
}
