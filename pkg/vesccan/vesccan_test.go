// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesccan

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

func statusFrame(node uint8, data ...byte) Frame {
	return NewFrame(MakeExtendedID(PacketStatus, node), data)
}

func TestMakeExtendedID(t *testing.T) {
	tests := []struct {
		packet, node uint8
		expected     uint32
	}{
		{PacketStatus, 1, 0x0901},
		{PacketStatus5, 1, 0x1B01},
		{PacketSetCurrentRel, 0x7F, 0x0A7F},
	}
	for _, tt := range tests {
		if got := MakeExtendedID(tt.packet, tt.node); got != tt.expected {
			t.Errorf("MakeExtendedID(%d, %d): expected 0x%04X, got 0x%04X", tt.packet, tt.node, tt.expected, got)
		}
	}
}

func TestAccept(t *testing.T) {
	good := statusFrame(1, 0, 0, 0, 0, 0, 0, 0, 0)

	tests := []struct {
		name   string
		mutate func(*Frame)
		want   bool
	}{
		{"bus frame", func(*Frame) {}, true},
		{"standard id", func(f *Frame) { f.Extended = false }, false},
		{"echo", func(f *Frame) { f.EchoID = 0 }, false},
		{"error frame", func(f *Frame) { f.Error = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := good
			tt.mutate(&f)
			if got := Accept(f); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDecodeStatus(t *testing.T) {
	s, err := DecodeStatus(statusFrame(1, 0x00, 0x00, 0x03, 0xE8, 0x00, 0x64, 0x01, 0xF4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ERPM != 1000 {
		t.Errorf("expected 1000 ERPM, got %d", s.ERPM)
	}
	if s.Current != 10.0 {
		t.Errorf("expected 10.0 A, got %v", s.Current)
	}
	if s.DutyCycle != 0.5 {
		t.Errorf("expected duty 0.5, got %v", s.DutyCycle)
	}
}

func TestDecodeStatus_NegativeCurrent(t *testing.T) {
	s, err := DecodeStatus(statusFrame(1, 0, 0, 0, 0, 0xFF, 0x9C, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Current != -10.0 {
		t.Errorf("expected -10.0 A, got %v", s.Current)
	}
}

func TestDecodeStatus_TooShort(t *testing.T) {
	_, err := DecodeStatus(statusFrame(1, 0, 0, 3, 0xE8, 0, 0x64))
	if !errors.Is(err, telemetry.ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
}

func TestDecodeStatus5(t *testing.T) {
	f := NewFrame(MakeExtendedID(PacketStatus5, 1), []byte{0, 0, 0x10, 0, 0x01, 0xE4})
	s, err := DecodeStatus5(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.InputVoltage != 48.4 {
		t.Errorf("expected 48.4 V, got %v", s.InputVoltage)
	}
	if s.Tachometer != 0x1000 {
		t.Errorf("expected tachometer 4096, got %d", s.Tachometer)
	}

	f.Len = 5
	if _, err := DecodeStatus5(f); !errors.Is(err, telemetry.ErrTooShort) {
		t.Errorf("expected ErrTooShort for 5 bytes, got %v", err)
	}
}

func TestDecodeStatus4(t *testing.T) {
	f := NewFrame(MakeExtendedID(PacketStatus4, 1), []byte{0x01, 0xC5, 0x02, 0x64, 0xFF, 0xE2, 0x00, 0x32})
	s, err := DecodeStatus4(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TempMOSFET != 45.3 || s.TempMotor != 61.2 || s.InputCurrent != -3 || s.PIDPos != 1 {
		t.Errorf("unexpected STATUS_4 %+v", s)
	}
}

func TestDecoder_Dispatch(t *testing.T) {
	d := Decoder{Node: 1}

	msg, err := d.Decode(statusFrame(1, 0, 0, 0x03, 0xE8, 0, 0x64, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, ok := msg.(Status); !ok || s.ERPM != 1000 {
		t.Errorf("expected Status with 1000 ERPM, got %#v", msg)
	}

	msg, err = d.Decode(NewFrame(MakeExtendedID(PacketStatus5, 1), []byte{0, 0, 0, 0, 0x01, 0xE4}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(Status5); !ok {
		t.Errorf("expected Status5, got %#v", msg)
	}
}

func TestDecoder_Ignores(t *testing.T) {
	d := Decoder{Node: 1}
	data := []byte{0, 0, 0x03, 0xE8, 0, 0x64, 0, 0}

	echo := statusFrame(1, data...)
	echo.EchoID = 3

	other := statusFrame(2, data...)

	unknown := NewFrame(MakeExtendedID(PacketSetRPM, 1), data)

	for name, f := range map[string]Frame{"echo": echo, "other node": other, "command": unknown} {
		msg, err := d.Decode(f)
		if msg != nil || err != nil {
			t.Errorf("%s: expected frame to be ignored, got msg=%v err=%v", name, msg, err)
		}
	}
}

func TestDecoder_ShortStatusReportsError(t *testing.T) {
	_, err := Decoder{Node: 1}.Decode(statusFrame(1, 0, 0, 0))
	if !errors.Is(err, telemetry.ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
}

func TestKeepAlive(t *testing.T) {
	f := KeepAlive(1)
	if f.ID != 0x0A01 {
		t.Errorf("expected id 0x0A01, got 0x%04X", f.ID)
	}
	if !f.Extended || f.Remote || f.Len != 4 {
		t.Errorf("unexpected flags: %s", f)
	}
	if !bytes.Equal(f.Payload(), []byte{0, 0, 0, 0}) {
		t.Errorf("expected zero payload, got % X", f.Payload())
	}
}

func TestSetCurrentRel_Scale(t *testing.T) {
	f := SetCurrentRel(1, -0.5)
	if !bytes.Equal(f.Payload(), []byte{0xFF, 0xFF, 0x3C, 0xB0}) {
		t.Errorf("expected -50000, got % X", f.Payload())
	}
}

// ============================================================
// Text Bridge Tests
// ============================================================

func TestParseBridgeLine(t *testing.T) {
	tests := []struct {
		line string
		want BridgeLine
	}{
		{"CURRENT:1.23; VOLTAGE:4.56; RPM:789", BridgeLine{Current: 1.23, Voltage: 4.56, RPM: 789}},
		{"Current:-2.5;Voltage:48;RPM:-1200\r", BridgeLine{Current: -2.5, Voltage: 48, RPM: -1200}},
		{"A:1;B:2;C:3;TEMP:40", BridgeLine{Current: 1, Voltage: 2, RPM: 3}},
	}

	for _, tt := range tests {
		got, err := ParseBridgeLine(tt.line)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.line, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %+v, got %+v", tt.line, tt.want, got)
		}
	}
}

func TestParseBridgeLine_Rejects(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"CURRENT:1.23; VOLTAGE:4.56", telemetry.ErrIncomplete},
		{"", telemetry.ErrIncomplete},
		{"CURRENT 1.23; VOLTAGE:4.56; RPM:789", telemetry.ErrFraming},
		{"CURRENT:abc; VOLTAGE:4.56; RPM:789", telemetry.ErrFraming},
		{"CURRENT:NaN; VOLTAGE:4.56; RPM:789", telemetry.ErrFraming},
		{"CURRENT:1; VOLTAGE:+Inf; RPM:789", telemetry.ErrFraming},
	}

	for _, tt := range tests {
		if _, err := ParseBridgeLine(tt.line); !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.line, tt.want, err)
		}
	}
}
