// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesccan

import (
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Message is a decoded status broadcast.
type Message interface {
	Packet() uint8
}

// Status is the STATUS broadcast: speed, current and duty.
type Status struct {
	ERPM      uint32
	Current   float64 // A
	DutyCycle float64 // fraction
}

func (Status) Packet() uint8 { return PacketStatus }

// Status2 carries consumed and regenerated charge.
type Status2 struct {
	AmpHours        float64
	AmpHoursCharged float64
}

func (Status2) Packet() uint8 { return PacketStatus2 }

// Status3 carries consumed and regenerated energy.
type Status3 struct {
	WattHours        float64
	WattHoursCharged float64
}

func (Status3) Packet() uint8 { return PacketStatus3 }

// Status4 carries temperatures, input current and PID position.
type Status4 struct {
	TempMOSFET   float64 // °C
	TempMotor    float64 // °C
	InputCurrent float64 // A
	PIDPos       float64 // degrees
}

func (Status4) Packet() uint8 { return PacketStatus4 }

// Status5 carries the tachometer and input voltage.
type Status5 struct {
	Tachometer   uint32
	InputVoltage float64 // V
}

func (Status5) Packet() uint8 { return PacketStatus5 }

func need(f Frame, n int, name string) error {
	if int(f.Len) < n {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", telemetry.ErrTooShort, name, n, f.Len)
	}
	return nil
}

func u16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func u32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// DecodeStatus decodes a STATUS frame. The ERPM field is unsigned as sent.
func DecodeStatus(f Frame) (Status, error) {
	if err := need(f, 8, "STATUS"); err != nil {
		return Status{}, err
	}
	d := f.Data
	return Status{
		ERPM:      u32(d[0:4]),
		Current:   float64(int16(u16(d[4:6]))) / 10,
		DutyCycle: float64(u16(d[6:8])) / 1000,
	}, nil
}

// DecodeStatus2 decodes a STATUS_2 frame.
func DecodeStatus2(f Frame) (Status2, error) {
	if err := need(f, 8, "STATUS_2"); err != nil {
		return Status2{}, err
	}
	d := f.Data
	return Status2{
		AmpHours:        float64(int32(u32(d[0:4]))) / 1e4,
		AmpHoursCharged: float64(int32(u32(d[4:8]))) / 1e4,
	}, nil
}

// DecodeStatus3 decodes a STATUS_3 frame.
func DecodeStatus3(f Frame) (Status3, error) {
	if err := need(f, 8, "STATUS_3"); err != nil {
		return Status3{}, err
	}
	d := f.Data
	return Status3{
		WattHours:        float64(int32(u32(d[0:4]))) / 1e4,
		WattHoursCharged: float64(int32(u32(d[4:8]))) / 1e4,
	}, nil
}

// DecodeStatus4 decodes a STATUS_4 frame.
func DecodeStatus4(f Frame) (Status4, error) {
	if err := need(f, 8, "STATUS_4"); err != nil {
		return Status4{}, err
	}
	d := f.Data
	return Status4{
		TempMOSFET:   float64(int16(u16(d[0:2]))) / 10,
		TempMotor:    float64(int16(u16(d[2:4]))) / 10,
		InputCurrent: float64(int16(u16(d[4:6]))) / 10,
		PIDPos:       float64(int16(u16(d[6:8]))) / 50,
	}, nil
}

// DecodeStatus5 decodes a STATUS_5 frame.
func DecodeStatus5(f Frame) (Status5, error) {
	if err := need(f, 6, "STATUS_5"); err != nil {
		return Status5{}, err
	}
	d := f.Data
	return Status5{
		Tachometer:   u32(d[0:4]),
		InputVoltage: float64(u16(d[4:6])) / 10,
	}, nil
}

// Decoder decodes broadcasts from one controller node.
type Decoder struct {
	Node uint8
}

// Decode returns the message carried by f, or nil when the frame is not an
// accepted status broadcast from the decoder's node. Short frames return a
// telemetry.ErrTooShort error.
func (d Decoder) Decode(f Frame) (Message, error) {
	if !Accept(f) || f.Node() != d.Node || f.ID>>16 != 0 {
		return nil, nil
	}

	switch f.Packet() {
	case PacketStatus:
		return decodeAs(DecodeStatus, f)
	case PacketStatus2:
		return decodeAs(DecodeStatus2, f)
	case PacketStatus3:
		return decodeAs(DecodeStatus3, f)
	case PacketStatus4:
		return decodeAs(DecodeStatus4, f)
	case PacketStatus5:
		return decodeAs(DecodeStatus5, f)
	default:
		return nil, nil
	}
}

func decodeAs[M Message](decode func(Frame) (M, error), f Frame) (Message, error) {
	m, err := decode(f)
	if err != nil {
		return nil, err
	}
	return m, nil
}
