// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Field indexes a GET_VALUES field in wire order.
type Field int

const (
	FieldTempMOSFET Field = iota
	FieldTempMotor
	FieldAvgMotorCurrent
	FieldAvgInputCurrent
	FieldAvgID
	FieldAvgIQ
	FieldDutyCycle
	FieldRPM
	FieldInputVoltage
	FieldAmpHours
	FieldAmpHoursCharged
	FieldWattHours
	FieldWattHoursCharged
	FieldTachometer
	FieldTachometerAbs
	FieldFaultCode
	FieldPIDPos
	FieldControllerID

	fieldCount
)

// Values is the decoded GET_VALUES reply. Fields beyond the end of a short
// payload keep their zero value; Fields counts how many leading fields were
// present.
type Values struct {
	TempMOSFET       float64 // °C
	TempMotor        float64 // °C
	AvgMotorCurrent  float64 // A
	AvgInputCurrent  float64 // A
	AvgID            float64 // A
	AvgIQ            float64 // A
	DutyCycle        float64 // fraction, -1..1
	RPM              int32   // electrical RPM
	InputVoltage     float64 // V
	AmpHours         float64
	AmpHoursCharged  float64
	WattHours        float64
	WattHoursCharged float64
	Tachometer       int32
	TachometerAbs    int32
	FaultCode        uint8
	PIDPos           float64
	ControllerID     uint8

	Fields int
}

// Has reports whether f was present in the decoded payload.
func (v Values) Has(f Field) bool {
	return int(f) < v.Fields
}

// Complete reports whether every known field was decoded.
func (v Values) Complete() bool {
	return v.Fields >= int(fieldCount)
}

// fieldReader walks a big-endian payload. Each read reports false once the
// payload is exhausted.
type fieldReader struct {
	buf []byte
	off int
}

func (r *fieldReader) take(n int) ([]byte, bool) {
	if r.off+n > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, true
}

func (r *fieldReader) scaled16(dst *float64, div float64) bool {
	b, ok := r.take(2)
	if ok {
		*dst = float64(int16(binary.BigEndian.Uint16(b))) / div
	}
	return ok
}

func (r *fieldReader) scaled32(dst *float64, div float64) bool {
	b, ok := r.take(4)
	if ok {
		*dst = float64(int32(binary.BigEndian.Uint32(b))) / div
	}
	return ok
}

func (r *fieldReader) readInt32(dst *int32) bool {
	b, ok := r.take(4)
	if ok {
		*dst = int32(binary.BigEndian.Uint32(b))
	}
	return ok
}

func (r *fieldReader) readUint8(dst *uint8) bool {
	b, ok := r.take(1)
	if ok {
		*dst = b[0]
	}
	return ok
}

// DecodeValues decodes a GET_VALUES reply payload, command byte included.
// A truncated payload is not an error: decoding stops at the first field
// that does not fit.
func DecodeValues(payload []byte) (Values, error) {
	var v Values
	if len(payload) == 0 {
		return v, fmt.Errorf("%w: empty payload", telemetry.ErrTooShort)
	}
	if payload[0] != CommGetValues {
		return v, fmt.Errorf("%w: expected %s, got %s", telemetry.ErrFraming,
			FormatCommand(CommGetValues), FormatCommand(int(payload[0])))
	}

	r := &fieldReader{buf: payload[1:]}
	steps := [fieldCount]func() bool{
		FieldTempMOSFET:       func() bool { return r.scaled16(&v.TempMOSFET, 1e1) },
		FieldTempMotor:        func() bool { return r.scaled16(&v.TempMotor, 1e1) },
		FieldAvgMotorCurrent:  func() bool { return r.scaled32(&v.AvgMotorCurrent, 1e2) },
		FieldAvgInputCurrent:  func() bool { return r.scaled32(&v.AvgInputCurrent, 1e2) },
		FieldAvgID:            func() bool { return r.scaled32(&v.AvgID, 1e2) },
		FieldAvgIQ:            func() bool { return r.scaled32(&v.AvgIQ, 1e2) },
		FieldDutyCycle:        func() bool { return r.scaled16(&v.DutyCycle, 1e3) },
		FieldRPM:              func() bool { return r.readInt32(&v.RPM) },
		FieldInputVoltage:     func() bool { return r.scaled16(&v.InputVoltage, 1e1) },
		FieldAmpHours:         func() bool { return r.scaled32(&v.AmpHours, 1e4) },
		FieldAmpHoursCharged:  func() bool { return r.scaled32(&v.AmpHoursCharged, 1e4) },
		FieldWattHours:        func() bool { return r.scaled32(&v.WattHours, 1e4) },
		FieldWattHoursCharged: func() bool { return r.scaled32(&v.WattHoursCharged, 1e4) },
		FieldTachometer:       func() bool { return r.readInt32(&v.Tachometer) },
		FieldTachometerAbs:    func() bool { return r.readInt32(&v.TachometerAbs) },
		FieldFaultCode:        func() bool { return r.readUint8(&v.FaultCode) },
		FieldPIDPos:           func() bool { return r.scaled32(&v.PIDPos, 1e6) },
		FieldControllerID:     func() bool { return r.readUint8(&v.ControllerID) },
	}

	for _, step := range steps {
		if !step() {
			break
		}
		v.Fields++
	}
	return v, nil
}

// FirmwareVersion is the decoded FW_VERSION reply.
type FirmwareVersion struct {
	Major uint8
	Minor uint8
}

func (f FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%02d", f.Major, f.Minor)
}

// DecodeFirmwareVersion decodes a FW_VERSION reply payload.
func DecodeFirmwareVersion(payload []byte) (FirmwareVersion, error) {
	if len(payload) < 3 {
		return FirmwareVersion{}, fmt.Errorf("%w: FW_VERSION needs 3 bytes, got %d", telemetry.ErrTooShort, len(payload))
	}
	if payload[0] != CommFirmwareVersion {
		return FirmwareVersion{}, fmt.Errorf("%w: expected %s, got %s", telemetry.ErrFraming,
			FormatCommand(CommFirmwareVersion), FormatCommand(int(payload[0])))
	}
	return FirmwareVersion{Major: payload[1], Minor: payload[2]}, nil
}
