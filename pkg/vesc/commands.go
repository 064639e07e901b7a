// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import "encoding/binary"

// Command builder functions create Packets ready for framing with Bytes.
// Wrap any of them with ForwardCAN to address a controller behind the one
// on the UART.

// NewGetValues creates a GET_VALUES request.
func NewGetValues() *Packet {
	return NewPacket([]byte{CommGetValues})
}

// NewFirmwareVersion creates a FW_VERSION request.
func NewFirmwareVersion() *Packet {
	return NewPacket([]byte{CommFirmwareVersion})
}

// NewAlive creates an ALIVE keep-alive. The controller releases the motor
// when keep-alives stop arriving.
func NewAlive() *Packet {
	return NewPacket([]byte{CommAlive})
}

// NewSetDuty creates a SET_DUTY command. Duty is a fraction in -1..1.
func NewSetDuty(duty float64) *Packet {
	return newInt32Command(CommSetDuty, int32(duty*dutyScale))
}

// NewSetCurrent creates a SET_CURRENT command in amperes.
func NewSetCurrent(amps float64) *Packet {
	return newInt32Command(CommSetCurrent, int32(amps*currentScale))
}

// NewSetCurrentBrake creates a SET_CURRENT_BRAKE command in amperes.
func NewSetCurrentBrake(amps float64) *Packet {
	return newInt32Command(CommSetCurrentBrake, int32(amps*currentScale))
}

// NewSetRPM creates a SET_RPM command in electrical RPM.
func NewSetRPM(rpm int32) *Packet {
	return newInt32Command(CommSetRPM, rpm)
}

// NunchuckValues is the remote-control state sent with SET_CHUCK_DATA.
// Axis values are centred at 127.
type NunchuckValues struct {
	ValueX      uint8
	ValueY      uint8
	LowerButton bool
	UpperButton bool
}

// DefaultNunchuck returns centred axes with both buttons released.
func DefaultNunchuck() NunchuckValues {
	return NunchuckValues{ValueX: 127, ValueY: 127}
}

// NewSetChuckData creates a SET_CHUCK_DATA command. The three acceleration
// words are sent as zero.
func NewSetChuckData(n NunchuckValues) *Packet {
	payload := make([]byte, 11)
	payload[0] = CommSetChuckData
	payload[1] = n.ValueX
	payload[2] = n.ValueY
	payload[3] = boolByte(n.LowerButton)
	payload[4] = boolByte(n.UpperButton)
	return NewPacket(payload)
}

// ForwardCAN wraps p so the controller on the UART relays it to node on
// its CAN bus. Node 0 addresses the local controller and returns p as is.
func ForwardCAN(node uint8, p *Packet) *Packet {
	if node == 0 {
		return p
	}
	payload := make([]byte, 0, len(p.payload)+2)
	payload = append(payload, CommForwardCAN, node)
	payload = append(payload, p.payload...)
	return NewPacket(payload)
}

func newInt32Command(cmd byte, v int32) *Packet {
	payload := make([]byte, 5)
	payload[0] = cmd
	binary.BigEndian.PutUint32(payload[1:], uint32(v))
	return NewPacket(payload)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
