// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesccan

import "encoding/binary"

func int32Frame(packet, node uint8, v int32) Frame {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return NewFrame(MakeExtendedID(packet, node), b[:])
}

// SetCurrentRel builds a SET_CURRENT_REL frame. Fraction is relative to the
// controller's configured current limit, -1..1.
func SetCurrentRel(node uint8, fraction float64) Frame {
	return int32Frame(PacketSetCurrentRel, node, int32(fraction*relativeScale))
}

// KeepAlive builds the zero-current SET_CURRENT_REL frame sent periodically
// so the controller does not time out its command input.
func KeepAlive(node uint8) Frame {
	return SetCurrentRel(node, 0)
}

// SetCurrent builds a SET_CURRENT frame in amperes.
func SetCurrent(node uint8, amps float64) Frame {
	return int32Frame(PacketSetCurrent, node, int32(amps*currentScale))
}

// SetCurrentBrake builds a SET_CURRENT_BRAKE frame in amperes.
func SetCurrentBrake(node uint8, amps float64) Frame {
	return int32Frame(PacketSetCurrentBrake, node, int32(amps*currentScale))
}

// SetDuty builds a SET_DUTY frame. Duty is a fraction in -1..1.
func SetDuty(node uint8, duty float64) Frame {
	return int32Frame(PacketSetDuty, node, int32(duty*dutyScale))
}

// SetRPM builds a SET_RPM frame in electrical RPM.
func SetRPM(node uint8, erpm int32) Frame {
	return int32Frame(PacketSetRPM, node, erpm)
}
