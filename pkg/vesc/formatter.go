// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	cmd := p.Command()

	form := "short"
	if p.long {
		form = "long"
	}
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d %s crc=0x%04X\n", timestamp, FormatCommand(cmd), cmd&0xFF, len(p.payload), form, p.crc)

	switch cmd {
	case CommGetValues:
		if len(p.payload) > 1 {
			if v, err := DecodeValues(p.payload); err == nil {
				result += FormatValues(v)
			}
		}
	case CommFirmwareVersion:
		if fw, err := DecodeFirmwareVersion(p.payload); err == nil {
			result += fmt.Sprintf("  Firmware: %s\n", fw)
		}
	case CommForwardCAN:
		if len(p.payload) >= 3 {
			result += fmt.Sprintf("  Forward to node %d: %s\n", p.payload[1], FormatCommand(int(p.payload[2])))
		}
	default:
		if len(p.payload) > 1 {
			result += fmt.Sprintf("  Data: % X\n", p.payload[1:])
		}
	}

	return result
}

// FormatCommand returns the human-readable name for a command identifier
func FormatCommand(cmd int) string {
	switch cmd {
	case CommFirmwareVersion:
		return "FW_VERSION"
	case CommGetValues:
		return "GET_VALUES"
	case CommSetDuty:
		return "SET_DUTY"
	case CommSetCurrent:
		return "SET_CURRENT"
	case CommSetCurrentBrake:
		return "SET_CURRENT_BRAKE"
	case CommSetRPM:
		return "SET_RPM"
	case CommSetChuckData:
		return "SET_CHUCK_DATA"
	case CommAlive:
		return "ALIVE"
	case CommForwardCAN:
		return "FORWARD_CAN"
	case -1:
		return "EMPTY"
	default:
		return fmt.Sprintf("UNKNOWN_%d", cmd)
	}
}

// FormatValues formats the decoded fields of a GET_VALUES reply.
func FormatValues(v Values) string {
	var b strings.Builder
	line := func(f Field, format string, args ...interface{}) {
		if v.Has(f) {
			fmt.Fprintf(&b, "  "+format+"\n", args...)
		}
	}

	line(FieldTempMOSFET, "MOSFET Temp:   %6.1f °C", v.TempMOSFET)
	line(FieldTempMotor, "Motor Temp:    %6.1f °C", v.TempMotor)
	line(FieldAvgMotorCurrent, "Motor Current: %7.2f A", v.AvgMotorCurrent)
	line(FieldAvgInputCurrent, "Input Current: %7.2f A", v.AvgInputCurrent)
	line(FieldDutyCycle, "Duty Cycle:    %6.1f %%", v.DutyCycle*100)
	line(FieldRPM, "ERPM:          %d", v.RPM)
	line(FieldInputVoltage, "Input Voltage: %6.1f V", v.InputVoltage)
	line(FieldWattHours, "Watt Hours:    %8.4f Wh", v.WattHours)
	line(FieldTachometer, "Tachometer:    %d", v.Tachometer)
	line(FieldFaultCode, "Fault Code:    %d", v.FaultCode)

	if !v.Complete() {
		fmt.Fprintf(&b, "  (partial: %d of %d fields)\n", v.Fields, int(fieldCount))
	}
	return b.String()
}
