// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package modbus

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// CalculateCRC computes the CRC-16/MODBUS checksum of data. The result is
// transmitted low byte first.
func CalculateCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// AppendCRC appends the checksum of frame to frame, low byte first.
func AppendCRC(frame []byte) []byte {
	crc := CalculateCRC(frame)
	return append(frame, byte(crc), byte(crc>>8))
}
