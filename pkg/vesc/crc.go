// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CalculateCRC computes the CRC-16/CCITT checksum (zero seed, no reflection)
// of a payload. The result is transmitted high byte first.
func CalculateCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
