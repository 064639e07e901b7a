// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesccan

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// MaxBridgeLine is the longest text bridge line kept; longer lines are
// discarded up to the next newline.
const MaxBridgeLine = 256

// BridgeLine is one reading from a text CAN bridge, a microcontroller that
// listens to the bus itself and prints lines such as
//
//	CURRENT:1.23; VOLTAGE:4.56; RPM:789
type BridgeLine struct {
	Current float64 // A
	Voltage float64 // V
	RPM     float64
}

// ParseBridgeLine parses one bridge line. Fields are positional: current,
// voltage, then rpm, each as label:value. Labels are not checked and any
// fields past the third are ignored.
func ParseBridgeLine(line string) (BridgeLine, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) < 3 {
		return BridgeLine{}, fmt.Errorf("%w: bridge line %q has %d of 3 fields", telemetry.ErrIncomplete, line, len(parts))
	}

	var values [3]float64
	for i := range values {
		kv := strings.Split(parts[i], ":")
		if len(kv) < 2 {
			return BridgeLine{}, fmt.Errorf("%w: bridge field %q has no value", telemetry.ErrFraming, parts[i])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return BridgeLine{}, fmt.Errorf("%w: bridge field %q is not a number", telemetry.ErrFraming, parts[i])
		}
		values[i] = v
	}

	return BridgeLine{Current: values[0], Voltage: values[1], RPM: values[2]}, nil
}
