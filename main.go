// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Dynostat - Dynamometer Telemetry Logger
//
// A CLI tool for logging torque, speed and power from a Modbus RTU
// dynamometer and current, voltage and RPM from a VESC motor controller.

package main

import (
	"os"

	"github.com/Thermoquad/dynostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
