// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/dynostat/pkg/session"
	"github.com/spf13/cobra"
)

var canBridgeCmd = &cobra.Command{
	Use:   "can_bridge",
	Short: "Log a text CAN bridge over serial",
	Long: `Log readings from a microcontroller that listens to the CAN bus and
prints one text line per reading:

  CURRENT:1.23; VOLTAGE:4.56; RPM:789

Fields are read by position. Lines that do not parse are counted as bad
frames and skipped. Nothing is sent to the bridge. CSV columns are:
time, current, voltage, rpm.`,
	Example: `  dynostat can_bridge --port /dev/ttyUSB1 --baud 115200 --csv can.csv`,
	RunE:    runCANBridge,
}

func init() {
	rootCmd.AddCommand(canBridgeCmd)
}

func runCANBridge(cmd *cobra.Command, args []string) error {
	acq, err := session.NewCANBridgeStreaming(streamOpener(logger), session.CANBridgeConfig{})
	if err != nil {
		return err
	}
	logger.Info("Text CAN bridge configured")
	return runSession(cmd.Context(), acq)
}
