// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/dynostat/pkg/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	uartCANID    uint8
	uartInterval time.Duration
)

var uartCmd = &cobra.Command{
	Use:   "uart",
	Short: "Poll a VESC motor controller over UART",
	Long: `Poll a VESC motor controller with GET_VALUES over its UART.

Publishes motor current, input voltage and electrical RPM, and sends ALIVE
keep-alives so the controller does not time out. CSV columns are:
time, current, voltage.

With --can-id, every request is forwarded over CAN to that controller.`,
	Example: `  dynostat uart --port /dev/ttyACM0 --csv motor.csv
  dynostat uart --port /dev/ttyACM0 --can-id 2`,
	RunE: runUART,
}

func init() {
	rootCmd.AddCommand(uartCmd)
	uartCmd.Flags().Uint8Var(&uartCANID, "can-id", 0, "Forward requests to this CAN node (0 = local controller)")
	uartCmd.Flags().DurationVar(&uartInterval, "interval", session.DefaultUARTPollInterval, "GET_VALUES poll interval")
}

func runUART(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("can-id") {
		cfg.UART.CANID = uartCANID
	}
	if cmd.Flags().Changed("interval") {
		cfg.UART.PollIntervalMs = int(uartInterval / time.Millisecond)
	}

	uc := cfg.UART
	acq, err := session.NewUARTStreaming(streamOpener(logger), session.UARTConfig{
		Node:              uc.CANID,
		PollInterval:      uc.PollInterval(),
		Timeout:           uc.Timeout(),
		KeepAliveInterval: uc.KeepAlive(),
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"can_id":   uc.CANID,
		"interval": uc.PollInterval(),
	}).Info("UART polling configured")

	return runSession(cmd.Context(), acq)
}
