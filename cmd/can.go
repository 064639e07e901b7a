// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"

	"github.com/Thermoquad/dynostat/pkg/session"
	"github.com/Thermoquad/dynostat/pkg/slcan"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	canBitrate int
	canNode    uint8
)

var canCmd = &cobra.Command{
	Use:   "can",
	Short: "Listen to VESC status broadcasts on a CAN bus",
	Long: `Listen to VESC status broadcasts through a serial-line CAN (SLCAN) adapter.

Decodes STATUS (electrical RPM, motor current) and STATUS_5 (input voltage)
from the selected node, and sends a zero relative-current keep-alive every
20ms. CSV columns are: time, current, voltage, rpm.

Supported bitrates: 125000, 250000, 500000, 1000000.`,
	Example: `  dynostat can --port /dev/ttyACM0 --bitrate 500000 --node 1 --csv can.csv`,
	RunE:    runCAN,
}

func init() {
	rootCmd.AddCommand(canCmd)
	canCmd.Flags().IntVar(&canBitrate, "bitrate", 1000000, "CAN bus bitrate")
	canCmd.Flags().Uint8Var(&canNode, "node", 1, "Controller node id")
}

// canOpener opens the SLCAN adapter on the serial port, or through the
// WebSocket bridge when --url is set.
func canOpener(log logrus.FieldLogger) session.CANOpener {
	return func(ctx context.Context) (session.CANBus, error) {
		if cfg.Serial.URL == "" {
			adapter, err := slcan.Open(cfg.Serial.Port, cfg.Serial.Baud, log)
			if err != nil {
				return nil, err
			}
			log.WithField("port", cfg.Serial.Port).Info("SLCAN adapter opened")
			return adapter, nil
		}

		conn, connInfo, err := OpenConnection(ctx)
		if err != nil {
			return nil, err
		}
		log.WithField("connection", connInfo).Info("SLCAN adapter opened")
		return slcan.New(conn, log), nil
	}
}

func runCAN(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("bitrate") {
		cfg.CAN.Bitrate = canBitrate
	}
	if cmd.Flags().Changed("node") {
		cfg.CAN.Node = canNode
	}

	cc := cfg.CAN
	acq, err := session.NewCANStreaming(canOpener(logger), session.CANConfig{
		Bitrate:           cc.Bitrate,
		Node:              cc.Node,
		KeepAliveInterval: cc.KeepAlive(),
		ReadTimeout:       cc.ReadTimeout(),
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"bitrate": cc.Bitrate,
		"node":    cc.Node,
	}).Info("CAN listening configured")

	return runSession(cmd.Context(), acq)
}
