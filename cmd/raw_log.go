// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/dynostat/pkg/vesc"
	"github.com/spf13/cobra"
)

var (
	rawLogPoll  time.Duration
	rawLogCANID uint8
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw VESC packet log in human-readable format",
	Long: `Continuously decode and display VESC UART packets as they arrive.

Each packet is shown with timestamp, command and payload. GET_VALUES replies
are decoded field by field.

With --poll, a GET_VALUES request is sent at that interval; otherwise the
command only listens.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().DurationVar(&rawLogPoll, "poll", 0, "Send GET_VALUES at this interval (0 = listen only)")
	rawLogCmd.Flags().Uint8Var(&rawLogCANID, "can-id", 0, "Forward polls to this CAN node")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Dynostat - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var poll <-chan time.Time
	var request []byte
	if rawLogPoll > 0 {
		request, err = vesc.ForwardCAN(rawLogCANID, vesc.NewGetValues()).Bytes()
		if err != nil {
			return err
		}
		ticker := time.NewTicker(rawLogPoll)
		defer ticker.Stop()
		poll = ticker.C
	}

	decoder := vesc.NewDecoder()
	buf := make([]byte, 128)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll:
			if _, err := conn.Write(request); err != nil {
				return fmt.Errorf("write GET_VALUES: %w", err)
			}
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info("Connection closed")
				return nil
			}
			logger.WithError(err).Warn("Read error")
			continue
		}

		for i := 0; i < n; i++ {
			packet, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if packet == nil {
				continue
			}
			fmt.Print(vesc.FormatPacket(packet))
			if packet.Command() == vesc.CommGetValues {
				if values, err := vesc.DecodeValues(packet.Payload()); err == nil {
					fmt.Print(vesc.FormatValues(values))
				}
			}
		}
	}
}
