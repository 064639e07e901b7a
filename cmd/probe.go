// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dynostat/pkg/modbus"
	"github.com/Thermoquad/dynostat/pkg/session"
	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesc"
	"github.com/spf13/cobra"
)

var (
	probeTimeout  int
	probeProtocol string
	probeCANID    uint8
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for one valid frame",
	Long: `Send one request and wait for a valid reply until timeout.

vesc:   sends FW_VERSION and waits for any valid VESC packet (CRC checked),
        ignoring invalid bytes before it.
modbus: reads the torque register pair and checks the reply, CRC included.

Exit codes:
  0 - Valid frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	probeCmd.Flags().StringVar(&probeProtocol, "protocol", "vesc", "Protocol to probe (vesc or modbus)")
	probeCmd.Flags().Uint8Var(&probeCANID, "can-id", 0, "Forward the VESC request to this CAN node")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	timeout := time.Duration(probeTimeout) * time.Second

	fmt.Printf("Dynostat - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Protocol: %s\n", probeProtocol)
	fmt.Printf("Timeout: %d seconds\n\n", probeTimeout)

	switch probeProtocol {
	case "vesc":
		err = probeVESC(ctx, conn, timeout)
	case "modbus":
		err = probeModbus(ctx, conn, timeout)
	default:
		return fmt.Errorf("unknown protocol %q (use vesc or modbus)", probeProtocol)
	}

	switch {
	case err == nil:
		os.Exit(0)
	case telemetry.IsFrameError(err):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds (%v)\n", probeTimeout, err)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}
	return nil
}

func probeVESC(ctx context.Context, conn Connection, timeout time.Duration) error {
	request, err := vesc.ForwardCAN(probeCANID, vesc.NewFirmwareVersion()).Bytes()
	if err != nil {
		return err
	}
	if _, err := conn.Write(request); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: no packet", telemetry.ErrIncomplete)
		}

		packet, err := vesc.ReceivePacket(ctx, conn, remaining)
		if errors.Is(err, telemetry.ErrCRCMismatch) {
			// Keep waiting; the next frame may be intact
			continue
		}
		if err != nil {
			return err
		}

		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Command: %s (%d)\n", vesc.FormatCommand(packet.Command()), packet.Command())
		fmt.Printf("  Length: %d bytes\n", packet.Length())
		fmt.Printf("  CRC: 0x%04X\n", packet.CRC())
		if fw, err := vesc.DecodeFirmwareVersion(packet.Payload()); err == nil {
			fmt.Printf("  Firmware: %s\n", fw)
		}
		return nil
	}
}

func probeModbus(ctx context.Context, conn Connection, timeout time.Duration) error {
	query := modbus.TorqueQuery(cfg.Modbus.Station)
	ex := modbus.NewExchanger()

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		frame, err := ex.Transact(ctx, conn, query.Request)
		if err == nil {
			var raw uint16
			raw, err = modbus.ParseResponseStrict(frame)
			if err == nil {
				fmt.Printf("SUCCESS: Received valid response\n")
				fmt.Printf("  Frame: %s\n", modbus.FormatFrame(frame))
				fmt.Printf("  Torque: %.2f Nm\n", query.Convert(raw))
				return nil
			}
		}
		if !telemetry.IsFrameError(err) {
			return err
		}
		lastErr = err
		time.Sleep(session.DefaultPollInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no response", telemetry.ErrIncomplete)
	}
	return lastErr
}
