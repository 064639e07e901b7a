// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/dynostat/pkg/vesc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	controlCurrent float64
	controlBrake   float64
	controlDuty    float64
	controlRPM     int32
	controlCANID   uint8
	controlRate    time.Duration
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Drive a VESC motor controller at a fixed setpoint",
	Long: `Send one setpoint command to a VESC motor controller over UART.

Exactly one of --current, --brake, --duty or --rpm must be given. The
command is repeated at --rate so the controller's timeout never trips, until
Ctrl+C or --duration. On exit the motor is released with SET_CURRENT 0.

Run "dynostat uart" in a second terminal, or on a second controller, to log
the response.`,
	Example: `  dynostat control --port /dev/ttyACM0 --current 5 --duration 10s
  dynostat control --port /dev/ttyACM0 --can-id 2 --rpm 3000`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().Float64Var(&controlCurrent, "current", 0, "Motor current setpoint in amps")
	controlCmd.Flags().Float64Var(&controlBrake, "brake", 0, "Brake current in amps")
	controlCmd.Flags().Float64Var(&controlDuty, "duty", 0, "Duty cycle (-1 to 1)")
	controlCmd.Flags().Int32Var(&controlRPM, "rpm", 0, "Electrical RPM setpoint")
	controlCmd.Flags().Uint8Var(&controlCANID, "can-id", 0, "Forward commands to this CAN node")
	controlCmd.Flags().DurationVar(&controlRate, "rate", 50*time.Millisecond, "Command repeat interval")
	controlCmd.MarkFlagsMutuallyExclusive("current", "brake", "duty", "rpm")
	controlCmd.MarkFlagsOneRequired("current", "brake", "duty", "rpm")
}

// setpointPacket builds the command selected by the flags.
func setpointPacket(cmd *cobra.Command) (*vesc.Packet, string, error) {
	flags := cmd.Flags()
	switch {
	case flags.Changed("current"):
		return vesc.NewSetCurrent(controlCurrent), fmt.Sprintf("current %.2f A", controlCurrent), nil
	case flags.Changed("brake"):
		return vesc.NewSetCurrentBrake(controlBrake), fmt.Sprintf("brake %.2f A", controlBrake), nil
	case flags.Changed("duty"):
		if controlDuty < -1 || controlDuty > 1 {
			return nil, "", fmt.Errorf("duty %.3f outside -1..1", controlDuty)
		}
		return vesc.NewSetDuty(controlDuty), fmt.Sprintf("duty %.3f", controlDuty), nil
	case flags.Changed("rpm"):
		return vesc.NewSetRPM(controlRPM), fmt.Sprintf("%d ERPM", controlRPM), nil
	}
	return nil, "", fmt.Errorf("one of --current, --brake, --duty or --rpm is required")
}

func runControl(cmd *cobra.Command, args []string) error {
	if err := requirePositive("rate", controlRate); err != nil {
		return err
	}
	packet, desc, err := setpointPacket(cmd)
	if err != nil {
		return err
	}
	setpoint, err := vesc.ForwardCAN(controlCANID, packet).Bytes()
	if err != nil {
		return err
	}
	release, err := vesc.ForwardCAN(controlCANID, vesc.NewSetCurrent(0)).Bytes()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	log := logger.WithFields(logrus.Fields{"connection": connInfo, "can_id": controlCANID})
	log.WithField("setpoint", desc).Info("Driving motor")

	ticker := time.NewTicker(controlRate)
	defer ticker.Stop()

	sent := 0
	for {
		if _, err := conn.Write(setpoint); err != nil {
			return fmt.Errorf("write setpoint: %w", err)
		}
		sent++

		select {
		case <-ctx.Done():
			if _, err := conn.Write(release); err != nil {
				return fmt.Errorf("release motor: %w", err)
			}
			log.WithField("commands", sent).Info("Motor released")
			return nil
		case <-ticker.C:
		}
	}
}
