// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dynostat/pkg/vesc"
	"github.com/spf13/cobra"
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test raw link stability",
	Long: `Hold a serial or WebSocket link open and report on its stability.

Nothing is decoded. Every read is counted, and the longest silence between
reads is reported at the end. The test runs for --duration (30s if unset).
With --alive the VESC ALIVE packet is sent at the given interval so the
controller keeps its timeout watchdog fed.

Exit codes:
  0 - Test completed normally
  1 - Link dropped during the test
  2 - Connection error`,
	RunE: runLinkTest,
}

// defaultLinkTestDuration applies when --duration is not given.
const defaultLinkTestDuration = 30 * time.Second

var linkTestAlive time.Duration

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().DurationVar(&linkTestAlive, "alive", 0, "Send ALIVE at this interval (0 = silent)")
}

// linkReport accumulates what the read loop observed.
type linkReport struct {
	bytes      int
	reads      int
	writes     int
	lastRead   time.Time
	longestGap time.Duration
}

func (r *linkReport) read(n int, at time.Time) {
	r.bytes += n
	r.reads++
	if !r.lastRead.IsZero() {
		if gap := at.Sub(r.lastRead); gap > r.longestGap {
			r.longestGap = gap
		}
	}
	r.lastRead = at
}

func (r *linkReport) print() {
	fmt.Printf("\n=== Link Test Results ===\n")
	fmt.Printf("Bytes received: %d\n", r.bytes)
	fmt.Printf("Reads:          %d\n", r.reads)
	fmt.Printf("ALIVE sent:     %d\n", r.writes)
	if r.reads > 1 {
		fmt.Printf("Longest gap:    %v\n", r.longestGap.Round(time.Millisecond))
	}
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	duration := runDuration
	if duration <= 0 {
		duration = defaultLinkTestDuration
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), duration)
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %v\n\n", duration)

	var alive <-chan time.Time
	var aliveFrame []byte
	if linkTestAlive > 0 {
		aliveFrame, err = vesc.NewAlive().Bytes()
		if err != nil {
			return err
		}
		ticker := time.NewTicker(linkTestAlive)
		defer ticker.Stop()
		alive = ticker.C
	}

	readChan := make(chan int, 100)
	errChan := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n == 0 {
				continue
			}
			select {
			case readChan <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Printf("Listening for data...\n\n")

	report := &linkReport{}
	for {
		select {
		case <-ctx.Done():
			report.print()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				fmt.Printf("\nTest completed successfully\n")
			}
			return nil

		case n := <-readChan:
			report.read(n, time.Now())
			logger.WithField("bytes", n).Debug("Read")

		case <-alive:
			if _, err := conn.Write(aliveFrame); err != nil {
				logger.WithError(err).Error("Write failed")
				report.print()
				os.Exit(1)
			}
			report.writes++

		case err := <-errChan:
			logger.WithError(err).Error("Link dropped")
			report.print()
			os.Exit(1)
		}
	}
}
