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

	"github.com/Thermoquad/dynostat/internal/metrics"
	"github.com/Thermoquad/dynostat/pkg/vesc"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	detectPoll    time.Duration
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and count malformed VESC packets",
	Long: `Track framing errors, CRC errors and truncated replies on a VESC UART link.

Decode errors before the first valid packet are counted as sync noise, not
as errors. After that every framing or CRC failure is printed as it happens,
and a statistics summary (frame rate, error rate, error breakdown) is printed
at a fixed interval.

By default, only errors are displayed. Use --show-all to display valid packets too.
Use --poll to request GET_VALUES so an idle controller produces traffic.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().DurationVar(&detectPoll, "poll", 0, "Send GET_VALUES at this interval (0 = listen only)")
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n\n", timestamp, err)
}

// printTruncatedValues flags a GET_VALUES reply that ended early.
func printTruncatedValues(packet *vesc.Packet, values vesc.Values) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mSHORT REPLY:\033[0m GET_VALUES carried %d fields (%d bytes)\n\n",
		timestamp, values.Fields, packet.Length())
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if err := requirePositive("stats-interval", time.Duration(statsInterval)*time.Second); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Dynostat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var poll <-chan time.Time
	var request []byte
	if detectPoll > 0 {
		request, err = vesc.NewGetValues().Bytes()
		if err != nil {
			return err
		}
		pollTicker := time.NewTicker(detectPoll)
		defer pollTicker.Stop()
		poll = pollTicker.C
	}

	decoder := vesc.NewDecoder()
	stats := metrics.NewStatistics()

	// Sync tracking - ignore decode errors until first valid packet
	synchronized := false
	invalidBytesBeforeSync := 0

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for reads that do not block the tickers
	readChan := make(chan []byte, 10)
	errChan := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n == 0 {
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case readChan <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil

		case err := <-errChan:
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info("Connection closed")
			} else {
				logger.WithError(err).Error("Read error")
			}
			fmt.Print(stats.String())
			return err

		case <-poll:
			if _, err := conn.Write(request); err != nil {
				return fmt.Errorf("write GET_VALUES: %w", err)
			}

		case data := <-readChan:
			for _, b := range data {
				packet, decodeErr := decoder.DecodeByte(b)

				if decodeErr != nil {
					if synchronized {
						// We're synced, this is a real error
						stats.Update(decodeErr)
						printDecodeError(decodeErr)
					} else {
						invalidBytesBeforeSync++
					}
					continue
				}
				if packet == nil {
					continue
				}

				if !synchronized {
					synchronized = true
					if invalidBytesBeforeSync > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", invalidBytesBeforeSync)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}
				stats.Update(nil)

				if packet.Command() == vesc.CommGetValues {
					if values, err := vesc.DecodeValues(packet.Payload()); err == nil && !values.Complete() {
						printTruncatedValues(packet, values)
						continue
					}
				}
				if showAll {
					fmt.Print(vesc.FormatPacket(packet))
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
