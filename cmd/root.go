// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dynostat/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     = config.Default()
	logger  = logrus.New()

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging and output flags
	logLevel    string
	logFormat   string
	metricsAddr string
	csvPath     string
	runDuration time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dynostat",
	Short: "Dynamometer and motor controller telemetry logger",
	Long: `Dynostat - A CLI tool for logging dynamometer and motor controller telemetry.

Reads torque, speed and power from a Modbus RTU transducer, and current,
voltage and RPM from a VESC motor controller over UART or CAN (SLCAN).
Samples go to the log, a CSV file, Redis or MQTT.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the DYNOSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also come from a YAML file (--config). Flags override the file.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging and output flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().StringVar(&csvPath, "csv", "", "Write samples to this CSV file")
	rootCmd.PersistentFlags().DurationVar(&runDuration, "duration", 0, "Stop logging after this long (0 runs until Ctrl+C)")
}

// loadConfig reads the config file, applies explicitly set flags on top,
// then validates and sets up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Serial.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Serial.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Serial.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if flags.Changed("csv") {
		cfg.Sinks.CSV = csvPath
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	config.Normalize(cfg)

	return setupLogger(cfg.Log)
}

func setupLogger(lc config.LogConfig) error {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)

	if lc.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}
	return nil
}

// requirePositive rejects a ticker interval flag that is zero or negative.
func requirePositive(flag string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("--%s must be positive, got %v", flag, d)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
