// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"slices"

	"github.com/Thermoquad/dynostat/pkg/policy"
	"github.com/Thermoquad/dynostat/pkg/vesccan"
	"github.com/sirupsen/logrus"
)

var codecs = []string{"json", "cbor"}

// Validate checks configuration correctness.
// It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- LOG ----

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format: %q is not text or json", cfg.Log.Format)
	}

	// ---- SERIAL ----

	if cfg.Serial.URL == "" {
		if cfg.Serial.Port == "" {
			return fmt.Errorf("serial: port or url is required")
		}
		if cfg.Serial.Baud <= 0 {
			return fmt.Errorf("serial.baud: %d is not a valid baud rate", cfg.Serial.Baud)
		}
	}

	// ---- MODBUS ----

	if cfg.Modbus.Station == 0 || cfg.Modbus.Station > 247 {
		return fmt.Errorf("modbus.station: %d outside 1..247", cfg.Modbus.Station)
	}
	if cfg.Modbus.IntervalMs < 0 || cfg.Modbus.ReadBudgetMs < 0 || cfg.Modbus.IdleSleepMs < 0 {
		return fmt.Errorf("modbus: timings must not be negative")
	}

	// ---- UART ----

	if cfg.UART.PollIntervalMs < 0 || cfg.UART.TimeoutMs < 0 || cfg.UART.KeepAliveMs < 0 {
		return fmt.Errorf("uart: timings must not be negative")
	}

	// ---- CAN ----

	if !slices.Contains(vesccan.Bitrates, cfg.CAN.Bitrate) {
		return fmt.Errorf("can.bitrate: %d not one of %v", cfg.CAN.Bitrate, vesccan.Bitrates)
	}
	if cfg.CAN.KeepAliveMs < 0 || cfg.CAN.ReadTimeoutMs < 0 {
		return fmt.Errorf("can: timings must not be negative")
	}

	// ---- POLICY ----

	if _, err := policy.Preset(cfg.Policy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	// ---- SINKS ----

	if cfg.Sinks.Redis.Addr != "" {
		if cfg.Sinks.Redis.Channel == "" {
			return fmt.Errorf("sinks.redis.channel is required")
		}
		if !slices.Contains(codecs, cfg.Sinks.Redis.Codec) {
			return fmt.Errorf("sinks.redis.codec: %q not one of %v", cfg.Sinks.Redis.Codec, codecs)
		}
	}
	if cfg.Sinks.MQTT.URL != "" {
		if cfg.Sinks.MQTT.QoS > 2 {
			return fmt.Errorf("sinks.mqtt.qos: %d outside 0..2", cfg.Sinks.MQTT.QoS)
		}
		if !slices.Contains(codecs, cfg.Sinks.MQTT.Codec) {
			return fmt.Errorf("sinks.mqtt.codec: %q not one of %v", cfg.Sinks.MQTT.Codec, codecs)
		}
	}

	return nil
}
