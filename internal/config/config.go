// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config holds the YAML configuration of a dynostat session.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Serial  SerialConfig  `yaml:"serial"`
	Modbus  ModbusConfig  `yaml:"modbus"`
	UART    UARTConfig    `yaml:"uart"`
	CAN     CANConfig     `yaml:"can"`
	Policy  string        `yaml:"policy"`
	Sinks   SinksConfig   `yaml:"sinks"`
}

// ---- AMBIENT ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

// ---- TRANSPORT ----

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// WebSocket serial bridge, used instead of Port when URL is set
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

type ModbusConfig struct {
	Station      uint8 `yaml:"station"`
	IntervalMs   int   `yaml:"interval_ms"`
	Strict       bool  `yaml:"strict"`
	ReadBudgetMs int   `yaml:"read_budget_ms"`
	IdleSleepMs  int   `yaml:"idle_sleep_ms"`
}

type UARTConfig struct {
	// CANID forwards requests to another controller on the CAN bus; 0 is local.
	CANID          uint8 `yaml:"can_id"`
	PollIntervalMs int   `yaml:"poll_interval_ms"`
	TimeoutMs      int   `yaml:"timeout_ms"`
	KeepAliveMs    int   `yaml:"keep_alive_ms"`
}

type CANConfig struct {
	Bitrate       int   `yaml:"bitrate"`
	Node          uint8 `yaml:"node"`
	KeepAliveMs   int   `yaml:"keep_alive_ms"`
	ReadTimeoutMs int   `yaml:"read_timeout_ms"`
}

// ---- SINKS ----

type SinksConfig struct {
	Log   bool        `yaml:"log"`
	CSV   string      `yaml:"csv"`
	Redis RedisConfig `yaml:"redis"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	Codec    string `yaml:"codec"`
}

type MQTTConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
	QoS    byte   `yaml:"qos"`
	Codec  string `yaml:"codec"`
}

// Default returns a configuration that runs without a config file.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
		},
		Modbus: ModbusConfig{
			Station:      1,
			IntervalMs:   100,
			ReadBudgetMs: 50,
			IdleSleepMs:  5,
		},
		UART: UARTConfig{
			PollIntervalMs: 100,
			TimeoutMs:      100,
			KeepAliveMs:    250,
		},
		CAN: CANConfig{
			Bitrate:       1000000,
			Node:          1,
			KeepAliveMs:   20,
			ReadTimeoutMs: 10,
		},
		Policy: "none",
		Sinks: SinksConfig{
			Log: true,
			Redis: RedisConfig{
				Channel: "dynostat",
				Codec:   "json",
			},
			MQTT: MQTTConfig{
				Prefix: "dynostat",
				Codec:  "json",
			},
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (c ModbusConfig) Interval() time.Duration   { return ms(c.IntervalMs) }
func (c ModbusConfig) ReadBudget() time.Duration { return ms(c.ReadBudgetMs) }
func (c ModbusConfig) IdleSleep() time.Duration  { return ms(c.IdleSleepMs) }

func (c UARTConfig) PollInterval() time.Duration { return ms(c.PollIntervalMs) }
func (c UARTConfig) Timeout() time.Duration      { return ms(c.TimeoutMs) }
func (c UARTConfig) KeepAlive() time.Duration    { return ms(c.KeepAliveMs) }

func (c CANConfig) KeepAlive() time.Duration   { return ms(c.KeepAliveMs) }
func (c CANConfig) ReadTimeout() time.Duration { return ms(c.ReadTimeoutMs) }
