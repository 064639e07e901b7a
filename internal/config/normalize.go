// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

// MinModbusIntervalMs is the shortest poll interval the transducer tolerates.
const MinModbusIntervalMs = 10

// Normalize fills zero timings and raises the Modbus poll interval to its
// floor. Call it only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	def := Default()

	if cfg.Modbus.IntervalMs == 0 {
		cfg.Modbus.IntervalMs = def.Modbus.IntervalMs
	}
	if cfg.Modbus.IntervalMs < MinModbusIntervalMs {
		cfg.Modbus.IntervalMs = MinModbusIntervalMs
	}
	if cfg.Modbus.ReadBudgetMs == 0 {
		cfg.Modbus.ReadBudgetMs = def.Modbus.ReadBudgetMs
	}
	if cfg.Modbus.IdleSleepMs == 0 {
		cfg.Modbus.IdleSleepMs = def.Modbus.IdleSleepMs
	}

	if cfg.UART.PollIntervalMs == 0 {
		cfg.UART.PollIntervalMs = def.UART.PollIntervalMs
	}
	if cfg.UART.TimeoutMs == 0 {
		cfg.UART.TimeoutMs = def.UART.TimeoutMs
	}
	if cfg.UART.KeepAliveMs == 0 {
		cfg.UART.KeepAliveMs = def.UART.KeepAliveMs
	}

	if cfg.CAN.KeepAliveMs == 0 {
		cfg.CAN.KeepAliveMs = def.CAN.KeepAliveMs
	}
	if cfg.CAN.ReadTimeoutMs == 0 {
		cfg.CAN.ReadTimeoutMs = def.CAN.ReadTimeoutMs
	}

	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
}
