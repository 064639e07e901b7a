// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/sirupsen/logrus"
)

// Log writes one log entry per sample and status event.
type Log struct {
	log logrus.FieldLogger
}

func NewLog(log logrus.FieldLogger) *Log {
	return &Log{log: log}
}

func (l *Log) Publish(s telemetry.Sample) {
	l.log.WithFields(logrus.Fields{
		"elapsed":  s.Elapsed.Seconds(),
		"quantity": s.Quantity.String(),
		"value":    s.Value,
		"unit":     s.Quantity.Unit(),
	}).Info("Sample")
}

func (l *Log) Status(ev telemetry.StatusEvent) {
	entry := l.log.WithField("status", ev.Kind.String())
	if ev.Err != nil {
		entry.WithError(ev.Err).Error("Session failed")
		return
	}
	entry.Info("Session status")
}
