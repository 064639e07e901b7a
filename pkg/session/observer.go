// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"github.com/Thermoquad/dynostat/pkg/policy"
	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Observer receives per-frame and per-sample outcomes, for metrics.
type Observer interface {
	ObserveFrame(transport string, err error)
	ObserveSample(transport string, s telemetry.Sample, verdict policy.Verdict)
}

type nopObserver struct{}

func (nopObserver) ObserveFrame(string, error) {}
func (nopObserver) ObserveSample(string, telemetry.Sample, policy.Verdict) {}
