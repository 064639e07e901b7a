// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package policy

import (
	"math"
	"testing"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

func torque(v float64) telemetry.Sample {
	return telemetry.Sample{Quantity: telemetry.Torque, Value: v}
}

func TestPreset_Clamp(t *testing.T) {
	p, err := Preset(PresetClamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		in, out float64
		verdict Verdict
	}{
		{50, 50, Accepted},
		{-3, 0, Clamped},
		{120, 100, Clamped},
	}
	for _, tt := range tests {
		s, v, ok := p.Apply(torque(tt.in))
		if !ok {
			t.Errorf("%v: clamp must never suppress", tt.in)
		}
		if s.Value != tt.out || v != tt.verdict {
			t.Errorf("%v: expected %v (%s), got %v (%s)", tt.in, tt.out, tt.verdict, s.Value, v)
		}
	}
}

func TestPreset_Suppress(t *testing.T) {
	p, err := Preset(PresetSuppress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, v, ok := p.Apply(torque(151)); ok || v != Suppressed {
		t.Errorf("151 Nm should be suppressed, got ok=%v verdict=%s", ok, v)
	}
	if s, _, ok := p.Apply(torque(150)); !ok || s.Value != 150 {
		t.Errorf("150 Nm should pass unchanged, got ok=%v value=%v", ok, s.Value)
	}

	s, v, ok := p.Apply(torque(-1))
	if !ok || v != Adjusted || math.Abs(s.Value-(-0.95)) > 1e-9 {
		t.Errorf("negative torque should be offset, got ok=%v verdict=%s value=%v", ok, v, s.Value)
	}
}

func TestPolicy_OtherQuantitiesUntouched(t *testing.T) {
	p, _ := Preset(PresetSuppress)
	in := telemetry.Sample{Quantity: telemetry.Speed, Value: 5000}

	out, v, ok := p.Apply(in)
	if !ok || v != Accepted || out != in {
		t.Errorf("speed sample should pass unchanged, got %v %s %v", out, v, ok)
	}
}

func TestPreset_NoneAndUnknown(t *testing.T) {
	p, err := Preset(PresetNone)
	if err != nil || len(p) != 0 {
		t.Errorf("none preset should be empty, got %v, %v", p, err)
	}
	if p.String() != "none" {
		t.Errorf("expected \"none\", got %q", p.String())
	}
	if _, err := Preset("bogus"); err == nil {
		t.Error("expected error for unknown preset")
	}
}
