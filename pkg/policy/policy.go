// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package policy applies field-validity rules to decoded samples. Decoders
// report what the device sent; policies decide what reaches the sink.
package policy

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Verdict is the outcome of applying a rule to a sample.
type Verdict int

const (
	Accepted Verdict = iota
	Adjusted
	Clamped
	Suppressed
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Adjusted:
		return "adjusted"
	case Clamped:
		return "clamped"
	case Suppressed:
		return "suppressed"
	default:
		return fmt.Sprintf("verdict_%d", int(v))
	}
}

// Rule inspects one sample and returns the (possibly modified) sample.
// Rules ignore samples of other quantities.
type Rule interface {
	Apply(telemetry.Sample) (telemetry.Sample, Verdict)
	String() string
}

// Clamp limits a quantity to [Min, Max].
type Clamp struct {
	Quantity telemetry.Quantity
	Min, Max float64
}

func (c Clamp) Apply(s telemetry.Sample) (telemetry.Sample, Verdict) {
	if s.Quantity != c.Quantity {
		return s, Accepted
	}
	switch {
	case s.Value < c.Min:
		s.Value = c.Min
	case s.Value > c.Max:
		s.Value = c.Max
	default:
		return s, Accepted
	}
	return s, Clamped
}

func (c Clamp) String() string {
	return fmt.Sprintf("clamp %s to [%g, %g]", c.Quantity, c.Min, c.Max)
}

// Ceiling drops samples of a quantity above Max for that tick.
type Ceiling struct {
	Quantity telemetry.Quantity
	Max      float64
}

func (c Ceiling) Apply(s telemetry.Sample) (telemetry.Sample, Verdict) {
	if s.Quantity == c.Quantity && s.Value > c.Max {
		return s, Suppressed
	}
	return s, Accepted
}

func (c Ceiling) String() string {
	return fmt.Sprintf("suppress %s above %g", c.Quantity, c.Max)
}

// NegativeOffset adds Offset to negative samples of a quantity, correcting
// load cell zero drift.
type NegativeOffset struct {
	Quantity telemetry.Quantity
	Offset   float64
}

func (n NegativeOffset) Apply(s telemetry.Sample) (telemetry.Sample, Verdict) {
	if s.Quantity != n.Quantity || s.Value >= 0 {
		return s, Accepted
	}
	s.Value += n.Offset
	return s, Adjusted
}

func (n NegativeOffset) String() string {
	return fmt.Sprintf("offset negative %s by %+g", n.Quantity, n.Offset)
}

// Policy is an ordered chain of rules.
type Policy []Rule

// Apply runs every rule in order. The returned verdict is the most severe
// one seen; once a rule suppresses the sample the chain stops and ok is
// false.
func (p Policy) Apply(s telemetry.Sample) (out telemetry.Sample, verdict Verdict, ok bool) {
	verdict = Accepted
	for _, rule := range p {
		var v Verdict
		s, v = rule.Apply(s)
		if v > verdict {
			verdict = v
		}
		if v == Suppressed {
			return s, verdict, false
		}
	}
	return s, verdict, true
}

func (p Policy) String() string {
	if len(p) == 0 {
		return "none"
	}
	parts := make([]string, len(p))
	for i, r := range p {
		parts[i] = r.String()
	}
	return strings.Join(parts, "; ")
}

// Preset names
const (
	PresetNone     = "none"
	PresetClamp    = "clamp"
	PresetSuppress = "suppress"
)

// Preset returns a named rule set:
//
//	none     no rules
//	clamp    torque clamped to [0, 100] Nm
//	suppress torque above 150 Nm dropped, negative torque offset by +0.05 Nm
func Preset(name string) (Policy, error) {
	switch name {
	case "", PresetNone:
		return nil, nil
	case PresetClamp:
		return Policy{Clamp{Quantity: telemetry.Torque, Min: 0, Max: 100}}, nil
	case PresetSuppress:
		return Policy{
			Ceiling{Quantity: telemetry.Torque, Max: 150},
			NegativeOffset{Quantity: telemetry.Torque, Offset: 0.05},
		}, nil
	default:
		return nil, fmt.Errorf("unknown policy preset %q", name)
	}
}
