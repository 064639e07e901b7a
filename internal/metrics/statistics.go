// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/dynostat/pkg/policy"
	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Statistics tracks frame outcomes and error rates for one session.
// It is safe for concurrent use.
type Statistics struct {
	mu  sync.Mutex
	now func() time.Time

	StartTime      time.Time
	LastUpdateTime time.Time

	// Frames
	TotalFrames   uint64
	ValidFrames   uint64
	CRCErrors     uint64
	ByteCountErrs uint64
	ShortFrames   uint64
	Incomplete    uint64
	FramingErrors uint64

	// Samples
	Samples    uint64
	Adjusted   uint64
	Clamped    uint64
	Suppressed uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{now: time.Now}
	s.StartTime = s.now()
	s.LastUpdateTime = s.StartTime
	return s
}

// Update counts one frame. A nil err is a valid frame.
func (s *Statistics) Update(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalFrames++
	s.LastUpdateTime = s.now()

	switch {
	case err == nil:
		s.ValidFrames++
	case errors.Is(err, telemetry.ErrCRCMismatch):
		s.CRCErrors++
	case errors.Is(err, telemetry.ErrBadByteCount):
		s.ByteCountErrs++
	case errors.Is(err, telemetry.ErrTooShort):
		s.ShortFrames++
	case errors.Is(err, telemetry.ErrIncomplete):
		s.Incomplete++
	default:
		s.FramingErrors++
	}
}

// UpdateSample counts one sample by its policy verdict.
func (s *Statistics) UpdateSample(v policy.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v {
	case policy.Suppressed:
		s.Suppressed++
		return
	case policy.Adjusted:
		s.Adjusted++
	case policy.Clamped:
		s.Clamped++
	}
	s.Samples++
}

func (s *Statistics) errorCount() uint64 {
	return s.CRCErrors + s.ByteCountErrs + s.ShortFrames + s.Incomplete + s.FramingErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := s.now().Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", s.now().Sub(s.StartTime).Seconds())
	fmt.Fprintf(&b, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&b, "Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	errorLines := []struct {
		label string
		n     uint64
	}{
		{"CRC Errors:      ", s.CRCErrors},
		{"Byte Count Errs: ", s.ByteCountErrs},
		{"Short Frames:    ", s.ShortFrames},
		{"Incomplete:      ", s.Incomplete},
		{"Framing Errors:  ", s.FramingErrors},
	}
	for _, l := range errorLines {
		if l.n > 0 {
			fmt.Fprintf(&b, "%s%8d (%.1f%%)\n", l.label, l.n, percent(l.n))
		}
	}

	fmt.Fprintf(&b, "Samples:         %8d\n", s.Samples)
	if s.Adjusted > 0 {
		fmt.Fprintf(&b, "  Adjusted:         %5d\n", s.Adjusted)
	}
	if s.Clamped > 0 {
		fmt.Fprintf(&b, "  Clamped:          %5d\n", s.Clamped)
	}
	if s.Suppressed > 0 {
		fmt.Fprintf(&b, "Suppressed:      %8d\n", s.Suppressed)
	}

	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalFrames = 0
	s.ValidFrames = 0
	s.CRCErrors = 0
	s.ByteCountErrs = 0
	s.ShortFrames = 0
	s.Incomplete = 0
	s.FramingErrors = 0
	s.Samples = 0
	s.Adjusted = 0
	s.Clamped = 0
	s.Suppressed = 0
	s.FrameRate = 0
	s.ErrorRate = 0
}
