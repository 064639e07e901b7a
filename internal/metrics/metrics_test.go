// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dynostat/pkg/policy"
	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{fmt.Errorf("torque: %w", telemetry.ErrCRCMismatch), ResultCRCMismatch},
		{telemetry.ErrBadByteCount, ResultBadByteCount},
		{telemetry.ErrTooShort, ResultTooShort},
		{telemetry.ErrIncomplete, ResultIncomplete},
		{telemetry.ErrFraming, ResultFraming},
		{errors.New("boom"), ResultOther},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Result(tt.err), "err=%v", tt.err)
	}
}

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ObserveFrame("modbus", nil)
	c.ObserveFrame("modbus", nil)
	c.ObserveFrame("modbus", telemetry.ErrCRCMismatch)
	c.ObserveSample("modbus", telemetry.Sample{Quantity: telemetry.Torque, Value: 12.5}, policy.Accepted)
	c.ObserveSample("modbus", telemetry.Sample{Quantity: telemetry.Torque, Value: 200}, policy.Suppressed)

	require.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues("modbus", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.frames.WithLabelValues("modbus", ResultCRCMismatch)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.samples.WithLabelValues("modbus", "torque", "suppressed")))
	require.Equal(t, 12.5, testutil.ToFloat64(c.last.WithLabelValues("torque")))

	stats := c.Statistics()
	require.Equal(t, uint64(3), stats.TotalFrames)
	require.Equal(t, uint64(2), stats.ValidFrames)
	require.Equal(t, uint64(1), stats.CRCErrors)
	require.Equal(t, uint64(1), stats.Samples)
	require.Equal(t, uint64(1), stats.Suppressed)
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.ObserveFrame("can", nil)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), `dynostat_frames_total{result="ok",transport="can"} 1`)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatistics(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	s := NewStatistics()
	s.now = func() time.Time { return now }
	s.StartTime = start

	for i := 0; i < 8; i++ {
		s.Update(nil)
	}
	s.Update(telemetry.ErrCRCMismatch)
	s.Update(fmt.Errorf("speed: %w", telemetry.ErrIncomplete))
	s.UpdateSample(policy.Accepted)
	s.UpdateSample(policy.Clamped)

	now = start.Add(2 * time.Second)
	s.CalculateRates()
	require.InDelta(t, 5.0, s.FrameRate, 1e-9)
	require.InDelta(t, 1.0, s.ErrorRate, 1e-9)

	out := s.String()
	require.Contains(t, out, "=== Statistics (2 seconds) ===")
	require.Contains(t, out, "Valid Frames:           8 (80.0%)")
	require.Contains(t, out, "CRC Errors:             1 (10.0%)")
	require.Contains(t, out, "Incomplete:             1 (10.0%)")
	require.Contains(t, out, "  Clamped:              1")
	require.NotContains(t, out, "Framing Errors")

	s.Reset()
	require.Zero(t, s.TotalFrames)
	require.Zero(t, s.Samples)
	require.Equal(t, now, s.StartTime)
	require.True(t, strings.HasPrefix(s.String(), "=== Statistics (0 seconds) ==="))
}
