// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports session counters to Prometheus and keeps a
// printable summary for the end of a run.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Thermoquad/dynostat/pkg/policy"
	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Frame result labels
const (
	ResultOK           = "ok"
	ResultCRCMismatch  = "crc_mismatch"
	ResultBadByteCount = "bad_byte_count"
	ResultTooShort     = "too_short"
	ResultIncomplete   = "incomplete"
	ResultFraming      = "framing"
	ResultOther        = "error"
)

// Result maps a frame outcome to its label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, telemetry.ErrCRCMismatch):
		return ResultCRCMismatch
	case errors.Is(err, telemetry.ErrBadByteCount):
		return ResultBadByteCount
	case errors.Is(err, telemetry.ErrTooShort):
		return ResultTooShort
	case errors.Is(err, telemetry.ErrIncomplete):
		return ResultIncomplete
	case errors.Is(err, telemetry.ErrFraming):
		return ResultFraming
	default:
		return ResultOther
	}
}

// Collector observes a session driver. It owns its registry so several
// collectors can coexist in one process.
type Collector struct {
	registry *prometheus.Registry
	stats    *Statistics

	frames  *prometheus.CounterVec
	samples *prometheus.CounterVec
	last    *prometheus.GaugeVec
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stats:    NewStatistics(),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dynostat_frames_total",
				Help: "Frames received, by transport and result.",
			},
			[]string{"transport", "result"},
		),
		samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dynostat_samples_total",
				Help: "Decoded samples, by transport, quantity and policy verdict.",
			},
			[]string{"transport", "quantity", "verdict"},
		),
		last: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dynostat_sample_value",
				Help: "Last published value of each quantity.",
			},
			[]string{"quantity"},
		),
	}
	c.registry.MustRegister(c.frames, c.samples, c.last)
	return c
}

// Statistics returns the run summary fed by this collector.
func (c *Collector) Statistics() *Statistics { return c.stats }

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveFrame implements session.Observer.
func (c *Collector) ObserveFrame(transport string, err error) {
	c.frames.WithLabelValues(transport, Result(err)).Inc()
	c.stats.Update(err)
}

// ObserveSample implements session.Observer.
func (c *Collector) ObserveSample(transport string, s telemetry.Sample, v policy.Verdict) {
	c.samples.WithLabelValues(transport, s.Quantity.String(), v.String()).Inc()
	c.stats.UpdateSample(v)
	if v != policy.Suppressed {
		c.last.WithLabelValues(s.Quantity.String()).Set(s.Value)
	}
}

// Handler serves /metrics and /health.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics server on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("Metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
