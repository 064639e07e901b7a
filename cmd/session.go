// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/dynostat/internal/metrics"
	"github.com/Thermoquad/dynostat/internal/sink"
	"github.com/Thermoquad/dynostat/pkg/policy"
	"github.com/Thermoquad/dynostat/pkg/session"
	"github.com/sirupsen/logrus"
)

// streamOpener opens the configured serial or WebSocket connection for a
// byte-stream acquisition.
func streamOpener(log logrus.FieldLogger) session.StreamOpener {
	return func(ctx context.Context) (session.ByteStream, error) {
		conn, connInfo, err := OpenConnection(ctx)
		if err != nil {
			return nil, err
		}
		log.WithField("connection", connInfo).Info("Connected")
		return conn, nil
	}
}

// buildSinks assembles the sinks enabled in the configuration.
func buildSinks(ctx context.Context, transport string, log logrus.FieldLogger) (sink.Multi, error) {
	var sinks sink.Multi
	sc := cfg.Sinks

	if sc.Log {
		sinks = append(sinks, sink.NewLog(log))
	}

	if sc.CSV != "" {
		c, err := sink.CreateCSV(sc.CSV, transport)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		log.WithField("path", sc.CSV).Info("Writing CSV log")
		sinks = append(sinks, c)
	}

	if sc.Redis.Addr != "" {
		codec, err := sink.NewCodec(sc.Redis.Codec)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		r, err := sink.NewRedis(ctx, sink.RedisOptions{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Channel:  sc.Redis.Channel,
		}, codec, transport, log)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, r)
	}

	if sc.MQTT.URL != "" {
		codec, err := sink.NewCodec(sc.MQTT.Codec)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		m, err := sink.NewMQTT(sc.MQTT.URL, sc.MQTT.Prefix, sc.MQTT.QoS, codec, transport, log)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, m)
	}

	return sinks, nil
}

// runSession logs acq until Ctrl+C, --duration, or a fatal transport error,
// then prints the run statistics.
func runSession(parent context.Context, acq session.Acquisition) error {
	log := logger.WithField("transport", acq.Name())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	collector := metrics.NewCollector()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	sinks, err := buildSinks(ctx, acq.Name(), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.WithError(err).Warn("Failed to close sinks")
		}
	}()

	p, err := policy.Preset(cfg.Policy)
	if err != nil {
		return err
	}
	if len(p) > 0 {
		log.WithField("policy", p.String()).Info("Field policy active")
	}

	driver := session.New(acq, sinks,
		session.WithLogger(log),
		session.WithPolicy(p),
		session.WithObserver(collector),
	)

	if err := driver.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := driver.Start(ctx); err != nil {
		driver.Disconnect()
		return err
	}

	fmt.Fprintf(os.Stderr, "Logging %s telemetry. Press Ctrl+C to exit\n", acq.Name())
	driver.Wait()

	runErr := driver.Err()
	if err := driver.Disconnect(); err != nil {
		log.WithError(err).Warn("Failed to close transport")
	}

	fmt.Fprint(os.Stderr, "\n"+collector.Statistics().String())
	return runErr
}
