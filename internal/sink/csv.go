// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
)

// Layout fixes the columns of a CSV log. The first column is always the
// elapsed time in seconds.
type Layout struct {
	Header     []string
	Quantities []telemetry.Quantity
}

var layouts = map[string]Layout{
	"modbus": {
		Header:     []string{"Time (s)", "Torque (Nm)", "Speed (RPM)", "Watts"},
		Quantities: []telemetry.Quantity{telemetry.Torque, telemetry.Speed, telemetry.Watts},
	},
	"uart": {
		Header:     []string{"time", "current", "voltage"},
		Quantities: []telemetry.Quantity{telemetry.MotorCurrent, telemetry.BusVoltage},
	},
	"can": {
		Header:     []string{"time", "current", "voltage", "rpm"},
		Quantities: []telemetry.Quantity{telemetry.MotorCurrent, telemetry.BusVoltage, telemetry.MotorRPM},
	},
	"canbridge": {
		Header:     []string{"time", "current", "voltage", "rpm"},
		Quantities: []telemetry.Quantity{telemetry.MotorCurrent, telemetry.BusVoltage, telemetry.MotorRPM},
	},
}

// LayoutFor returns the column layout of a transport's CSV log.
func LayoutFor(transport string) (Layout, error) {
	l, ok := layouts[transport]
	if !ok {
		return Layout{}, fmt.Errorf("no CSV layout for transport %q", transport)
	}
	return l, nil
}

// CSV writes one row per backfilled record. Columns with no value yet are
// left empty.
type CSV struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	layout Layout
	err    error
}

// NewCSV writes the header to w.
func NewCSV(w io.Writer, layout Layout) (*CSV, error) {
	c := &CSV{w: csv.NewWriter(w), layout: layout}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	if err := c.w.Write(layout.Header); err != nil {
		return nil, err
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCSV creates path and writes the header for transport.
func CreateCSV(path, transport string) (*CSV, error) {
	layout, err := LayoutFor(transport)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create CSV log: %w", err)
	}
	c, err := NewCSV(f, layout)
	if err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// Publish implements telemetry.Sink. Rows come from PublishRecord.
func (c *CSV) Publish(telemetry.Sample) {}

func (c *CSV) Status(telemetry.StatusEvent) {}

// PublishRecord writes one row.
func (c *CSV) PublishRecord(r telemetry.Record) {
	row := make([]string, 0, len(c.layout.Header))
	row = append(row, strconv.FormatFloat(r.Elapsed.Seconds(), 'f', 3, 64))
	for _, q := range c.layout.Quantities {
		if v, ok := r.Value(q); ok {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		} else {
			row = append(row, "")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	if err := c.w.Write(row); err != nil {
		c.err = err
		return
	}
	c.w.Flush()
	c.err = c.w.Error()
}

// Err returns the first write error.
func (c *CSV) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close flushes and closes the underlying file.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
		c.closer = nil
	}
	return err
}
