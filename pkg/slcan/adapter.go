// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/Thermoquad/dynostat/pkg/vesccan"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	bel = 0x07

	commandTimeout = 200 * time.Millisecond
)

var bitrateCommands = map[int]string{
	10000:   "S0",
	20000:   "S1",
	50000:   "S2",
	100000:  "S3",
	125000:  "S4",
	250000:  "S5",
	500000:  "S6",
	800000:  "S7",
	1000000: "S8",
}

// Port is the serial line the adapter is attached to.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Adapter is a serial-line CAN adapter. Send may be called concurrently
// with Read.
type Adapter struct {
	port Port
	log  logrus.FieldLogger

	writeMu sync.Mutex
	readMu  sync.Mutex
	rbuf    []byte
	open    bool
}

// Open opens the adapter's serial port.
func Open(portName string, baudRate int, log logrus.FieldLogger) (*Adapter, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", telemetry.ErrDeviceUnavailable, portName, err)
	}
	return New(port, log), nil
}

// New wraps an already open port.
func New(port Port, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{port: port, log: log}
}

// Scan asks the adapter for its hardware and firmware version and returns
// it as the adapter's identifier. An adapter that does not answer yields
// telemetry.ErrDeviceUnavailable.
func (a *Adapter) Scan() ([]string, error) {
	// Close any channel left open by a previous session; the reply is
	// irrelevant.
	a.command("C", commandTimeout)

	reply, err := a.command("V", commandTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: no SLCAN adapter answered: %w", telemetry.ErrDeviceUnavailable, err)
	}
	return []string{reply}, nil
}

// SetBitrate selects one of the standard bus bitrates. It must be called
// before Start.
func (a *Adapter) SetBitrate(bitrate int) error {
	cmd, ok := bitrateCommands[bitrate]
	if !ok {
		return fmt.Errorf("%w: unsupported bitrate %d", telemetry.ErrConfigurationRejected, bitrate)
	}
	if _, err := a.command(cmd, commandTimeout); err != nil {
		return fmt.Errorf("%w: bitrate %d: %w", telemetry.ErrConfigurationRejected, bitrate, err)
	}
	return nil
}

// Start opens the CAN channel.
func (a *Adapter) Start() error {
	if _, err := a.command("O", commandTimeout); err != nil {
		return fmt.Errorf("%w: open channel: %w", telemetry.ErrConfigurationRejected, err)
	}
	a.open = true
	return nil
}

// Stop closes the CAN channel.
func (a *Adapter) Stop() error {
	if !a.open {
		return nil
	}
	a.open = false
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_, err := a.port.Write([]byte("C\r"))
	return err
}

// Close stops the channel and releases the serial port.
func (a *Adapter) Close() error {
	stopErr := a.Stop()
	if err := a.port.Close(); err != nil {
		return err
	}
	return stopErr
}

// Send transmits a frame.
func (a *Adapter) Send(f vesccan.Frame) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if _, err := a.port.Write([]byte(EncodeFrame(f))); err != nil {
		return fmt.Errorf("%w: send: %w", telemetry.ErrTransportClosed, err)
	}
	return nil
}

// Read waits up to timeout for the next received frame. It returns false
// when no frame arrived in time. Malformed lines are logged and skipped.
func (a *Adapter) Read(timeout time.Duration) (vesccan.Frame, bool, error) {
	a.readMu.Lock()
	defer a.readMu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		for {
			line, ok := a.nextLine()
			if !ok {
				break
			}
			if !isFrameLine(line) {
				continue
			}
			f, err := ParseFrame(string(line))
			if err != nil {
				a.log.WithError(err).Debug("Dropping malformed SLCAN line")
				continue
			}
			return f, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return vesccan.Frame{}, false, nil
		}
		if err := a.fill(remaining); err != nil {
			return vesccan.Frame{}, false, err
		}
	}
}

// command sends an ASCII command and waits for the CR (success) or BEL
// (refused) reply, returning any text before the CR.
func (a *Adapter) command(cmd string, timeout time.Duration) (string, error) {
	a.writeMu.Lock()
	_, err := a.port.Write([]byte(cmd + "\r"))
	a.writeMu.Unlock()
	if err != nil {
		return "", err
	}

	a.readMu.Lock()
	defer a.readMu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if i := bytes.IndexAny(a.rbuf, "\r\a"); i >= 0 {
			term := a.rbuf[i]
			reply := string(a.rbuf[:i])
			a.rbuf = a.rbuf[i+1:]
			if term == bel {
				return "", errRefused
			}
			if isFrameLine([]byte(reply)) {
				// traffic from an already open channel
				continue
			}
			return reply, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", errNoReply
		}
		if err := a.fill(remaining); err != nil {
			return "", err
		}
	}
}

var (
	errRefused = errors.New("adapter refused command")
	errNoReply = errors.New("adapter did not reply")
)

// fill reads once from the port, waiting at most timeout.
func (a *Adapter) fill(timeout time.Duration) error {
	if err := a.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("%w: %w", telemetry.ErrTransportClosed, err)
	}
	buf := make([]byte, 256)
	n, err := a.port.Read(buf)
	if n > 0 {
		a.rbuf = append(a.rbuf, buf[:n]...)
	}
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: read: %w", telemetry.ErrTransportClosed, err)
	}
	if n == 0 && err == nil {
		time.Sleep(time.Millisecond)
	}
	return nil
}

// nextLine pops the next CR or BEL terminated line from the buffer.
func (a *Adapter) nextLine() ([]byte, bool) {
	i := bytes.IndexAny(a.rbuf, "\r\a")
	if i < 0 {
		return nil, false
	}
	line := a.rbuf[:i]
	a.rbuf = a.rbuf[i+1:]
	return line, true
}

func isFrameLine(line []byte) bool {
	if len(line) == 0 {
		return false
	}
	switch line[0] {
	case 't', 'T', 'r', 'R':
		return true
	}
	return false
}
