// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// defaultReadTimeout bounds every Read so polling loops can observe
// deadlines and cancellation.
const defaultReadTimeout = 10 * time.Millisecond

// Connection provides a common interface for reading/writing bytes from serial or WebSocket.
// Read returns 0, nil when no data arrives within the read timeout.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadTimeout(t time.Duration) error
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

func (s *SerialConnection) SetReadTimeout(t time.Duration) error {
	return s.port.SetReadTimeout(t)
}

// ResetInputBuffer discards bytes received but not yet read.
func (s *SerialConnection) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// A reader goroutine pumps binary messages into a channel so Read can time
// out without poisoning the connection.
type WebSocketConnection struct {
	conn     *websocket.Conn
	messages chan []byte
	done     chan struct{}

	mu          sync.Mutex
	readErr     error
	readTimeout time.Duration
	buf         []byte
	closeOnce   sync.Once
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:        conn,
		messages:    make(chan []byte, 64),
		done:        make(chan struct{}),
		readTimeout: defaultReadTimeout,
	}
	go w.pump()
	return w
}

func (w *WebSocketConnection) pump() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}

		// The bridge forwards raw serial bytes as binary messages only
		if messageType != websocket.BinaryMessage {
			continue
		}

		select {
		case w.messages <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	w.mu.Lock()
	timeout := w.readTimeout
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		w.mu.Unlock()
		return n, nil
	}
	w.mu.Unlock()

	select {
	case data, ok := <-w.messages:
		if !ok {
			return 0, ErrConnectionClosed
		}
		n := copy(p, data)
		w.mu.Lock()
		w.buf = data[n:]
		w.mu.Unlock()
		return n, nil
	case <-time.After(timeout):
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

func (w *WebSocketConnection) SetReadTimeout(t time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readTimeout = t
	return nil
}

// ResetInputBuffer drops buffered and queued bytes.
func (w *WebSocketConnection) ResetInputBuffer() error {
	w.mu.Lock()
	w.buf = nil
	w.mu.Unlock()
	for {
		select {
		case _, ok := <-w.messages:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open serial port %s: %w", telemetry.ErrDeviceUnavailable, portName, err)
	}
	if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: %w", telemetry.ErrConfigurationRejected, portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: WebSocket connection failed (HTTP %d): %w", telemetry.ErrDeviceUnavailable, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: WebSocket connection failed: %w", telemetry.ErrDeviceUnavailable, err)
	}

	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("DYNOSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection from the
// serial configuration
func OpenConnection(ctx context.Context) (Connection, string, error) {
	sc := cfg.Serial

	if sc.URL != "" {
		// WebSocket mode
		password := ""
		if sc.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(ctx, sc.URL, sc.Username, password, sc.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", sc.URL), nil
	}

	if sc.Port != "" {
		// Serial mode
		conn, err := OpenSerialConnection(sc.Port, sc.Baud)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", sc.Port, sc.Baud), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}
