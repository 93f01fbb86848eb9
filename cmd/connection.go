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
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection carries the serial byte stream over a WebSocket bridge.
// Reads wait at most readTimeout and then return (0, nil), like a serial port.
type WebSocketConnection struct {
	conn        *websocket.Conn
	readTimeout time.Duration

	msgs chan []byte
	done chan struct{}
	buf  []byte

	mu      sync.Mutex
	readErr error

	closeOnce sync.Once
}

func newWebSocketConnection(conn *websocket.Conn, readTimeout time.Duration) *WebSocketConnection {
	if readTimeout <= 0 {
		readTimeout = optv.DefaultReadTimeout
	}
	w := &WebSocketConnection{
		conn:        conn,
		readTimeout: readTimeout,
		msgs:        make(chan []byte, 64),
		done:        make(chan struct{}),
	}
	go w.readLoop()
	return w
}

// readLoop moves binary messages to the msgs channel until the connection fails
func (w *WebSocketConnection) readLoop() {
	defer close(w.msgs)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}

		// Only binary messages carry device bytes
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		select {
		case w.msgs <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}

	timer := time.NewTimer(w.readTimeout)
	defer timer.Stop()

	select {
	case data, ok := <-w.msgs:
		if !ok {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.readErr != nil {
				return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)
			}
			return 0, ErrConnectionClosed
		}
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	case <-timer.C:
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
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

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool, readTimeout time.Duration) (*WebSocketConnection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn, readTimeout), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("OPTV_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// target describes where the device is reached
type target struct {
	open optv.OpenFunc
	name string
	info string
}

// resolveTarget picks serial or WebSocket based on flags. The WebSocket
// password is asked for once here so reconnects do not prompt again.
func resolveTarget(cfg *Config) (target, error) {
	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return target{}, err
			}
		}

		username, skip, timeout := cfg.Username, cfg.NoSSLVerify, cfg.ReadTimeout
		open := func(name string) (optv.Port, error) {
			conn, err := OpenWebSocketConnection(name, username, password, skip, timeout)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
		return target{open: open, name: cfg.URL, info: fmt.Sprintf("WebSocket: %s", cfg.URL)}, nil
	}

	if cfg.Port != "" {
		return target{
			open: optv.SerialOpener(cfg.SerialConfig()),
			name: cfg.Port,
			info: fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud),
		}, nil
	}

	return target{}, errors.New("either --port or --url must be specified")
}

// newController creates a controller using the configured retry policy and logger
func newController(open optv.OpenFunc) *optv.Controller {
	return optv.NewController(open,
		optv.WithRetryPolicy(settings.RetryPolicy()),
		optv.WithLogger(logger),
	)
}
