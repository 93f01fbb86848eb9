// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the byte stream a Controller talks to.
// A Read that returns (0, nil) means the read timeout elapsed.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenFunc opens the Port identified by name
type OpenFunc func(name string) (Port, error)

// SerialConfig holds the serial line settings
type SerialConfig struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns 115200 baud with a 500ms read timeout
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
}

// SerialPort wraps a serial port
type SerialPort struct {
	port serial.Port
	name string
}

// OpenSerial opens a serial port in 8N1 mode with the configured read timeout
func OpenSerial(name string, cfg SerialConfig) (*SerialPort, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	return &SerialPort{port: port, name: name}, nil
}

// SerialOpener returns an OpenFunc that opens serial ports with cfg
func SerialOpener(cfg SerialConfig) OpenFunc {
	return func(name string) (Port, error) {
		p, err := OpenSerial(name, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (s *SerialPort) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	return s.port.Close()
}

// Name returns the device path the port was opened with
func (s *SerialPort) Name() string {
	return s.name
}

// readFull fills buf from r. Unlike io.ReadFull it gives up on a read that
// returns no data, since that is how a serial read timeout looks.
func readFull(r io.Reader, buf []byte, field string) error {
	got := 0
	for got < len(buf) {
		n, err := r.Read(buf[got:])
		got += n
		if got == len(buf) {
			return nil
		}
		if err != nil {
			return &ShortReadError{Field: field, Want: len(buf), Got: got, Err: err}
		}
		if n == 0 {
			return &ShortReadError{Field: field, Want: len(buf), Got: got, Err: ErrReadTimeout}
		}
	}
	return nil
}
