// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Controller owns the connection to one device.
// It is not safe for concurrent use; requests and responses strictly alternate.
type Controller struct {
	open  OpenFunc
	retry RetryPolicy
	log   zerolog.Logger

	port Port
	name string
	info *DeviceInfo

	lastAttempts int
}

// Option configures a Controller
type Option func(*Controller)

// WithRetryPolicy bounds the echo handshake of every request
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Controller) { c.retry = p }
}

// WithLogger sets the diagnostics logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController creates a disconnected Controller that opens ports with open
func NewController(open OpenFunc, opts ...Option) *Controller {
	c := &Controller{
		open: open,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether a port is open
func (c *Controller) Connected() bool {
	return c.port != nil
}

// Connect opens the port (reusing one that is already open) and fetches
// the device info, caching the serial number
func (c *Controller) Connect(ctx context.Context, name string) error {
	if c.port == nil {
		port, err := c.open(name)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		c.port = port
		c.name = name
		c.log.Debug().Str("port", name).Msg("connection opened")
	}

	_, err := c.DeviceInfo(ctx)
	return err
}

// DeviceInfo fetches the device info frame and refreshes the cached copy
func (c *Controller) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	if c.port == nil {
		return DeviceInfo{}, ErrNotConnected
	}

	frame, err := c.fetch(ctx, CmdDeviceInfo, DeviceInfoFrameSize)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("device info: %w", err)
	}

	info, err := DecodeDeviceInfo(frame)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("device info: %w", err)
	}
	c.checkTerminator(CmdDeviceInfo, frame[len(frame)-1])

	c.info = &info
	c.log.Debug().Uint32("serial", info.SerialNumber).Msg("device info received")
	return info, nil
}

// Statistics fetches one statistics sample
func (c *Controller) Statistics(ctx context.Context) (*StatisticsSample, error) {
	if c.port == nil {
		return nil, ErrNotConnected
	}

	// The payload length depends on num_inputs, so only the echo is fetched here
	if _, err := c.fetch(ctx, CmdStatistics, 1); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}

	sample, terminator, err := decodeStatistics(c.port)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	c.checkTerminator(CmdStatistics, terminator)

	return sample, nil
}

// SerialNumber returns the serial number from the latest successful Connect
func (c *Controller) SerialNumber() (uint32, bool) {
	if c.info == nil {
		return 0, false
	}
	return c.info.SerialNumber, true
}

// Info returns the cached device info
func (c *Controller) Info() (DeviceInfo, bool) {
	if c.info == nil {
		return DeviceInfo{}, false
	}
	return *c.info, true
}

// LastAttempts returns the number of command writes the last request needed
func (c *Controller) LastAttempts() int {
	return c.lastAttempts
}

// Disconnect closes the port if one is open. Calling it again is a no-op.
func (c *Controller) Disconnect() error {
	if c.port == nil {
		return nil
	}

	port := c.port
	c.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", c.name, err)
	}
	c.log.Debug().Str("port", c.name).Msg("connection closed")
	return nil
}

// Session connects to name, runs fn and disconnects on every exit path
func (c *Controller) Session(ctx context.Context, name string, fn func(ctx context.Context, c *Controller) error) (err error) {
	defer func() {
		if cerr := c.Disconnect(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := c.Connect(ctx, name); err != nil {
		return err
	}
	return fn(ctx, c)
}

func (c *Controller) fetch(ctx context.Context, cmd byte, size int) ([]byte, error) {
	frame, attempts, err := SpinFetch(ctx, c.port, cmd, size, c.retry)
	c.lastAttempts = attempts
	if attempts > 1 {
		c.log.Debug().
			Str("command", string(cmd)).
			Int("attempts", attempts).
			Msg("resynchronized with device")
	}
	return frame, err
}

func (c *Controller) checkTerminator(cmd byte, got byte) {
	if got != Terminator {
		c.log.Warn().
			Str("command", string(cmd)).
			Str("terminator", fmt.Sprintf("0x%02X", got)).
			Msg("unexpected frame terminator")
	}
}
