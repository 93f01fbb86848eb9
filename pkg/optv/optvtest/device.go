// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package optvtest provides an in-memory device for testing code that
// drives an optv.Controller.
package optvtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// ErrClosed is returned by I/O on a closed Device
var ErrClosed = errors.New("optvtest: device closed")

// Device answers device info and statistics commands the way the firmware
// does. Reads with nothing pending return (0, nil), like a serial timeout.
type Device struct {
	Info optv.DeviceInfo

	// Samples are served in order, repeating the last one
	Samples []optv.StatisticsSample

	// Garbage is emitted once, ahead of the first response, like boot noise
	Garbage []byte

	mu      sync.Mutex
	pending []byte
	served  int
	writes  int
	opens   int
	closes  int
	closed  bool
}

// NewDevice creates a device with the given serial number and samples
func NewDevice(serial uint32, samples ...optv.StatisticsSample) *Device {
	return &Device{
		Info:    optv.DeviceInfo{SerialNumber: serial},
		Samples: samples,
	}
}

// Opener returns an OpenFunc that hands out this device
func (d *Device) Opener() optv.OpenFunc {
	return func(name string) (optv.Port, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.opens++
		d.closed = false
		return d, nil
	}
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}

	for _, b := range p {
		d.writes++
		if d.writes == 1 {
			d.pending = append(d.pending, d.Garbage...)
		}
		switch b {
		case optv.CmdDeviceInfo:
			d.pending = append(d.pending, optv.EncodeDeviceInfoFrame(d.Info)...)
		case optv.CmdStatistics:
			frame, err := optv.EncodeStatisticsFrame(d.nextSample())
			if err != nil {
				return 0, fmt.Errorf("optvtest: %w", err)
			}
			d.pending = append(d.pending, frame...)
		}
	}
	return len(p), nil
}

func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}

	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.closed = true
	return nil
}

// Writes returns the number of command bytes received
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Opens returns how many times the device was opened
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes returns how many times the device was closed
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Pending returns the number of unread response bytes
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Device) nextSample() *optv.StatisticsSample {
	if len(d.Samples) == 0 {
		return &optv.StatisticsSample{InputVoltages: []uint32{}, InputCurrents: []uint32{}}
	}
	i := d.served
	if i >= len(d.Samples) {
		i = len(d.Samples) - 1
	}
	d.served++
	return &d.Samples[i]
}
