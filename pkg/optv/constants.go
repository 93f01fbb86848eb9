// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import "time"

// Command bytes. The device echoes the command as the first response byte.
const (
	CmdDeviceInfo byte = 'a'
	CmdStatistics byte = 'b'
)

// Terminator is the last byte of every response frame
const Terminator byte = ';'

// Frame sizes
const (
	DeviceInfoFrameSize = 10 // echo + 2 x uint32 + terminator
	MaxInputs           = 255

	wordSize        = 4
	scalarWordCount = 3 // output voltage, load current, battery current
)

// Serial link defaults
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 500 * time.Millisecond
)
