// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"encoding/binary"
	"io"
	"slices"
)

// DeviceInfo is the decoded device info frame
type DeviceInfo struct {
	SerialNumber uint32 `json:"serial_number" cbor:"1,keyasint"`

	// Reserved is the second word of the frame. The firmware does not
	// document it; nothing here interprets it.
	Reserved uint32 `json:"-" cbor:"2,keyasint,omitempty"`
}

// StatisticsSample is one statistics reading
type StatisticsSample struct {
	InputVoltages  []uint32 `json:"input_voltages" cbor:"1,keyasint"`
	InputCurrents  []uint32 `json:"input_currents" cbor:"2,keyasint"`
	OutputVoltage  uint32   `json:"output_voltage" cbor:"3,keyasint"`
	LoadCurrent    uint32   `json:"load_current" cbor:"4,keyasint"`
	BatteryCurrent uint32   `json:"battery_current" cbor:"5,keyasint"`
}

// NumInputs returns the input count reported by the device
func (s *StatisticsSample) NumInputs() int {
	return len(s.InputVoltages)
}

// Equal reports whether two samples hold the same readings
func (s *StatisticsSample) Equal(o *StatisticsSample) bool {
	if s == nil || o == nil {
		return s == o
	}
	return slices.Equal(s.InputVoltages, o.InputVoltages) &&
		slices.Equal(s.InputCurrents, o.InputCurrents) &&
		s.OutputVoltage == o.OutputVoltage &&
		s.LoadCurrent == o.LoadCurrent &&
		s.BatteryCurrent == o.BatteryCurrent
}

// DecodeDeviceInfo decodes a complete device info frame, echo and terminator included
func DecodeDeviceInfo(frame []byte) (DeviceInfo, error) {
	if len(frame) != DeviceInfoFrameSize {
		return DeviceInfo{}, &ShortReadError{Field: "device_info", Want: DeviceInfoFrameSize, Got: len(frame)}
	}
	return DeviceInfo{
		SerialNumber: binary.LittleEndian.Uint32(frame[1:5]),
		Reserved:     binary.LittleEndian.Uint32(frame[5:9]),
	}, nil
}

// DecodeStatistics reads a statistics payload from r, starting right after
// the echo byte. The terminator is consumed and discarded.
func DecodeStatistics(r io.Reader) (*StatisticsSample, error) {
	sample, _, err := decodeStatistics(r)
	return sample, err
}

func decodeStatistics(r io.Reader) (*StatisticsSample, byte, error) {
	var count [1]byte
	if err := readFull(r, count[:], "num_inputs"); err != nil {
		return nil, 0, err
	}
	n := int(count[0])

	voltages, err := readWords(r, n, "input_voltages")
	if err != nil {
		return nil, 0, err
	}

	currents, err := readWords(r, n, "input_currents")
	if err != nil {
		return nil, 0, err
	}

	scalars, err := readWords(r, scalarWordCount, "scalars")
	if err != nil {
		return nil, 0, err
	}

	var terminator [1]byte
	if err := readFull(r, terminator[:], "terminator"); err != nil {
		return nil, 0, err
	}

	return &StatisticsSample{
		InputVoltages:  voltages,
		InputCurrents:  currents,
		OutputVoltage:  scalars[0],
		LoadCurrent:    scalars[1],
		BatteryCurrent: scalars[2],
	}, terminator[0], nil
}

// readWords reads count little-endian uint32 values
func readWords(r io.Reader, count int, field string) ([]uint32, error) {
	buf := make([]byte, count*wordSize)
	if err := readFull(r, buf, field); err != nil {
		return nil, err
	}

	words := make([]uint32, count)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*wordSize:])
	}
	return words, nil
}
