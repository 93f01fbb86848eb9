// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestDecodeDeviceInfo(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		want    DeviceInfo
		wantErr bool
	}{
		{
			name:  "serial one",
			frame: []byte{0x61, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x3B},
			want:  DeviceInfo{SerialNumber: 1, Reserved: 2},
		},
		{
			name:  "little endian",
			frame: []byte{0x61, 0xEF, 0xBE, 0xAD, 0xDE, 0x00, 0x00, 0x00, 0x00, 0x3B},
			want:  DeviceInfo{SerialNumber: 0xDEADBEEF},
		},
		{
			name:    "short frame",
			frame:   []byte{0x61, 0x01, 0x00},
			wantErr: true,
		},
		{
			name:    "empty frame",
			frame:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDeviceInfo(tt.frame)
			if tt.wantErr {
				if !errors.Is(err, ErrShortRead) {
					t.Fatalf("expected ErrShortRead, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDeviceInfo error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeDeviceInfo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeDeviceInfoFrame(t *testing.T) {
	frame := EncodeDeviceInfoFrame(DeviceInfo{SerialNumber: 1, Reserved: 2})
	want := []byte{0x61, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x3B}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % X, want % X", frame, want)
	}
}

func TestDecodeStatistics_Sizes(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, MaxInputs} {
		sample := StatisticsSample{
			InputVoltages:  sequentialWords(n, 12000),
			InputCurrents:  sequentialWords(n, 300),
			OutputVoltage:  5000,
			LoadCurrent:    1200,
			BatteryCurrent: 0xFFFFFFFF,
		}
		frame := statisticsFrame(&sample)

		wantLen := 1 + 1 + 4*n + 4*n + 12 + 1
		if len(frame) != wantLen {
			t.Errorf("n=%d: frame length = %d, want %d", n, len(frame), wantLen)
		}

		// Decode starts after the echo
		r := bytes.NewReader(frame[1:])
		got, err := DecodeStatistics(r)
		if err != nil {
			t.Fatalf("n=%d: DecodeStatistics error: %v", n, err)
		}
		if !got.Equal(&sample) {
			t.Errorf("n=%d: sample mismatch", n)
		}
		if r.Len() != 0 {
			t.Errorf("n=%d: %d bytes left after terminator", n, r.Len())
		}
	}
}

func TestDecodeStatistics_KnownBytes(t *testing.T) {
	payload := []byte{
		0x01,                   // num_inputs
		0xE8, 0x03, 0x00, 0x00, // vin[0] = 1000
		0x0A, 0x00, 0x00, 0x00, // iin[0] = 10
		0x88, 0x13, 0x00, 0x00, // vout = 5000
		0x14, 0x00, 0x00, 0x00, // iload = 20
		0x00, 0x00, 0x00, 0x80, // ibatt = 2^31
		0x3B,
	}

	got, err := DecodeStatistics(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("DecodeStatistics error: %v", err)
	}
	want := StatisticsSample{
		InputVoltages:  []uint32{1000},
		InputCurrents:  []uint32{10},
		OutputVoltage:  5000,
		LoadCurrent:    20,
		BatteryCurrent: 1 << 31,
	}
	if !got.Equal(&want) {
		t.Errorf("DecodeStatistics() = %+v, want %+v", got, want)
	}
}

func TestDecodeStatistics_ShortReads(t *testing.T) {
	sample := StatisticsSample{
		InputVoltages:  []uint32{1, 2},
		InputCurrents:  []uint32{3, 4},
		OutputVoltage:  5,
		LoadCurrent:    6,
		BatteryCurrent: 7,
	}
	payload := statisticsFrame(&sample)[1:]

	tests := []struct {
		name  string
		cut   int
		field string
	}{
		{"empty", 0, "num_inputs"},
		{"no voltages", 1, "input_voltages"},
		{"partial voltage", 1 + 3, "input_voltages"},
		{"partial currents", 1 + 8 + 5, "input_currents"},
		{"no scalars", 1 + 16, "scalars"},
		{"partial scalars", 1 + 16 + 11, "scalars"},
		{"no terminator", 1 + 16 + 12, "terminator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStatistics(bytes.NewReader(payload[:tt.cut]))
			if !errors.Is(err, ErrShortRead) {
				t.Fatalf("expected ErrShortRead, got %v", err)
			}
			var shortErr *ShortReadError
			if !errors.As(err, &shortErr) {
				t.Fatalf("expected *ShortReadError, got %T", err)
			}
			if shortErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", shortErr.Field, tt.field)
			}
			if !errors.Is(err, io.EOF) {
				t.Errorf("expected io.EOF cause, got %v", shortErr.Err)
			}
		})
	}
}

func TestDecodeStatistics_TerminatorDiscarded(t *testing.T) {
	sample := StatisticsSample{InputVoltages: []uint32{1}, InputCurrents: []uint32{2}}
	payload := statisticsFrame(&sample)[1:]
	payload[len(payload)-1] = 0x00

	got, err := DecodeStatistics(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("DecodeStatistics error: %v", err)
	}
	if !got.Equal(&sample) {
		t.Errorf("sample = %+v, want %+v", got, sample)
	}
}

func TestEncodeStatisticsFrame_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		sample StatisticsSample
	}{
		{
			name:   "too many inputs",
			sample: StatisticsSample{InputVoltages: make([]uint32, 256), InputCurrents: make([]uint32, 256)},
		},
		{
			name:   "length mismatch",
			sample: StatisticsSample{InputVoltages: []uint32{1, 2}, InputCurrents: []uint32{1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeStatisticsFrame(&tt.sample); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStatisticsSample_Equal(t *testing.T) {
	a := &StatisticsSample{InputVoltages: []uint32{1}, InputCurrents: []uint32{2}, LoadCurrent: 3}
	b := &StatisticsSample{InputVoltages: []uint32{1}, InputCurrents: []uint32{2}, LoadCurrent: 3}
	c := &StatisticsSample{InputVoltages: []uint32{1}, InputCurrents: []uint32{9}, LoadCurrent: 3}

	if !a.Equal(b) {
		t.Error("identical samples should be equal")
	}
	if a.Equal(c) {
		t.Error("samples with different currents should differ")
	}
	if a.Equal(nil) {
		t.Error("sample should not equal nil")
	}
}
