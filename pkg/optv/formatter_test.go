// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDeviceInfo(t *testing.T) {
	info := DeviceInfo{SerialNumber: 1234, Reserved: 0xAB}

	if got := FormatDeviceInfo(info, false); got != "Serial number: 1234\n" {
		t.Errorf("FormatDeviceInfo() = %q", got)
	}

	raw := FormatDeviceInfo(info, true)
	if !strings.Contains(raw, "Reserved:      0x000000AB (171)") {
		t.Errorf("raw output missing reserved word: %q", raw)
	}
}

func TestFormatSample(t *testing.T) {
	at := time.Date(2025, 3, 1, 14, 5, 9, 250*int(time.Millisecond), time.UTC)
	s := &StatisticsSample{
		InputVoltages:  []uint32{12000, 11800},
		InputCurrents:  []uint32{400, 390},
		OutputVoltage:  5000,
		LoadCurrent:    780,
		BatteryCurrent: 10,
	}

	want := "[14:05:09.250] inputs=2 vin=[12000 11800] iin=[400 390] vout=5000 iload=780 ibatt=10\n"
	if got := FormatSample(at, s); got != want {
		t.Errorf("FormatSample() = %q, want %q", got, want)
	}
}

func TestFormatWords(t *testing.T) {
	tests := []struct {
		words []uint32
		want  string
	}{
		{nil, "[]"},
		{[]uint32{7}, "[7]"},
		{[]uint32{1, 4294967295}, "[1 4294967295]"},
	}

	for _, tt := range tests {
		if got := FormatWords(tt.words); got != tt.want {
			t.Errorf("FormatWords(%v) = %q, want %q", tt.words, got, tt.want)
		}
	}
}

func TestFormatAnomalyType(t *testing.T) {
	if got := FormatAnomalyType(AnomalyLoadWithoutOutput); got != "LOAD_WITHOUT_OUTPUT" {
		t.Errorf("FormatAnomalyType() = %q", got)
	}
	if got := FormatAnomalyType(AnomalyType(99)); got != "UNKNOWN" {
		t.Errorf("FormatAnomalyType(99) = %q, want UNKNOWN", got)
	}
}
