// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatDeviceInfo formats device info into a human-readable string.
// raw adds the undocumented reserved word.
func FormatDeviceInfo(info DeviceInfo, raw bool) string {
	result := fmt.Sprintf("Serial number: %d\n", info.SerialNumber)
	if raw {
		result += fmt.Sprintf("Reserved:      0x%08X (%d)\n", info.Reserved, info.Reserved)
	}
	return result
}

// FormatSample formats a sample as a single timestamped line
func FormatSample(at time.Time, s *StatisticsSample) string {
	return fmt.Sprintf("[%s] inputs=%d vin=%s iin=%s vout=%d iload=%d ibatt=%d\n",
		at.Format("15:04:05.000"),
		s.NumInputs(),
		FormatWords(s.InputVoltages),
		FormatWords(s.InputCurrents),
		s.OutputVoltage,
		s.LoadCurrent,
		s.BatteryCurrent)
}

// FormatWords formats a reading array as [a b c]
func FormatWords(words []uint32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatUint(uint64(w), 10))
	}
	b.WriteByte(']')
	return b.String()
}

// FormatAnomalyType returns the human-readable name for an anomaly type
func FormatAnomalyType(t AnomalyType) string {
	switch t {
	case AnomalyNoInputs:
		return "NO_INPUTS"
	case AnomalyLengthMismatch:
		return "LENGTH_MISMATCH"
	case AnomalyCurrentWithoutVoltage:
		return "CURRENT_WITHOUT_VOLTAGE"
	case AnomalyLoadWithoutOutput:
		return "LOAD_WITHOUT_OUTPUT"
	default:
		return "UNKNOWN"
	}
}
