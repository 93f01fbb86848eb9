// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"encoding/binary"
	"fmt"
)

// EncodeDeviceInfoFrame builds the device's response to CmdDeviceInfo
func EncodeDeviceInfoFrame(info DeviceInfo) []byte {
	frame := make([]byte, 0, DeviceInfoFrameSize)
	frame = append(frame, CmdDeviceInfo)
	frame = binary.LittleEndian.AppendUint32(frame, info.SerialNumber)
	frame = binary.LittleEndian.AppendUint32(frame, info.Reserved)
	return append(frame, Terminator)
}

// EncodeStatisticsFrame builds the device's response to CmdStatistics,
// echo byte included
func EncodeStatisticsFrame(s *StatisticsSample) ([]byte, error) {
	n := len(s.InputVoltages)
	if n > MaxInputs {
		return nil, fmt.Errorf("too many inputs: %d (max %d)", n, MaxInputs)
	}
	if len(s.InputCurrents) != n {
		return nil, fmt.Errorf("input arrays differ in length: %d voltages, %d currents", n, len(s.InputCurrents))
	}

	frame := make([]byte, 0, 2+(2*n+scalarWordCount)*wordSize+1)
	frame = append(frame, CmdStatistics, byte(n))
	for _, v := range s.InputVoltages {
		frame = binary.LittleEndian.AppendUint32(frame, v)
	}
	for _, c := range s.InputCurrents {
		frame = binary.LittleEndian.AppendUint32(frame, c)
	}
	frame = binary.LittleEndian.AppendUint32(frame, s.OutputVoltage)
	frame = binary.LittleEndian.AppendUint32(frame, s.LoadCurrent)
	frame = binary.LittleEndian.AppendUint32(frame, s.BatteryCurrent)
	return append(frame, Terminator), nil
}
