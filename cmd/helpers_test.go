// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"sync"

	"github.com/Thermoquad/optvstat/pkg/optv"
)

// scriptedPort replays chunks on read; a nil chunk or an empty script is
// a read timeout
type scriptedPort struct {
	mu     sync.Mutex
	chunks [][]byte
	writes int
	closes int
}

func (s *scriptedPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) == 0 {
		return 0, nil
	}
	chunk := s.chunks[0]
	n := copy(p, chunk)
	if n == len(chunk) {
		s.chunks = s.chunks[1:]
	} else {
		s.chunks[0] = chunk[n:]
	}
	return n, nil
}

func (s *scriptedPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return len(p), nil
}

func (s *scriptedPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *scriptedPort) opener() optv.OpenFunc {
	return func(string) (optv.Port, error) { return s, nil }
}

func mustStatisticsFrame(s optv.StatisticsSample) []byte {
	frame, err := optv.EncodeStatisticsFrame(&s)
	if err != nil {
		panic(err)
	}
	return frame
}

func testSamples() []optv.StatisticsSample {
	return []optv.StatisticsSample{
		{InputVoltages: []uint32{12000, 11800}, InputCurrents: []uint32{400, 390}, OutputVoltage: 5000, LoadCurrent: 780},
		{InputVoltages: []uint32{12010, 11790}, InputCurrents: []uint32{410, 380}, OutputVoltage: 5001, LoadCurrent: 781},
		{InputVoltages: []uint32{12020, 11780}, InputCurrents: []uint32{420, 370}, OutputVoltage: 5002, LoadCurrent: 782},
	}
}
