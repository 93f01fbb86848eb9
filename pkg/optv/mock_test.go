// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"bytes"
	"io"
)

// mockPort replays a scripted byte stream. Each chunk is returned by
// successive reads; a nil chunk is a read timeout. When the script runs
// out, reads return io.EOF (the stream closed).
type mockPort struct {
	chunks  [][]byte
	written bytes.Buffer
	writes  int
	closes  int
}

func newMockPort(chunks ...[]byte) *mockPort {
	return &mockPort{chunks: chunks}
}

func (m *mockPort) Read(p []byte) (int, error) {
	if len(m.chunks) == 0 {
		return 0, io.EOF
	}

	chunk := m.chunks[0]
	if chunk == nil {
		m.chunks = m.chunks[1:]
		return 0, nil
	}

	n := copy(p, chunk)
	if n == len(chunk) {
		m.chunks = m.chunks[1:]
	} else {
		m.chunks[0] = chunk[n:]
	}
	return n, nil
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.writes++
	return m.written.Write(p)
}

func (m *mockPort) Close() error {
	m.closes++
	return nil
}

// remaining returns the number of scripted bytes not yet read
func (m *mockPort) remaining() int {
	total := 0
	for _, c := range m.chunks {
		total += len(c)
	}
	return total
}

func (m *mockPort) opener() OpenFunc {
	return func(name string) (Port, error) { return m, nil }
}

// statisticsFrame encodes s, panicking on invalid samples
func statisticsFrame(s *StatisticsSample) []byte {
	frame, err := EncodeStatisticsFrame(s)
	if err != nil {
		panic(err)
	}
	return frame
}

// sequentialWords returns n words starting at base
func sequentialWords(n int, base uint32) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = base + uint32(i)
	}
	return words
}
