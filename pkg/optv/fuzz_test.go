// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 500
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 500
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomSample(rng *rand.Rand) StatisticsSample {
	n := rng.Intn(MaxInputs + 1)
	s := StatisticsSample{
		InputVoltages:  make([]uint32, n),
		InputCurrents:  make([]uint32, n),
		OutputVoltage:  rng.Uint32(),
		LoadCurrent:    rng.Uint32(),
		BatteryCurrent: rng.Uint32(),
	}
	for i := 0; i < n; i++ {
		s.InputVoltages[i] = rng.Uint32()
		s.InputCurrents[i] = rng.Uint32()
	}
	return s
}

// TestFuzzStatistics_RoundTrip encodes random samples and decodes them back
func TestFuzzStatistics_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		sample := randomSample(rng)
		frame := statisticsFrame(&sample)

		got, err := DecodeStatistics(bytes.NewReader(frame[1:]))
		if err != nil {
			t.Fatalf("round %d: DecodeStatistics error: %v", i, err)
		}
		if !got.Equal(&sample) {
			t.Fatalf("round %d: sample mismatch for %d inputs", i, sample.NumInputs())
		}
	}
}

// TestFuzzSpinFetch_RandomJunk prefixes each response with junk that never
// contains the command byte and checks the handshake still lands on the frame
func TestFuzzSpinFetch_RandomJunk(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		info := DeviceInfo{SerialNumber: rng.Uint32(), Reserved: rng.Uint32()}

		junk := rng.Intn(64)
		var chunks [][]byte
		for j := 0; j < junk; j++ {
			if rng.Intn(4) == 0 {
				chunks = append(chunks, nil)
				continue
			}
			b := byte(rng.Intn(256))
			if b == CmdDeviceInfo {
				b++
			}
			chunks = append(chunks, []byte{b})
		}
		chunks = append(chunks, EncodeDeviceInfoFrame(info))
		port := newMockPort(chunks...)

		frame, attempts, err := SpinFetch(context.Background(), port, CmdDeviceInfo, DeviceInfoFrameSize, RetryPolicy{})
		if err != nil {
			t.Fatalf("round %d: SpinFetch error: %v", i, err)
		}
		if attempts != junk+1 {
			t.Fatalf("round %d: attempts = %d, want %d", i, attempts, junk+1)
		}
		got, err := DecodeDeviceInfo(frame)
		if err != nil || got != info {
			t.Fatalf("round %d: decoded %+v (%v), want %+v", i, got, err, info)
		}
	}
}

// TestFuzzDecodeStatistics_RandomBytes feeds random payloads to the decoder
// and verifies it never panics
func TestFuzzDecodeStatistics_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(512))
		rng.Read(data)
		_, _ = DecodeStatistics(bytes.NewReader(data))
	}
}
