// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"errors"
	"fmt"
	"time"
)

// PollStatistics tracks poll outcomes and error rates
type PollStatistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPolls   uint64
	Samples      uint64
	ShortReads   uint64
	SyncFailures uint64
	OtherErrors  uint64
	SyncAttempts uint64 // command writes, including the successful one
	Resyncs      uint64 // polls that needed more than one write
	Anomalies    uint64

	// Rates (calculated)
	SampleRate float64 // samples/sec
	ErrorRate  float64 // errors/sec
}

// NewPollStatistics creates a new statistics tracker
func NewPollStatistics() *PollStatistics {
	now := time.Now()
	return &PollStatistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records the outcome of one poll
func (s *PollStatistics) Update(attempts int, pollErr error, anomalies []ValidationError) {
	s.TotalPolls++
	s.SyncAttempts += uint64(attempts)
	if attempts > 1 {
		s.Resyncs++
	}
	s.LastUpdateTime = time.Now()

	if pollErr != nil {
		switch {
		case errors.Is(pollErr, ErrShortRead):
			s.ShortReads++
		case errors.Is(pollErr, ErrSyncExhausted):
			s.SyncFailures++
		default:
			s.OtherErrors++
		}
		return
	}

	s.Samples++
	s.Anomalies += uint64(len(anomalies))
}

// Errors returns the number of failed polls
func (s *PollStatistics) Errors() uint64 {
	return s.ShortReads + s.SyncFailures + s.OtherErrors
}

// CalculateRates calculates sample and error rates
func (s *PollStatistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.SampleRate = float64(s.Samples) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *PollStatistics) String() string {
	s.CalculateRates()

	var samplePercent, errorPercent float64
	if s.TotalPolls > 0 {
		samplePercent = float64(s.Samples) * 100.0 / float64(s.TotalPolls)
		errorPercent = float64(s.Errors()) * 100.0 / float64(s.TotalPolls)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Polls:     %8d\n", s.TotalPolls)
	result += fmt.Sprintf("Samples:         %8d (%.1f%%)\n", s.Samples, samplePercent)

	if s.Errors() > 0 {
		result += fmt.Sprintf("Errors:          %8d (%.1f%%)\n", s.Errors(), errorPercent)
		if s.ShortReads > 0 {
			result += fmt.Sprintf("  Short Reads:      %5d\n", s.ShortReads)
		}
		if s.SyncFailures > 0 {
			result += fmt.Sprintf("  Sync Failures:    %5d\n", s.SyncFailures)
		}
		if s.OtherErrors > 0 {
			result += fmt.Sprintf("  Other:            %5d\n", s.OtherErrors)
		}
	}
	if s.Resyncs > 0 {
		result += fmt.Sprintf("Resyncs:         %8d (%d writes)\n", s.Resyncs, s.SyncAttempts)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}

	result += fmt.Sprintf("Sample Rate:     %8.1f samples/sec\n", s.SampleRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *PollStatistics) Reset() {
	*s = *NewPollStatistics()
}
