// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"errors"
	"fmt"
)

var (
	// ErrShortRead matches any *ShortReadError
	ErrShortRead = errors.New("short read")

	// ErrReadTimeout is the cause of a short read that stalled on the read timeout
	ErrReadTimeout = errors.New("read timeout")

	// ErrSyncExhausted is returned when a bounded RetryPolicy runs out of attempts
	ErrSyncExhausted = errors.New("device did not echo command")

	ErrNotConnected = errors.New("not connected")
	ErrInvalidSize  = errors.New("invalid response size")
)

// ShortReadError reports a frame field that arrived incomplete.
// The stream is out of alignment after this error; the next SpinFetch
// realigns it.
type ShortReadError struct {
	Field string
	Want  int
	Got   int
	Err   error
}

func (e *ShortReadError) Error() string {
	msg := fmt.Sprintf("short read in %s: got %d of %d bytes", e.Field, e.Got, e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ShortReadError) Unwrap() error { return e.Err }

func (e *ShortReadError) Is(target error) bool { return target == ErrShortRead }

// SyncError reports that no echo arrived within RetryPolicy.MaxAttempts
type SyncError struct {
	Command  byte
	Attempts int
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("no echo for command 0x%02X after %d attempts", e.Command, e.Attempts)
}

func (e *SyncError) Unwrap() error { return ErrSyncExhausted }
