// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// RetryPolicy bounds the echo handshake in SpinFetch.
// The zero value retries forever without delay.
type RetryPolicy struct {
	// MaxAttempts is the number of command writes before giving up (0 = unbounded)
	MaxAttempts int

	// Backoff spaces out attempts after a miss. Nil means busy retry.
	Backoff *backoff.Backoff
}

// SpinFetch writes request until the device echoes it back, then reads the
// rest of a size-byte response. The returned frame starts with the echo.
//
// A read timeout or any byte other than the echo counts as a miss and the
// command is written again, which realigns the stream after a dropped byte
// or a device reset. attempts is the number of command writes made.
func SpinFetch(ctx context.Context, port Port, request byte, size int, policy RetryPolicy) (frame []byte, attempts int, err error) {
	if size < 1 {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if policy.Backoff != nil {
		policy.Backoff.Reset()
	}

	frame = make([]byte, size)
	cmd := []byte{request}

	for {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}
		if policy.MaxAttempts > 0 && attempts >= policy.MaxAttempts {
			return nil, attempts, &SyncError{Command: request, Attempts: attempts}
		}

		attempts++
		if _, err := port.Write(cmd); err != nil {
			return nil, attempts, fmt.Errorf("failed to write command 0x%02X: %w", request, err)
		}

		n, err := port.Read(frame[:1])
		if n == 1 && frame[0] == request {
			break
		}
		if err != nil {
			return nil, attempts, fmt.Errorf("failed to read echo for command 0x%02X: %w", request, err)
		}

		if policy.Backoff != nil {
			timer := time.NewTimer(policy.Backoff.Duration())
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, attempts, ctx.Err()
			case <-timer.C:
			}
		}
	}

	if size > 1 {
		field := fmt.Sprintf("response to 0x%02X", request)
		if err := readFull(port, frame[1:], field); err != nil {
			return nil, attempts, err
		}
	}

	return frame, attempts, nil
}
