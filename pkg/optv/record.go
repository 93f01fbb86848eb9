// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one timestamped sample in a recording
type Record struct {
	Time         time.Time        `json:"time" cbor:"1,keyasint"`
	SerialNumber uint32           `json:"serial_number" cbor:"2,keyasint"`
	Sample       StatisticsSample `json:"sample" cbor:"3,keyasint"`
}

// Recorder appends records to w as a CBOR sequence
type Recorder struct {
	enc *cbor.Encoder
}

// NewRecorder creates a recorder writing to w
func NewRecorder(w io.Writer) (*Recorder, error) {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &Recorder{enc: em.NewEncoder(w)}, nil
}

// Write appends one record
func (r *Recorder) Write(rec Record) error {
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

// ReadRecords decodes records from r and calls fn for each until EOF.
// An error returned by fn stops the iteration and is returned as is.
func ReadRecords(r io.Reader, fn func(Record) error) error {
	dec := cbor.NewDecoder(r)
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
