// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optv

import "fmt"

// AnomalyType represents different types of sample anomalies
type AnomalyType int

const (
	AnomalyNoInputs AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyCurrentWithoutVoltage
	AnomalyLoadWithoutOutput
)

// ValidationError represents a suspicious reading. Anomalies are warnings;
// the sample is still delivered.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateSample checks a sample for readings that are physically unlikely
// Returns a slice of validation errors (empty if the sample looks sane)
func ValidateSample(s *StatisticsSample) []ValidationError {
	errors := []ValidationError{}

	if len(s.InputVoltages) == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyNoInputs,
			Message: "Device reported zero inputs",
			Details: map[string]interface{}{"num_inputs": 0},
		})
	}

	if len(s.InputVoltages) != len(s.InputCurrents) {
		return append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("Input arrays differ: %d voltages, %d currents", len(s.InputVoltages), len(s.InputCurrents)),
			Details: map[string]interface{}{"voltages": len(s.InputVoltages), "currents": len(s.InputCurrents)},
		})
	}

	for i := range s.InputVoltages {
		if s.InputVoltages[i] == 0 && s.InputCurrents[i] > 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyCurrentWithoutVoltage,
				Message: fmt.Sprintf("Input %d draws current=%d at zero voltage", i, s.InputCurrents[i]),
				Details: map[string]interface{}{"input": i, "current": s.InputCurrents[i]},
			})
		}
	}

	if s.OutputVoltage == 0 && s.LoadCurrent > 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyLoadWithoutOutput,
			Message: fmt.Sprintf("Load current=%d at zero output voltage", s.LoadCurrent),
			Details: map[string]interface{}{"load_current": s.LoadCurrent},
		})
	}

	return errors
}
