package model

import (
	"errors"
	"fmt"
)

// ErrSimulationCancelled is surfaced when the run's context is cancelled
// before all Monte Carlo batches complete. Partial tables are never returned.
var ErrSimulationCancelled = errors.New("simulation cancelled")

// SchemaMismatchError reports an input-contract violation: a missing or
// duplicated join key, or conflicting attributes that would silently fan out
// or merge rows.
type SchemaMismatchError struct {
	Table  string
	Column string
	Key    string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("schema mismatch in table %q", e.Table)
	if e.Column != "" {
		msg += fmt.Sprintf(", column %q", e.Column)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(", key %q", e.Key)
	}
	return msg + ": " + e.Reason
}

// InsufficientTrainingDataError means the imputation model could not be fit.
// The orchestrator treats it as a defined fallback, not a run failure.
type InsufficientTrainingDataError struct {
	Rows     int
	Required int
}

func (e *InsufficientTrainingDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d field-verified rows, need at least %d", e.Rows, e.Required)
}

// StageError tags any component failure with the pipeline stage it came from,
// so callers see a single descriptive error instead of partial results.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("simulation stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
