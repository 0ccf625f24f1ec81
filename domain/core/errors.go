package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Validation errors
	ErrRowIndexOutOfRange    = errors.New("row index out of range")
	ErrColumnIndexOutOfRange = errors.New("column index out of range")
	ErrBlankColumnName       = errors.New("column name cannot be blank")
	ErrNilTable              = errors.New("table cannot be nil")
	ErrInvalidSettings       = errors.New("invalid simulation settings")
	ErrUnknownStatistic      = errors.New("unknown test statistic")

	// State errors
	ErrNothingToUndo        = errors.New("nothing to undo")
	ErrNothingToRedo        = errors.New("nothing to redo")
	ErrMinimumColumns       = errors.New("a design needs at least two columns")
	ErrSimulationRunning    = errors.New("simulation already running")
	ErrSimulationNotRunning = errors.New("simulation is not running")
	ErrNotEnoughRows        = errors.New("at least two complete rows are required")

	// Computation errors
	ErrTwoGroupsRequired  = errors.New("statistic requires exactly two treatment groups")
	ErrInsufficientGroups = errors.New("statistic requires at least two treatment groups")
	ErrDegenerateVariance = errors.New("within-group variance is zero")
	ErrNoSimulatedData    = errors.New("no simulated statistics to estimate from")
)

// Error constructors with context
func NewRowIndexError(index, count int) error {
	return fmt.Errorf("%w: %d (rows: %d)", ErrRowIndexOutOfRange, index, count)
}

func NewColumnIndexError(index, count int) error {
	return fmt.Errorf("%w: %d (columns: %d)", ErrColumnIndexOutOfRange, index, count)
}

func NewUnknownStatisticError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownStatistic, name)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrRowIndexOutOfRange) ||
		errors.Is(err, ErrColumnIndexOutOfRange) ||
		errors.Is(err, ErrBlankColumnName) ||
		errors.Is(err, ErrNilTable) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrUnknownStatistic)
}

func IsStateError(err error) bool {
	return errors.Is(err, ErrNothingToUndo) ||
		errors.Is(err, ErrNothingToRedo) ||
		errors.Is(err, ErrMinimumColumns) ||
		errors.Is(err, ErrSimulationRunning) ||
		errors.Is(err, ErrSimulationNotRunning) ||
		errors.Is(err, ErrNotEnoughRows)
}

func IsComputationError(err error) bool {
	return errors.Is(err, ErrTwoGroupsRequired) ||
		errors.Is(err, ErrInsufficientGroups) ||
		errors.Is(err, ErrDegenerateVariance) ||
		errors.Is(err, ErrNoSimulatedData)
}
