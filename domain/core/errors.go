package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrFeatureNotFound   = fmt.Errorf("%w: feature", ErrNotFound)
	ErrAttributeNotFound = fmt.Errorf("%w: attribute", ErrNotFound)
	ErrRunNotFound       = fmt.Errorf("%w: run", ErrNotFound)
	ErrSessionNotFound   = fmt.Errorf("%w: session", ErrNotFound)

	// Table contract errors
	ErrSchemaMismatch  = errors.New("sample identifiers cannot be reconciled between tables")
	ErrDegenerateInput = errors.New("degenerate input table")
	ErrInvalidCutoff   = errors.New("cutoff outside (0, 1]")
	ErrValidation      = errors.New("validation failed")

	// Test errors
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrUnequalGroupSize = errors.New("unequal group sizes for paired test")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrValidation, field, reason)
}

func NewSchemaMismatchError(ftSamples, mdSamples int) error {
	return fmt.Errorf("%w: %d feature-table samples vs %d metadata samples share no identifiers",
		ErrSchemaMismatch, ftSamples, mdSamples)
}

func NewInsufficientDataError(feature string, reason string) error {
	return fmt.Errorf("%w: feature %s: %s", ErrInsufficientData, feature, reason)
}

func NewUnequalGroupSizeError(groupA string, sizeA int, groupB string, sizeB int) error {
	return fmt.Errorf("%w: %s has %d samples, %s has %d", ErrUnequalGroupSize, groupA, sizeA, groupB, sizeB)
}

func NewDegenerateInputError(reason string) error {
	return fmt.Errorf("%w: %s", ErrDegenerateInput, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSchemaMismatch(err error) bool {
	return errors.Is(err, ErrSchemaMismatch)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsUnequalGroupSize(err error) bool {
	return errors.Is(err, ErrUnequalGroupSize)
}

func IsDegenerateInput(err error) bool {
	return errors.Is(err, ErrDegenerateInput)
}

// IsCleanupError reports whether err aborts the prepare pipeline rather than
// a single feature's test.
func IsCleanupError(err error) bool {
	return errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrDegenerateInput) ||
		errors.Is(err, ErrInvalidCutoff)
}
