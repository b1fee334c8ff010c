// Package validation provides common validation utilities for the flowbench library.
package validation

import (
	"fmt"
	"time"

	fberrors "github.com/vnykmshr/flowbench/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return fberrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidatePositive64 is ValidatePositive for byte counts.
func ValidatePositive64(module, field string, value int64) error {
	if value <= 0 {
		return fberrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidatePositiveDuration validates that a duration is strictly positive.
func ValidatePositiveDuration(module, field string, value time.Duration) error {
	if value <= 0 {
		return fberrors.NewValidationError(module, field, value, "must be positive").
			WithHint("use a duration such as 100ms or 2s")
	}
	return nil
}

// ValidateNonNegativeDuration validates that a duration is not negative.
// Zero usually means "no bound".
func ValidateNonNegativeDuration(module, field string, value time.Duration) error {
	if value < 0 {
		return fberrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable the bound")
	}
	return nil
}

// ValidateAtMost validates that value does not exceed max.
func ValidateAtMost(module, field string, value, max int) error {
	if value > max {
		return fberrors.NewValidationError(module, field, value, fmt.Sprintf("must not exceed %d", max)).
			WithHint(fmt.Sprintf("use a value no larger than %d", max))
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return fberrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return fberrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}
