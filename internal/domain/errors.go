package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for failure classification with errors.Is.
var (
	// ErrValidationFailed indicates a predictor's output did not pass its
	// validation gate.
	ErrValidationFailed = errors.New("output failed validation")

	// ErrRetryExhausted indicates the retry loop used all its attempts
	// without producing an output that met the score threshold.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ValidationError reports that a predictor's output scored below its
// validation threshold. It propagates to the predictor's caller; validation
// failures are not retried by the predictor itself.
type ValidationError struct {
	Signature string  // task the output was produced for
	Score     float64 // score the feedback module assigned
	Threshold float64 // minimum score the validation requires
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q scored %.4f, validation threshold %.4f",
		ErrValidationFailed.Error(), e.Signature, e.Score, e.Threshold)
}

// Is makes the error match ErrValidationFailed under errors.Is.
func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// RetryExhaustedError reports that all retry attempts completed without any
// output reaching the score threshold. It is terminal: there is no degraded
// success, the caller receives the failure as-is.
type RetryExhaustedError struct {
	Signature string  // task being retried
	Attempts  int     // attempts performed (equals the configured maximum)
	Threshold float64 // score required to succeed
	LastScore float64 // score of the final attempt
	LastNote  string  // feedback note from the final attempt
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: %q failed after %d attempts, last score %.4f below threshold %.4f",
		ErrRetryExhausted.Error(), e.Signature, e.Attempts, e.LastScore, e.Threshold)
}

// Is makes the error match ErrRetryExhausted under errors.Is.
func (e *RetryExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }
