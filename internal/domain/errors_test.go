package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-refinery/internal/domain"
)

// TestValidationError_Is verifies errors.Is and errors.As behavior for the
// validation failure type, including through wrapping.
func TestValidationError_Is(t *testing.T) {
	err := &domain.ValidationError{Signature: "qa", Score: 0.4, Threshold: 0.8}

	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	assert.NotErrorIs(t, err, domain.ErrRetryExhausted)

	wrapped := fmt.Errorf("predictor: %w", err)
	assert.ErrorIs(t, wrapped, domain.ErrValidationFailed)

	var ve *domain.ValidationError
	assert.True(t, errors.As(wrapped, &ve))
	assert.Equal(t, 0.4, ve.Score)
	assert.Contains(t, err.Error(), "qa")
}

// TestRetryExhaustedError_Is verifies sentinel matching and the terminal
// failure details carried by the exhaustion error.
func TestRetryExhaustedError_Is(t *testing.T) {
	err := &domain.RetryExhaustedError{
		Signature: "qa",
		Attempts:  3,
		Threshold: 1.0,
		LastScore: 0.25,
		LastNote:  "the answer is too long",
	}

	assert.ErrorIs(t, err, domain.ErrRetryExhausted)
	assert.NotErrorIs(t, err, domain.ErrValidationFailed)

	var ree *domain.RetryExhaustedError
	assert.True(t, errors.As(fmt.Errorf("refine: %w", err), &ree))
	assert.Equal(t, 3, ree.Attempts)
	assert.Equal(t, "the answer is too long", ree.LastNote)
	assert.Contains(t, err.Error(), "3 attempts")
}
