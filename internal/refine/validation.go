package refine

import (
	"context"

	"github.com/ahrav/go-refinery/internal/domain"
)

// Validation gates predictions on a feedback score. An output passes when
// its score is at least the threshold; a score exactly equal to the
// threshold passes.
type Validation struct {
	feedback  FeedbackModule
	threshold float64
}

// NewValidation creates a gate that scores outputs with fm and accepts
// scores of threshold or above.
func NewValidation(fm FeedbackModule, threshold float64) *Validation {
	return &Validation{feedback: fm, threshold: threshold}
}

// Threshold returns the minimum passing score.
func (v *Validation) Threshold() float64 { return v.threshold }

// Check scores out against in and reports whether it passes.
func (v *Validation) Check(ctx context.Context, in domain.Input, out domain.Output) (float64, bool, error) {
	fb, err := v.feedback.Feedback(ctx, in, out)
	if err != nil {
		return 0, false, err
	}
	return fb.Score, fb.Score >= v.threshold, nil
}
