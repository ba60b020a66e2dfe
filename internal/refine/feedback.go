package refine

import (
	"context"
	"time"

	"github.com/ahrav/go-refinery/internal/domain"
)

// FeedbackModule scores a prediction and optionally explains what to improve.
// The note, when non-empty, is fed back into the next retry attempt as a
// hint; an empty note means the score stands alone.
type FeedbackModule interface {
	Feedback(ctx context.Context, in domain.Input, out domain.Output) (domain.Feedback, error)
}

// FeedbackFunc adapts a plain function to FeedbackModule.
type FeedbackFunc func(ctx context.Context, in domain.Input, out domain.Output) (domain.Feedback, error)

// Feedback implements FeedbackModule.
func (f FeedbackFunc) Feedback(ctx context.Context, in domain.Input, out domain.Output) (domain.Feedback, error) {
	return f(ctx, in, out)
}

// Score evaluates out against in with fm and records the judgment in the
// context trace when one is carried. Use it for standalone scoring outside a
// retry loop; the Retrier records its own attempts.
func Score(ctx context.Context, fm FeedbackModule, in domain.Input, out domain.Output) (domain.Feedback, error) {
	start := time.Now()
	fb, err := fm.Feedback(ctx, in, out)
	if err != nil {
		return domain.Feedback{}, err
	}

	if trace, ok := TraceFromContext(ctx); ok {
		trace.add(TraceEntry{
			Inputs:    in.Values(),
			Outputs:   out.Values(),
			Score:     fb.Score,
			Note:      fb.Note,
			StartedAt: start,
			Duration:  time.Since(start),
		})
	}
	return fb, nil
}
