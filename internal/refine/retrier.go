package refine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahrav/go-refinery/internal/domain"
)

// adapterProvider is implemented by predictors that expose their configured
// prompt adapter, letting the retrier layer hint augmentation on top of it.
type adapterProvider interface {
	PromptAdapter() PromptAdapter
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithRetrierAdapter sets the base adapter hinted attempts build on. By
// default the retrier uses the predictor's own adapter when it exposes one.
func WithRetrierAdapter(adapter PromptAdapter) RetrierOption {
	return func(r *Retrier) { r.adapter = adapter }
}

// Retrier runs a predictor up to a fixed number of attempts, scoring each
// output with a feedback module. The first output that reaches the threshold
// wins. When an attempt falls short and its feedback carries a note, the
// next attempt sees that note as a hint; the hint lives only for that one
// attempt and the predictor's own configuration is never modified.
type Retrier struct {
	predictor   Predictor
	feedback    FeedbackModule
	maxAttempts int
	threshold   float64

	adapter PromptAdapter
	logger  *slog.Logger
}

// NewRetrier creates a retrier around predictor. maxAttempts must be at
// least 1.
func NewRetrier(predictor Predictor, fm FeedbackModule, maxAttempts int, threshold float64, opts ...RetrierOption) (*Retrier, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("retrier max attempts must be at least 1, got %d", maxAttempts)
	}

	r := &Retrier{
		predictor:   predictor,
		feedback:    fm,
		maxAttempts: maxAttempts,
		threshold:   threshold,
		logger: slog.Default().With(
			"component", "retrier",
			"signature", predictor.Signature().Name,
		),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.adapter == nil {
		if ap, ok := predictor.(adapterProvider); ok {
			r.adapter = ap.PromptAdapter()
		} else {
			r.adapter = NewChatAdapter()
		}
	}
	return r, nil
}

// Call implements Predictor. Predictor and feedback errors abort the loop
// immediately; only scored attempts below the threshold are retried.
func (r *Retrier) Call(ctx context.Context, in domain.Input) (domain.Output, error) {
	var note string

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		attemptCtx := ctx
		hinted := note != ""
		if hinted {
			attemptCtx = WithAdapter(ctx, newHintAdapter(r.adapter, note))
		}

		entry := TraceEntry{
			Attempt:   attempt,
			Hinted:    hinted,
			Inputs:    in.Values(),
			StartedAt: time.Now(),
		}

		out, err := r.predictor.Call(attemptCtx, in)
		if err != nil {
			entry.Duration = time.Since(entry.StartedAt)
			recordAttempt(ctx, entry, domain.Output{}, domain.Feedback{}, err)
			return domain.Output{}, err
		}

		fb, err := r.feedback.Feedback(ctx, in, out)
		if err != nil {
			wrapped := fmt.Errorf("feedback for %q: %w", r.predictor.Signature().Name, err)
			entry.Duration = time.Since(entry.StartedAt)
			recordAttempt(ctx, entry, domain.Output{}, domain.Feedback{}, wrapped)
			return domain.Output{}, wrapped
		}

		entry.Duration = time.Since(entry.StartedAt)
		recordAttempt(ctx, entry, out, fb, nil)

		if fb.Score >= r.threshold {
			r.logger.DebugContext(ctx, "attempt met threshold",
				"attempt", attempt, "score", fb.Score, "threshold", r.threshold)
			return out, nil
		}

		r.logger.DebugContext(ctx, "attempt below threshold",
			"attempt", attempt, "score", fb.Score, "threshold", r.threshold,
			"has_note", fb.HasNote())
		note = fb.Note

		if attempt == r.maxAttempts {
			return domain.Output{}, &domain.RetryExhaustedError{
				Signature: r.predictor.Signature().Name,
				Attempts:  r.maxAttempts,
				Threshold: r.threshold,
				LastScore: fb.Score,
				LastNote:  fb.Note,
			}
		}
	}

	// Unreachable: the loop always returns from its final iteration.
	return domain.Output{}, &domain.RetryExhaustedError{
		Signature: r.predictor.Signature().Name,
		Attempts:  r.maxAttempts,
		Threshold: r.threshold,
	}
}

// Signature implements Predictor.
func (r *Retrier) Signature() domain.Signature { return r.predictor.Signature() }
