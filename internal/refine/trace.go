package refine

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-refinery/internal/domain"
)

// TraceEntry records one evaluated attempt: what was asked, what came back,
// and how the feedback module judged it.
type TraceEntry struct {
	Attempt   int               // 1-based attempt number, 0 for standalone scoring
	Hinted    bool              // whether the attempt carried a feedback hint
	Inputs    map[string]string // input field values
	Outputs   map[string]string // output field values, nil when the attempt errored
	Score     float64           // feedback score for the attempt
	Note      string            // feedback note, empty when none
	Err       string            // attempt error, empty on success
	StartedAt time.Time
	Duration  time.Duration
}

// Trace collects attempt records across a retry loop. Safe for concurrent
// use.
type Trace struct {
	mu      sync.Mutex
	entries []TraceEntry
}

// NewTrace creates an empty trace.
func NewTrace() *Trace { return &Trace{} }

// add appends one attempt record.
func (t *Trace) add(entry TraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
}

// Entries returns a copy of the recorded attempts in order.
func (t *Trace) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of recorded attempts.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// traceContextKey carries a *Trace through a retry loop.
type traceContextKey struct{}

// WithTrace returns a context whose retry attempts are recorded in trace.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// TraceFromContext returns the trace carried by ctx, if any.
func TraceFromContext(ctx context.Context) (*Trace, bool) {
	trace, ok := ctx.Value(traceContextKey{}).(*Trace)
	return trace, ok
}

// recordAttempt writes an entry into the context trace when one is present.
func recordAttempt(ctx context.Context, entry TraceEntry, out domain.Output, fb domain.Feedback, attemptErr error) {
	trace, ok := TraceFromContext(ctx)
	if !ok {
		return
	}
	if attemptErr != nil {
		entry.Err = attemptErr.Error()
	} else {
		entry.Outputs = out.Values()
		entry.Score = fb.Score
		entry.Note = fb.Note
	}
	trace.add(entry)
}
