package refine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-refinery/internal/domain"
	"github.com/ahrav/go-refinery/internal/llm/transport"
	"github.com/ahrav/go-refinery/internal/refine"
)

// stubClient returns canned marker-formatted responses in order and records
// every prompt it receives.
type stubClient struct {
	mu        sync.Mutex
	responses []string
	err       error

	calls   int
	prompts []capturedPrompt
}

type capturedPrompt struct {
	system string
	user   string
}

func (s *stubClient) Complete(_ context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.prompts = append(s.prompts, capturedPrompt{system: req.SystemPrompt, user: req.Prompt})

	if s.err != nil {
		return nil, s.err
	}

	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &transport.Response{Content: s.responses[idx], FinishReason: transport.FinishStop}, nil
}

func (s *stubClient) Close() error { return nil }

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubClient) prompt(i int) capturedPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[i]
}

// answer wraps a value in the marker format the chat adapter parses.
func answer(v string) string {
	return fmt.Sprintf("[[ ## answer ## ]]\n%s\n[[ ## completed ## ]]", v)
}

// scoreByLength is a feedback module that rewards short answers: the score
// is 1/(1+gaps) where gaps is the number of spaces in the answer, and the
// note asks for a shorter answer when the score is below 1.
func scoreByLength() refine.FeedbackFunc {
	return func(_ context.Context, _ domain.Input, out domain.Output) (domain.Feedback, error) {
		v, _ := out.Get("answer")
		gaps := strings.Count(v, " ")
		score := 1.0 / float64(1+gaps)
		note := ""
		if score < 1.0 {
			note = "the answer is too long"
		}
		return domain.NewFeedback(score, note), nil
	}
}

// constantScore is a feedback module that always returns the given score and
// note.
func constantScore(score float64, note string) refine.FeedbackFunc {
	return func(context.Context, domain.Input, domain.Output) (domain.Feedback, error) {
		return domain.NewFeedback(score, note), nil
	}
}

func qaInput(t *testing.T, sig domain.Signature, question string) domain.Input {
	t.Helper()
	in, err := domain.NewInput(sig, map[string]string{"question": question})
	require.NoError(t, err)
	return in
}

// TestRetrier_SucceedsFirstAttempt verifies that an output meeting the
// threshold on the first attempt makes exactly one engine call.
func TestRetrier_SucceedsFirstAttempt(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{answer("Shakespeare")}}
	pred := refine.NewPredict(sig, client)

	r, err := refine.NewRetrier(pred, scoreByLength(), 3, 1.0)
	require.NoError(t, err)

	out, err := r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.NoError(t, err)

	v, _ := out.Get("answer")
	assert.Equal(t, "Shakespeare", v)
	assert.Equal(t, 1, client.callCount())
}

// TestRetrier_ExhaustsAttempts verifies that a persistently failing output
// makes exactly maxAttempts calls and returns the exhaustion error with the
// final attempt's feedback.
func TestRetrier_ExhaustsAttempts(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{answer("a very long answer indeed")}}
	pred := refine.NewPredict(sig, client)

	r, err := refine.NewRetrier(pred, scoreByLength(), 3, 1.0)
	require.NoError(t, err)

	_, err = r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrRetryExhausted)
	assert.Equal(t, 3, client.callCount())

	var ree *domain.RetryExhaustedError
	require.True(t, errors.As(err, &ree))
	assert.Equal(t, 3, ree.Attempts)
	assert.Equal(t, 1.0, ree.Threshold)
	assert.Equal(t, "the answer is too long", ree.LastNote)
	assert.InDelta(t, 0.2, ree.LastScore, 1e-9)
}

// TestRetrier_HintThreading verifies the feedback note appears in the second
// attempt's prompt and not the first, rendered through the extended
// signature's hint field.
func TestRetrier_HintThreading(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{
		answer("William Shakespeare of Stratford"),
		answer("Shakespeare"),
	}}
	pred := refine.NewPredict(sig, client)

	r, err := refine.NewRetrier(pred, scoreByLength(), 3, 1.0)
	require.NoError(t, err)

	out, err := r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.NoError(t, err)
	require.Equal(t, 2, client.callCount())

	v, _ := out.Get("answer")
	assert.Equal(t, "Shakespeare", v)

	first := client.prompt(0)
	assert.NotContains(t, first.user, "[[ ## hint ## ]]")
	assert.NotContains(t, first.user, "the answer is too long")
	assert.NotContains(t, first.system, "hint")

	second := client.prompt(1)
	assert.Contains(t, second.user, "[[ ## hint ## ]]")
	assert.Contains(t, second.user, "the answer is too long")
	assert.Contains(t, second.system, "A hint from an earlier attempt at this task")
}

// TestRetrier_EmptyNoteSkipsHint verifies that a low score with no note
// retries without injecting a hint field.
func TestRetrier_EmptyNoteSkipsHint(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{answer("anything")}}
	pred := refine.NewPredict(sig, client)

	r, err := refine.NewRetrier(pred, constantScore(0.0, ""), 2, 1.0)
	require.NoError(t, err)

	_, err = r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.ErrorIs(t, err, domain.ErrRetryExhausted)
	require.Equal(t, 2, client.callCount())

	assert.NotContains(t, client.prompt(1).user, "[[ ## hint ## ]]")
}

// TestRetrier_ThresholdBoundary verifies a score exactly equal to the
// threshold passes.
func TestRetrier_ThresholdBoundary(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{answer("two words")}}
	pred := refine.NewPredict(sig, client)

	// "two words" has one gap, so the length score is exactly 0.5.
	r, err := refine.NewRetrier(pred, scoreByLength(), 3, 0.5)
	require.NoError(t, err)

	_, err = r.Call(context.Background(), qaInput(t, sig, "Say two words"))
	require.NoError(t, err)
	assert.Equal(t, 1, client.callCount())
}

// TestRetrier_PredictorErrorAborts verifies engine failures are not retried
// by the feedback loop.
func TestRetrier_PredictorErrorAborts(t *testing.T) {
	sig := qaSignature(t)
	engineErr := errors.New("provider unavailable")
	client := &stubClient{err: engineErr}
	pred := refine.NewPredict(sig, client)

	r, err := refine.NewRetrier(pred, scoreByLength(), 3, 1.0)
	require.NoError(t, err)

	_, err = r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.Error(t, err)
	assert.ErrorIs(t, err, engineErr)
	assert.Equal(t, 1, client.callCount())
}

// TestRetrier_ValidationErrorAborts verifies a predictor-level validation
// failure propagates out of the loop instead of consuming attempts.
func TestRetrier_ValidationErrorAborts(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{answer("far too many words here")}}

	validation := refine.NewValidation(scoreByLength(), 0.9)
	pred := refine.NewPredict(sig, client, refine.WithValidation(validation))

	r, err := refine.NewRetrier(pred, scoreByLength(), 3, 1.0)
	require.NoError(t, err)

	_, err = r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	assert.NotErrorIs(t, err, domain.ErrRetryExhausted)
	assert.Equal(t, 1, client.callCount())
}

// TestRetrier_FeedbackErrorAborts verifies feedback module failures
// propagate immediately.
func TestRetrier_FeedbackErrorAborts(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{answer("Shakespeare")}}
	pred := refine.NewPredict(sig, client)

	scoreErr := errors.New("scoring backend down")
	fm := refine.FeedbackFunc(func(context.Context, domain.Input, domain.Output) (domain.Feedback, error) {
		return domain.Feedback{}, scoreErr
	})

	r, err := refine.NewRetrier(pred, fm, 3, 1.0)
	require.NoError(t, err)

	_, err = r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.Error(t, err)
	assert.ErrorIs(t, err, scoreErr)
	assert.Equal(t, 1, client.callCount())
}

// TestRetrier_ScopeIsolation verifies that retrying never mutates the
// shared predictor: a concurrent caller using the same predictor sees no
// hint from another loop's feedback.
func TestRetrier_ScopeIsolation(t *testing.T) {
	sig := qaSignature(t)

	failing := &stubClient{responses: []string{answer("long answer with gaps")}}
	pred := refine.NewPredict(sig, failing)

	r, err := refine.NewRetrier(pred, scoreByLength(), 2, 1.0)
	require.NoError(t, err)

	_, err = r.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.ErrorIs(t, err, domain.ErrRetryExhausted)

	// A direct call through the same predictor after the loop sees the
	// original signature, not the hint-extended one.
	out, err := pred.Call(context.Background(), qaInput(t, sig, "Who wrote Hamlet?"))
	require.NoError(t, err)
	_, hasHint := out.Get("hint")
	assert.False(t, hasHint)

	last := failing.prompt(failing.callCount() - 1)
	assert.NotContains(t, last.user, "[[ ## hint ## ]]")
	assert.False(t, pred.Signature().HasInput("hint"))
}

// TestRetrier_InvalidMaxAttempts verifies construction rejects a
// non-positive attempt budget.
func TestRetrier_InvalidMaxAttempts(t *testing.T) {
	sig := qaSignature(t)
	pred := refine.NewPredict(sig, &stubClient{responses: []string{answer("x")}})

	_, err := refine.NewRetrier(pred, scoreByLength(), 0, 1.0)
	assert.Error(t, err)
}

// TestRetrier_Trace verifies attempt records accumulate in a context trace:
// attempt numbers, hint flags, scores, and notes.
func TestRetrier_Trace(t *testing.T) {
	sig := qaSignature(t)
	client := &stubClient{responses: []string{
		answer("William Shakespeare of Stratford"),
		answer("Shakespeare"),
	}}
	pred := refine.NewPredict(sig, client)

	r, err := refine.NewRetrier(pred, scoreByLength(), 3, 1.0)
	require.NoError(t, err)

	trace := refine.NewTrace()
	ctx := refine.WithTrace(context.Background(), trace)

	_, err = r.Call(ctx, qaInput(t, sig, "Who wrote Hamlet?"))
	require.NoError(t, err)

	entries := trace.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Attempt)
	assert.False(t, entries[0].Hinted)
	assert.InDelta(t, 0.25, entries[0].Score, 1e-9)
	assert.Equal(t, "the answer is too long", entries[0].Note)

	assert.Equal(t, 2, entries[1].Attempt)
	assert.True(t, entries[1].Hinted)
	assert.Equal(t, 1.0, entries[1].Score)
	assert.Empty(t, entries[1].Note)
	assert.Equal(t, "Shakespeare", entries[1].Outputs["answer"])
}
