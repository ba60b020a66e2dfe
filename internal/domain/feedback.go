package domain

// Feedback is a scored judgment of one Output for a given Input. Score lives
// in the evaluator's domain (typically [0,1]) and is deliberately not
// clamped; threshold comparisons use the raw value. Note optionally carries
// guidance that the next retry attempt injects into its prompt as a hint.
type Feedback struct {
	Score float64 `json:"score"`
	Note  string  `json:"note,omitempty"`
}

// NewFeedback constructs a feedback record.
func NewFeedback(score float64, note string) Feedback {
	return Feedback{Score: score, Note: note}
}

// HasNote reports whether the feedback carries guidance for a retry. An
// empty note means "no hint": the next attempt runs with an unmodified
// prompt rather than an empty hint field.
func (f Feedback) HasNote() bool { return f.Note != "" }
