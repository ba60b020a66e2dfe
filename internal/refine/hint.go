package refine

import (
	"github.com/ahrav/go-refinery/internal/domain"
)

// HintFieldName is the extra input field injected when a retry attempt
// carries feedback from an earlier attempt.
const HintFieldName = "hint"

// hintFieldDesc describes the injected field to the model.
const hintFieldDesc = "A hint from an earlier attempt at this task"

// hintAdapter decorates a base adapter so one prediction sees an extended
// signature carrying a feedback note. The base adapter and the caller's
// signature are left untouched; the extension exists only for calls routed
// through this wrapper.
type hintAdapter struct {
	base PromptAdapter
	note string
}

// newHintAdapter wraps base so its next Format call includes note as an
// extra hint input.
func newHintAdapter(base PromptAdapter, note string) *hintAdapter {
	return &hintAdapter{base: base, note: note}
}

// Format extends the signature with the hint field, injects the note as its
// value, and delegates to the base adapter.
func (h *hintAdapter) Format(sig domain.Signature, demos []domain.Demo, inputs map[string]string) (string, string) {
	extended := sig.WithInput(domain.FieldSpec{Name: HintFieldName, Desc: hintFieldDesc})

	augmented := make(map[string]string, len(inputs)+1)
	for k, v := range inputs {
		augmented[k] = v
	}
	augmented[HintFieldName] = h.note

	return h.base.Format(extended, demos, augmented)
}

// Parse delegates to the base adapter. Outputs are unaffected by the hint.
func (h *hintAdapter) Parse(sig domain.Signature, content string) (map[string]string, error) {
	return h.base.Parse(sig, content)
}
