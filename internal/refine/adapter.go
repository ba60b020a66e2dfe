package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahrav/go-refinery/internal/domain"
)

// Prompt parsing errors.
var (
	// ErrMissingOutputField indicates the model response did not contain a
	// section for a declared output field.
	ErrMissingOutputField = errors.New("output field missing from model response")
)

// PromptAdapter is the request-construction mechanism: it renders a
// signature, demonstrations, and input values into the prompt sent to the
// model, and parses the model's response back into output field values.
//
// Adapters must be stateless with respect to individual calls so one
// instance can serve concurrent predictions.
type PromptAdapter interface {
	// Format renders the system and user prompts for one prediction.
	Format(sig domain.Signature, demos []domain.Demo, inputs map[string]string) (system, user string)

	// Parse extracts the declared output field values from response content.
	Parse(sig domain.Signature, content string) (map[string]string, error)
}

// fieldMarker renders the section marker for a field name.
func fieldMarker(name string) string {
	return fmt.Sprintf("[[ ## %s ## ]]", name)
}

// completedMarker terminates the response format.
const completedMarker = "[[ ## completed ## ]]"

// ChatAdapter is the default PromptAdapter. It structures prompts as marker
// delimited sections, one per field, and instructs the model to answer using
// the same sections so outputs parse deterministically.
type ChatAdapter struct{}

// NewChatAdapter creates the default chat prompt adapter.
func NewChatAdapter() *ChatAdapter { return &ChatAdapter{} }

// Format implements PromptAdapter.
func (a *ChatAdapter) Format(sig domain.Signature, demos []domain.Demo, inputs map[string]string) (string, string) {
	var system strings.Builder

	system.WriteString("Your input fields are:\n")
	writeFieldList(&system, sig.Inputs)
	system.WriteString("Your output fields are:\n")
	writeFieldList(&system, sig.Outputs)

	system.WriteString("Respond with each output field introduced by its marker, in order:\n")
	for _, f := range sig.Outputs {
		system.WriteString(fieldMarker(f.Name))
		system.WriteString("\n")
	}
	system.WriteString("and finish with:\n")
	system.WriteString(completedMarker)
	system.WriteString("\n")

	if sig.Instructions != "" {
		system.WriteString("\n")
		system.WriteString(sig.Instructions)
		system.WriteString("\n")
	}

	var user strings.Builder
	for _, demo := range demos {
		writeSections(&user, sig.Inputs, demo.Inputs)
		writeSections(&user, sig.Outputs, demo.Outputs)
		user.WriteString(completedMarker)
		user.WriteString("\n\n")
	}
	writeSections(&user, sig.Inputs, inputs)

	return system.String(), strings.TrimRight(user.String(), "\n")
}

// Parse implements PromptAdapter. Each declared output field must appear as
// a marker section; its value runs until the next marker or end of content.
func (a *ChatAdapter) Parse(sig domain.Signature, content string) (map[string]string, error) {
	values := make(map[string]string, len(sig.Outputs))

	for _, f := range sig.Outputs {
		marker := fieldMarker(f.Name)
		idx := strings.Index(content, marker)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q in signature %q", ErrMissingOutputField, f.Name, sig.Name)
		}

		section := content[idx+len(marker):]
		if end := strings.Index(section, "[[ ##"); end >= 0 {
			section = section[:end]
		}
		values[f.Name] = strings.TrimSpace(section)
	}

	return values, nil
}

// writeFieldList renders a numbered field list for the system prompt.
func writeFieldList(b *strings.Builder, fields []domain.FieldSpec) {
	for i, f := range fields {
		if f.Desc != "" {
			fmt.Fprintf(b, "%d. %s: %s\n", i+1, f.Name, f.Desc)
		} else {
			fmt.Fprintf(b, "%d. %s\n", i+1, f.Name)
		}
	}
}

// writeSections renders marker sections for fields that have values,
// preserving declaration order.
func writeSections(b *strings.Builder, fields []domain.FieldSpec, values map[string]string) {
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		b.WriteString(fieldMarker(f.Name))
		b.WriteString("\n")
		b.WriteString(v)
		b.WriteString("\n\n")
	}
}

// adapterContextKey carries a per-call PromptAdapter override.
type adapterContextKey struct{}

// WithAdapter returns a context carrying a prompt adapter override for
// predictions made with it. The override is scoped to the returned context:
// the parent context is never modified, so the previous request-construction
// mechanism is restored simply by not reusing the child context. This is how
// the retry loop injects hint augmentation for exactly one attempt.
func WithAdapter(ctx context.Context, adapter PromptAdapter) context.Context {
	return context.WithValue(ctx, adapterContextKey{}, adapter)
}

// adapterFromContext returns the adapter override carried by ctx, if any.
func adapterFromContext(ctx context.Context) (PromptAdapter, bool) {
	adapter, ok := ctx.Value(adapterContextKey{}).(PromptAdapter)
	return adapter, ok
}
