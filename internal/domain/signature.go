// Package domain defines the core value objects for feedback-driven
// prediction: signatures (typed input/output contracts), the containers that
// bind field values to them, and the feedback records produced when an output
// is scored. All types are immutable after construction; "modification"
// always produces a derived value.
package domain

import (
	"errors"
	"fmt"
)

// Signature construction errors.
var (
	// ErrNoOutputFields indicates a signature was defined without output fields.
	ErrNoOutputFields = errors.New("signature requires at least one output field")

	// ErrDuplicateField indicates a field name appears more than once in a signature.
	ErrDuplicateField = errors.New("duplicate field name in signature")

	// ErrUnknownField indicates a value was supplied for a field the signature
	// does not declare.
	ErrUnknownField = errors.New("field not declared by signature")
)

// FieldSpec describes one named field of a signature. The description is
// surfaced to the model by the prompt adapter, so it should read as an
// instruction ("a short factual answer"), not as documentation.
type FieldSpec struct {
	Name string `json:"name" validate:"required,min=1"`
	Desc string `json:"desc,omitempty"`
}

// Signature is the typed contract for one prediction task: an ordered list
// of named input fields and named output fields, plus optional free-form
// instructions. A Signature is an immutable value; WithInput returns a
// derived signature rather than mutating the receiver.
type Signature struct {
	// Name identifies the task for logging and trace correlation.
	Name string `json:"name" validate:"required,min=1"`

	// Instructions is an optional task description included in the system prompt.
	Instructions string `json:"instructions,omitempty"`

	// Inputs and Outputs are ordered field declarations. Order is significant:
	// the prompt adapter renders fields in declaration order.
	Inputs  []FieldSpec `json:"inputs" validate:"dive"`
	Outputs []FieldSpec `json:"outputs" validate:"required,min=1,dive"`
}

// NewSignature constructs and validates a signature. Field names must be
// unique across inputs and outputs combined, and at least one output field
// is required.
func NewSignature(name, instructions string, inputs, outputs []FieldSpec) (Signature, error) {
	sig := Signature{
		Name:         name,
		Instructions: instructions,
		Inputs:       cloneFields(inputs),
		Outputs:      cloneFields(outputs),
	}
	if err := sig.Validate(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// Validate checks structural constraints: struct tags, at least one output,
// and field-name uniqueness.
func (s Signature) Validate() error {
	if len(s.Outputs) == 0 {
		return fmt.Errorf("%w: %q", ErrNoOutputFields, s.Name)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid signature %q: %w", s.Name, err)
	}
	seen := make(map[string]struct{}, len(s.Inputs)+len(s.Outputs))
	for _, f := range append(append([]FieldSpec{}, s.Inputs...), s.Outputs...) {
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// WithInput returns a derived signature with one additional input field
// appended. The receiver is never modified; callers hold the only reference
// to the returned value's field slices.
func (s Signature) WithInput(field FieldSpec) Signature {
	derived := Signature{
		Name:         s.Name,
		Instructions: s.Instructions,
		Inputs:       make([]FieldSpec, 0, len(s.Inputs)+1),
		Outputs:      cloneFields(s.Outputs),
	}
	derived.Inputs = append(derived.Inputs, s.Inputs...)
	derived.Inputs = append(derived.Inputs, field)
	return derived
}

// HasInput reports whether the signature declares an input field with the
// given name.
func (s Signature) HasInput(name string) bool {
	for _, f := range s.Inputs {
		if f.Name == name {
			return true
		}
	}
	return false
}

// HasOutput reports whether the signature declares an output field with the
// given name.
func (s Signature) HasOutput(name string) bool {
	for _, f := range s.Outputs {
		if f.Name == name {
			return true
		}
	}
	return false
}

// InputNames returns the declared input field names in declaration order.
func (s Signature) InputNames() []string { return fieldNames(s.Inputs) }

// OutputNames returns the declared output field names in declaration order.
func (s Signature) OutputNames() []string { return fieldNames(s.Outputs) }

func fieldNames(fields []FieldSpec) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func cloneFields(fields []FieldSpec) []FieldSpec {
	if fields == nil {
		return nil
	}
	out := make([]FieldSpec, len(fields))
	copy(out, fields)
	return out
}
