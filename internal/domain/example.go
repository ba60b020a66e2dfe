package domain

import (
	"fmt"
	"maps"
)

// Input binds input field values to a signature for one prediction request.
// Construction rejects values for fields the signature does not declare.
// Inputs are immutable: accessors return copies, and the retry loop passes
// the same Input by value through every attempt.
type Input struct {
	sig    Signature
	values map[string]string
}

// NewInput creates an Input for sig from the given field values. Every key
// must name a declared input field; missing fields are permitted (the prompt
// adapter simply omits them).
func NewInput(sig Signature, values map[string]string) (Input, error) {
	for name := range values {
		if !sig.HasInput(name) {
			return Input{}, fmt.Errorf("%w: input %q for signature %q", ErrUnknownField, name, sig.Name)
		}
	}
	return Input{sig: sig, values: cloneStringMap(values)}, nil
}

// Signature returns the signature this input is bound to.
func (in Input) Signature() Signature { return in.sig }

// Get returns the value for a field and whether it was set.
func (in Input) Get(name string) (string, bool) {
	v, ok := in.values[name]
	return v, ok
}

// Values returns a copy of the bound field values.
func (in Input) Values() map[string]string {
	return cloneStringMap(in.values)
}

// Output binds output field values to a signature: the result of exactly one
// prediction attempt. An Output is never mutated; a retried attempt produces
// a new Output that supersedes the previous one.
type Output struct {
	sig    Signature
	values map[string]string
}

// NewOutput creates an Output for sig from the given field values. Every key
// must name a declared output field.
func NewOutput(sig Signature, values map[string]string) (Output, error) {
	for name := range values {
		if !sig.HasOutput(name) {
			return Output{}, fmt.Errorf("%w: output %q for signature %q", ErrUnknownField, name, sig.Name)
		}
	}
	return Output{sig: sig, values: cloneStringMap(values)}, nil
}

// Signature returns the signature this output is bound to.
func (out Output) Signature() Signature { return out.sig }

// Get returns the value for a field and whether it was set.
func (out Output) Get(name string) (string, bool) {
	v, ok := out.values[name]
	return v, ok
}

// Values returns a copy of the bound field values.
func (out Output) Values() map[string]string {
	return cloneStringMap(out.values)
}

// Demo is a worked example rendered into the prompt as a few-shot
// demonstration: input values paired with the output values the model should
// have produced for them.
type Demo struct {
	Inputs  map[string]string `json:"inputs"`
	Outputs map[string]string `json:"outputs"`
}

// cloneStringMap creates a copy of a string map to prevent aliasing.
// Returns an empty map for nil input so accessors never hand out nil.
func cloneStringMap(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	maps.Copy(result, m)
	return result
}
