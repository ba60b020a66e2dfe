package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-refinery/internal/domain"
)

// TestNewSignature verifies construction validation: at least one output
// field, unique field names, and non-empty names.
func TestNewSignature(t *testing.T) {
	question := domain.FieldSpec{Name: "question", Desc: "the question to answer"}
	answer := domain.FieldSpec{Name: "answer", Desc: "a concise answer"}

	tests := []struct {
		name    string
		inputs  []domain.FieldSpec
		outputs []domain.FieldSpec
		wantErr error
	}{
		{
			name:    "valid QA signature",
			inputs:  []domain.FieldSpec{question},
			outputs: []domain.FieldSpec{answer},
		},
		{
			name:    "no inputs is allowed",
			inputs:  nil,
			outputs: []domain.FieldSpec{answer},
		},
		{
			name:    "no outputs",
			inputs:  []domain.FieldSpec{question},
			outputs: nil,
			wantErr: domain.ErrNoOutputFields,
		},
		{
			name:    "duplicate across inputs and outputs",
			inputs:  []domain.FieldSpec{{Name: "answer"}},
			outputs: []domain.FieldSpec{answer},
			wantErr: domain.ErrDuplicateField,
		},
		{
			name:    "duplicate within outputs",
			inputs:  []domain.FieldSpec{question},
			outputs: []domain.FieldSpec{answer, {Name: "answer", Desc: "again"}},
			wantErr: domain.ErrDuplicateField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := domain.NewSignature(tt.name, "answer the question", tt.inputs, tt.outputs)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, sig.Name)
		})
	}
}

// TestSignature_WithInput verifies that extending a signature produces a new
// value and never mutates the original.
func TestSignature_WithInput(t *testing.T) {
	sig, err := domain.NewSignature("qa", "answer the question",
		[]domain.FieldSpec{{Name: "question"}},
		[]domain.FieldSpec{{Name: "answer"}},
	)
	require.NoError(t, err)

	extended := sig.WithInput(domain.FieldSpec{Name: "hint", Desc: "a hint"})

	assert.True(t, extended.HasInput("hint"))
	assert.True(t, extended.HasInput("question"))
	assert.False(t, sig.HasInput("hint"), "original signature must be unchanged")
	assert.Len(t, sig.Inputs, 1)
	assert.Len(t, extended.Inputs, 2)

	// The derived copy must not share backing storage with the original.
	extended.Inputs[0].Name = "mutated"
	assert.Equal(t, "question", sig.Inputs[0].Name)
}

// TestSignature_FieldLookups verifies the membership and name accessors.
func TestSignature_FieldLookups(t *testing.T) {
	sig, err := domain.NewSignature("qa", "",
		[]domain.FieldSpec{{Name: "question"}, {Name: "context"}},
		[]domain.FieldSpec{{Name: "answer"}},
	)
	require.NoError(t, err)

	assert.True(t, sig.HasInput("context"))
	assert.False(t, sig.HasInput("answer"))
	assert.True(t, sig.HasOutput("answer"))
	assert.False(t, sig.HasOutput("question"))
	assert.Equal(t, []string{"question", "context"}, sig.InputNames())
	assert.Equal(t, []string{"answer"}, sig.OutputNames())
}

// TestNewInput_RejectsUndeclaredFields verifies that inputs and outputs only
// accept values for fields their signature declares.
func TestNewInput_RejectsUndeclaredFields(t *testing.T) {
	sig, err := domain.NewSignature("qa", "",
		[]domain.FieldSpec{{Name: "question"}},
		[]domain.FieldSpec{{Name: "answer"}},
	)
	require.NoError(t, err)

	_, err = domain.NewInput(sig, map[string]string{"question": "why?", "bogus": "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownField))

	_, err = domain.NewOutput(sig, map[string]string{"question": "why?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownField))

	in, err := domain.NewInput(sig, map[string]string{"question": "why?"})
	require.NoError(t, err)
	v, ok := in.Get("question")
	assert.True(t, ok)
	assert.Equal(t, "why?", v)
}

// TestInput_ValuesIsACopy verifies that accessor maps do not alias internal
// state.
func TestInput_ValuesIsACopy(t *testing.T) {
	sig, err := domain.NewSignature("qa", "",
		[]domain.FieldSpec{{Name: "question"}},
		[]domain.FieldSpec{{Name: "answer"}},
	)
	require.NoError(t, err)

	in, err := domain.NewInput(sig, map[string]string{"question": "why?"})
	require.NoError(t, err)

	values := in.Values()
	values["question"] = "mutated"

	v, _ := in.Get("question")
	assert.Equal(t, "why?", v)
}
