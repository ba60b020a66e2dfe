package refine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-refinery/internal/domain"
	"github.com/ahrav/go-refinery/internal/llm"
	"github.com/ahrav/go-refinery/internal/llm/transport"
)

// Predictor produces one output for one input. Call performs a single
// prediction; it never retries on its own.
type Predictor interface {
	// Call runs one prediction for in.
	Call(ctx context.Context, in domain.Input) (domain.Output, error)

	// Signature returns the task the predictor serves.
	Signature() domain.Signature
}

// PredictOption configures a Predict.
type PredictOption func(*Predict)

// WithDemos attaches few-shot demonstrations rendered before the live input.
func WithDemos(demos []domain.Demo) PredictOption {
	return func(p *Predict) { p.demos = demos }
}

// WithProvider pins predictions to one provider and model instead of the
// engine defaults.
func WithProvider(provider, model string) PredictOption {
	return func(p *Predict) {
		p.provider = provider
		p.model = model
	}
}

// WithValidation gates every prediction: outputs scoring below the
// validation's threshold are rejected with a validation error.
func WithValidation(v *Validation) PredictOption {
	return func(p *Predict) { p.validation = v }
}

// WithPromptAdapter sets the default prompt adapter. A context override from
// WithAdapter still takes precedence for individual calls.
func WithPromptAdapter(adapter PromptAdapter) PredictOption {
	return func(p *Predict) { p.adapter = adapter }
}

// Predict is the standard Predictor: it renders the signature into a prompt,
// makes exactly one engine call, and parses the response into the declared
// output fields.
type Predict struct {
	sig     domain.Signature
	client  llm.Client
	adapter PromptAdapter

	demos    []domain.Demo
	provider string
	model    string

	validation *Validation

	logger *slog.Logger
}

// NewPredict creates a predictor for sig backed by client.
func NewPredict(sig domain.Signature, client llm.Client, opts ...PredictOption) *Predict {
	p := &Predict{
		sig:     sig,
		client:  client,
		adapter: NewChatAdapter(),
		logger:  slog.Default().With("component", "predict", "signature", sig.Name),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Signature implements Predictor.
func (p *Predict) Signature() domain.Signature { return p.sig }

// PromptAdapter returns the predictor's configured prompt adapter.
func (p *Predict) PromptAdapter() PromptAdapter { return p.adapter }

// Call implements Predictor. The prompt adapter may be overridden through
// the context for this call only; the predictor's configured adapter is
// untouched.
func (p *Predict) Call(ctx context.Context, in domain.Input) (domain.Output, error) {
	adapter := p.adapter
	if override, ok := adapterFromContext(ctx); ok {
		adapter = override
	}

	system, user := adapter.Format(p.sig, p.demos, in.Values())

	resp, err := p.client.Complete(ctx, &transport.Request{
		Provider:     p.provider,
		Model:        p.model,
		SystemPrompt: system,
		Prompt:       user,
	})
	if err != nil {
		return domain.Output{}, fmt.Errorf("prediction for %q: %w", p.sig.Name, err)
	}

	values, err := adapter.Parse(p.sig, resp.Content)
	if err != nil {
		return domain.Output{}, fmt.Errorf("parsing response for %q: %w", p.sig.Name, err)
	}

	out, err := domain.NewOutput(p.sig, values)
	if err != nil {
		return domain.Output{}, err
	}

	if p.validation != nil {
		score, ok, err := p.validation.Check(ctx, in, out)
		if err != nil {
			return domain.Output{}, fmt.Errorf("validating output for %q: %w", p.sig.Name, err)
		}
		if !ok {
			p.logger.DebugContext(ctx, "output rejected by validation",
				"score", score, "threshold", p.validation.Threshold())
			return domain.Output{}, &domain.ValidationError{
				Signature: p.sig.Name,
				Score:     score,
				Threshold: p.validation.Threshold(),
			}
		}
	}

	return out, nil
}
