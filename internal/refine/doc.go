// Package refine implements retry-with-feedback orchestration for single
// shot LLM predictions.
//
// A Predict renders a domain.Signature into a prompt, makes one engine call,
// and parses the response into typed output fields. A FeedbackModule scores
// each output and can attach a corrective note. The Retrier composes the
// two: it re-runs the predictor until an output reaches the score threshold
// or the attempt budget runs out, threading each attempt's feedback note
// into the next attempt as a hint.
//
// Hint injection is scoped through the context. The retrier wraps the base
// prompt adapter for exactly one attempt via WithAdapter; nothing observable
// by the caller (the predictor, its signature, its adapter) is mutated, so
// concurrent retry loops over a shared predictor never see each other's
// hints.
package refine
