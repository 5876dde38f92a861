// Package model defines the narrow contract the generation loop
// consumes. Tokenization, context evaluation and probability sampling
// live behind this interface; the loop never touches model internals.
package model

// Model is an autoregressive token-level predictor.
type Model interface {
	// Tokenize converts text into token ids, optionally prepending the
	// beginning-of-sequence token. Returns a TokenizeError on malformed
	// input.
	Tokenize(text string, addBOS bool) ([]int, error)

	// Evaluate folds ids into the model context starting at startPos.
	// Returns an EvalError when startPos+len(ids) would exceed the
	// context size. threads sizes the model's internal worker pool and
	// is opaque to the caller.
	Evaluate(ids []int, startPos, threads int) error

	// Sample draws the next token id conditioned on the evaluated
	// context, down-weighting ids in recent per the repeat penalty.
	// Deterministic iff p.Seed >= 0.
	Sample(recent []int, p SamplingParams) (int, error)

	// Detokenize returns the text for a single token id.
	Detokenize(id int) string

	// EndOfText returns the model's end-of-text token id.
	EndOfText() int
}
