package model

import "fmt"

// SamplingParams is the immutable per-session configuration bundle.
// Construct once, validate, and do not mutate afterwards.
type SamplingParams struct {
	TopK          int
	TopP          float64
	Temperature   float64
	RepeatLastN   int
	RepeatPenalty float64
	Threads       int
	BatchSize     int
	ContextSize   int
	// Seed drives sampling. Negative means non-deterministic (the
	// backend picks its own entropy source).
	Seed int64
}

// DefaultSamplingParams returns the default generation settings.
func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		TopK:          40,
		TopP:          0.95,
		Temperature:   0.8,
		RepeatLastN:   64,
		RepeatPenalty: 1.30,
		Threads:       4,
		BatchSize:     8,
		ContextSize:   4096,
		Seed:          -1,
	}
}

func (p SamplingParams) Validate() error {
	if p.TopK <= 0 {
		return fmt.Errorf("top_k must be > 0, got %d", p.TopK)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p must be in [0,1], got %g", p.TopP)
	}
	if p.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0, got %g", p.Temperature)
	}
	if p.RepeatLastN < 0 {
		return fmt.Errorf("repeat_last_n must be >= 0, got %d", p.RepeatLastN)
	}
	if p.RepeatPenalty < 1 {
		return fmt.Errorf("repeat_penalty must be >= 1, got %g", p.RepeatPenalty)
	}
	if p.Threads <= 0 {
		return fmt.Errorf("threads must be > 0, got %d", p.Threads)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0, got %d", p.BatchSize)
	}
	if p.ContextSize <= 0 {
		return fmt.Errorf("ctx_size must be > 0, got %d", p.ContextSize)
	}
	return nil
}
