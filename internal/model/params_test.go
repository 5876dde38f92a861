package model

import "testing"

func TestDefaultSamplingParamsValid(t *testing.T) {
	if err := DefaultSamplingParams().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SamplingParams)
	}{
		{"zero-top-k", func(p *SamplingParams) { p.TopK = 0 }},
		{"top-p-above-one", func(p *SamplingParams) { p.TopP = 1.5 }},
		{"negative-top-p", func(p *SamplingParams) { p.TopP = -0.1 }},
		{"negative-temperature", func(p *SamplingParams) { p.Temperature = -1 }},
		{"negative-repeat-last-n", func(p *SamplingParams) { p.RepeatLastN = -1 }},
		{"repeat-penalty-below-one", func(p *SamplingParams) { p.RepeatPenalty = 0.9 }},
		{"zero-threads", func(p *SamplingParams) { p.Threads = 0 }},
		{"zero-batch", func(p *SamplingParams) { p.BatchSize = 0 }},
		{"zero-context", func(p *SamplingParams) { p.ContextSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultSamplingParams()
			tc.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNegativeSeedIsValid(t *testing.T) {
	p := DefaultSamplingParams()
	p.Seed = -1
	if err := p.Validate(); err != nil {
		t.Fatalf("negative seed means non-deterministic, must validate: %v", err)
	}
}
