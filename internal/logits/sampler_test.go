package logits

import "testing"

func TestGreedyPicksArgmax(t *testing.T) {
	s := NewSampler(SamplerConfig{Seed: 1, Temperature: 0})
	logits := []float32{0.1, 3.0, -2.0, 1.5}
	if got := s.Sample(logits, nil); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestSameSeedSameDraws(t *testing.T) {
	cfg := SamplerConfig{Seed: 42, Temperature: 0.8, TopK: 4, TopP: 0.95}
	a := NewSampler(cfg)
	b := NewSampler(cfg)

	logits := []float32{1.0, 0.9, 0.8, 0.7, 0.6, 0.5}
	for i := 0; i < 32; i++ {
		la := append([]float32(nil), logits...)
		lb := append([]float32(nil), logits...)
		if x, y := a.Sample(la, nil), b.Sample(lb, nil); x != y {
			t.Fatalf("draw %d diverged: %d vs %d", i, x, y)
		}
	}
}

func TestRepeatPenaltySuppressesRecentToken(t *testing.T) {
	s := NewSampler(SamplerConfig{Seed: 1, Temperature: 0, RepeatPenalty: 2.0, RepeatLastN: 8})
	// Token 0 barely wins; penalising it must flip the argmax to 1.
	logits := []float32{1.0, 0.9}
	if got := s.Sample(logits, []int{0}); got != 1 {
		t.Fatalf("got %d, want 1 after penalty", got)
	}
}

func TestRepeatPenaltyWindowBound(t *testing.T) {
	s := NewSampler(SamplerConfig{Seed: 1, Temperature: 0, RepeatPenalty: 2.0, RepeatLastN: 2})
	// Token 0 appears only outside the last-2 window, so no penalty applies.
	logits := []float32{1.0, 0.9}
	if got := s.Sample(logits, []int{0, 1, 1}); got != 0 {
		t.Fatalf("got %d, want 0 (token outside window)", got)
	}
}

func TestTopKShortlistOrdering(t *testing.T) {
	s := NewSampler(SamplerConfig{Seed: 1, Temperature: 1, TopK: 3, TopP: 1})
	idx, val := s.topK([]float32{0.5, 2.0, 1.0, 3.0, -1.0}, 3, 1)
	wantIdx := []int{3, 1, 2}
	for i := range wantIdx {
		if idx[i] != wantIdx[i] {
			t.Fatalf("idx[%d]: got %d, want %d (vals %v)", i, idx[i], wantIdx[i], val)
		}
	}
}

func TestSampleStaysInsideTopK(t *testing.T) {
	s := NewSampler(SamplerConfig{Seed: 7, Temperature: 1.2, TopK: 2, TopP: 1})
	logits := []float32{5.0, 4.0, -10.0, -10.0, -10.0}
	for i := 0; i < 64; i++ {
		l := append([]float32(nil), logits...)
		got := s.Sample(l, nil)
		if got != 0 && got != 1 {
			t.Fatalf("sampled %d outside top-2 shortlist", got)
		}
	}
}
