package logits

import (
	"math"
	"math/rand"
)

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed          int64
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	RepeatLastN   int
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	topIdx []int
	topVal []float32
	prob   []float64
	seen   map[int]struct{}
}

// NewSampler returns a new sampler with the provided configuration.
// Out-of-range values are clamped to sane defaults rather than
// rejected; parameter validation belongs to the caller.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1.0
	}
	if cfg.RepeatLastN <= 0 {
		cfg.RepeatLastN = 64
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
		seen:   make(map[int]struct{}),
	}
}

// Sample draws a single index from the provided logits vector:
//
//  1. Apply the repetition penalty over the recent window.
//  2. If greedy (temperature 0), return the argmax.
//  3. Scale by inverse temperature and shortlist the top k indices.
//  4. Softmax over the shortlist with max subtraction for stability.
//  5. If TopP<1, cut the shortlist at the cumulative probability.
//  6. Draw from the truncated distribution.
//
// Sample mutates logits in place when a penalty applies.
func (s *Sampler) Sample(logits []float32, recent []int) int {
	if s.cfg.RepeatPenalty > 1.0 && len(recent) > 0 {
		start := max(len(recent)-s.cfg.RepeatLastN, 0)
		clear(s.seen)
		for _, id := range recent[start:] {
			if id < 0 || id >= len(logits) {
				continue
			}
			if _, dup := s.seen[id]; dup {
				continue
			}
			s.seen[id] = struct{}{}
			if logits[id] > 0 {
				logits[id] /= s.cfg.RepeatPenalty
			} else {
				logits[id] *= s.cfg.RepeatPenalty
			}
		}
	}

	if s.greedy || (s.cfg.TopK == 1 && s.cfg.TopP >= 1 && s.cfg.Temperature == 1) {
		return argmax(logits)
	}

	invTemp := float32(1.0) / s.cfg.Temperature
	k := min(s.cfg.TopK, len(logits))

	topIdx, topVal := s.topK(logits, k, invTemp)
	if len(topVal) == 0 {
		return 0
	}

	maxv := topVal[0]
	for i := 1; i < len(topVal); i++ {
		if topVal[i] > maxv {
			maxv = topVal[i]
		}
	}

	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0]
	}
	invSum := 1.0 / sum
	for i := range prob {
		prob[i] *= invSum
	}

	cut := len(prob)
	if s.cfg.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if float32(c) >= s.cfg.TopP {
				cut = i + 1
				break
			}
		}
	}

	r := s.rng.Float64()
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r <= c {
			return topIdx[i]
		}
	}

	return topIdx[cut-1]
}

// argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// topK returns the indices and values of the k largest elements in logits, scaled by invTemp.
// The returned slices are ordered from largest to smallest by value.
// This is an O(V*K) algorithm suitable for small K.
func (s *Sampler) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range logits {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)

		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	if len(topIdx) == 0 {
		return []int{0}, []float32{0}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}
