// Package toylm is the built-in model backend: a deterministic
// byte-level language model that lets the generation loop run end to
// end without external weights. Linguistic quality is a non-goal; the
// backend exists to exercise tokenization, batched evaluation and
// sampling through the real Model interface.
package toylm

import (
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/samcharles93/parley/internal/logits"
	"github.com/samcharles93/parley/internal/model"
)

const (
	// Token ids 0 and 1 are reserved specials; byte b maps to id b+2.
	TokenEOT = 0
	TokenBOS = 1

	vocabSize = 2 + 256
)

// LM implements model.Model over a byte vocabulary. Logits are drawn
// from a seeded table mixed with the last evaluated token, so the same
// seed and input always reproduce the same stream.
type LM struct {
	ctxSize int
	table   []float32
	ctx     []int
	sampler *logits.Sampler
	scratch []float32
}

// New constructs a backend with the given context size. seed shapes
// the logit table; a negative seed falls back to wall-clock entropy.
func New(seed int64, ctxSize int) *LM {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	table := make([]float32, vocabSize*2)
	for i := range table {
		table[i] = rng.Float32()*8 - 4
	}
	// Bias toward printable ASCII and newline so generated streams are
	// readable in a terminal.
	for b := 0; b < 256; b++ {
		if (b >= 32 && b < 127) || b == '\n' {
			table[2+b] += 3
			table[vocabSize+2+b] += 3
		}
	}
	return &LM{
		ctxSize: ctxSize,
		table:   table,
		scratch: make([]float32, vocabSize),
	}
}

func (m *LM) Tokenize(text string, addBOS bool) ([]int, error) {
	if !utf8.ValidString(text) {
		return nil, &model.TokenizeError{Text: text, Reason: "invalid utf-8"}
	}
	ids := make([]int, 0, len(text)+1)
	if addBOS {
		ids = append(ids, TokenBOS)
	}
	for i := 0; i < len(text); i++ {
		ids = append(ids, int(text[i])+2)
	}
	return ids, nil
}

func (m *LM) Evaluate(ids []int, startPos, threads int) error {
	if startPos+len(ids) > m.ctxSize {
		return &model.EvalError{StartPos: startPos, Count: len(ids), ContextSize: m.ctxSize}
	}
	// The context is append-only; the session never re-evaluates a
	// position, so a position mismatch would be a loop bug surfaced by
	// the tests rather than something to repair here.
	m.ctx = append(m.ctx, ids...)
	_ = threads
	return nil
}

func (m *LM) Sample(recent []int, p model.SamplingParams) (int, error) {
	if m.sampler == nil {
		m.sampler = logits.NewSampler(logits.SamplerConfig{
			Seed:          samplerSeed(p.Seed),
			Temperature:   float32(p.Temperature),
			TopK:          p.TopK,
			TopP:          float32(p.TopP),
			RepeatPenalty: float32(p.RepeatPenalty),
			RepeatLastN:   p.RepeatLastN,
		})
	}

	last := TokenBOS
	if len(m.ctx) > 0 {
		last = m.ctx[len(m.ctx)-1]
	}
	// Two table halves mixed by the last token give each context a
	// distinct but reproducible distribution.
	for v := 0; v < vocabSize; v++ {
		m.scratch[v] = m.table[(last+v)%vocabSize] + m.table[vocabSize+(last*7+v)%vocabSize]*0.5
	}
	return m.sampler.Sample(m.scratch, recent), nil
}

func (m *LM) Detokenize(id int) string {
	if id < 2 || id >= vocabSize {
		return ""
	}
	return string([]byte{byte(id - 2)})
}

func (m *LM) EndOfText() int { return TokenEOT }

func samplerSeed(seed int64) int64 {
	if seed < 0 {
		return time.Now().UnixNano()
	}
	return seed
}
