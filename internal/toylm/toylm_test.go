package toylm

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/samcharles93/parley/internal/model"
)

func TestTokenizeRoundTrip(t *testing.T) {
	m := New(1, 64)
	ids, err := m.Tokenize("hi!", true)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{TokenBOS, int('h') + 2, int('i') + 2, int('!') + 2}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v, want %v", ids, want)
	}

	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(m.Detokenize(id))
	}
	if sb.String() != "hi!" {
		t.Fatalf("round trip: got %q", sb.String())
	}
}

func TestTokenizeRejectsInvalidUTF8(t *testing.T) {
	m := New(1, 64)
	_, err := m.Tokenize(string([]byte{0xff, 0xfe}), false)
	if !errors.Is(err, model.ErrTokenize) {
		t.Fatalf("got %v, want TokenizeError", err)
	}
}

func TestEvaluateEnforcesContextBound(t *testing.T) {
	m := New(1, 4)
	if err := m.Evaluate([]int{TokenBOS, 10, 11}, 0, 1); err != nil {
		t.Fatalf("within bound: %v", err)
	}
	err := m.Evaluate([]int{12, 13}, 3, 1)
	var evalErr *model.EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("got %v, want EvalError", err)
	}
}

func TestSeededSamplingIsReproducible(t *testing.T) {
	p := model.DefaultSamplingParams()
	p.Seed = 1234

	run := func() []int {
		m := New(99, 256)
		ids, err := m.Tokenize("seed", true)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Evaluate(ids, 0, 1); err != nil {
			t.Fatal(err)
		}
		var out []int
		var recent []int
		pos := len(ids)
		for i := 0; i < 16; i++ {
			id, err := m.Sample(recent, p)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, id)
			recent = append(recent, id)
			if err := m.Evaluate([]int{id}, pos, 1); err != nil {
				t.Fatal(err)
			}
			pos++
		}
		return out
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed diverged:\n%v\n%v", a, b)
	}
}
