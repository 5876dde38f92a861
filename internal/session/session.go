// Package session owns the conversation state of one generation run:
// the pending-token queue, the evaluated-position counter, the sliding
// repeat-penalty window and the remaining sampling budget. Step is the
// heart of the loop: each call either batches pending input into the
// model or samples exactly one new token, never both.
package session

import (
	"strings"

	"github.com/samcharles93/parley/internal/model"
)

// StepResult reports what one Step produced.
type StepResult struct {
	// Text is the decoded text produced by this step: the consumed
	// prompt tokens when echoing an ingest step, or the single sampled
	// token's text.
	Text string
	// Finished is set when the end-of-text token was sampled or the
	// sampling budget ran out.
	Finished bool
}

// pending is one queued token. fromSample marks a token the sample
// branch fed back for evaluation; such tokens already sit in the
// repeat window and must not be added again at ingest time.
type pending struct {
	id         int
	fromSample bool
}

// Session drives generation against one Model. Not safe for
// concurrent use; the loop is single-conversation by design.
type Session struct {
	model  model.Model
	params model.SamplingParams

	queue   []pending
	window  []int
	nPast   int
	nRemain int

	antiprompt string
	tail       string
	finished   bool
}

// New creates a session with the given sampling budget. A negative
// budget means unlimited sampling (interactive sessions rely on the
// controller to stop); a zero budget starts exhausted, so the session
// will ingest input but never sample. Params are validated once here
// and treated as immutable afterwards.
func New(m model.Model, p model.SamplingParams, budget int) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		model:    m,
		params:   p,
		nRemain:  budget,
		finished: budget == 0,
	}, nil
}

// SetAntiprompt configures the literal substring whose appearance in
// generated text hands control back to the user. Empty disables
// detection.
func (s *Session) SetAntiprompt(a string) {
	s.antiprompt = a
}

// Enqueue appends token ids to the pending-input queue. The queue is
// unbounded; Enqueue always succeeds.
func (s *Session) Enqueue(ids []int) {
	for _, id := range ids {
		s.queue = append(s.queue, pending{id: id})
	}
}

// HasPendingInput reports whether queued tokens await evaluation.
func (s *Session) HasPendingInput() bool {
	return len(s.queue) > 0
}

// Step advances the session by one state-machine transition.
//
// With pending input it evaluates up to BatchSize queued tokens,
// advancing the position counter; echo controls whether the consumed
// tokens' text is returned (so a caller can show the prompt as it is
// ingested). With an empty queue it samples one token, feeds it back
// through the queue so the next Step evaluates it, and decrements the
// budget.
//
// Evaluation is batched for throughput while sampling is strictly
// sequential, so the two branches are mutually exclusive per step.
// Model errors propagate unchanged; on error the queue and counters
// are left untouched so a caller may resume.
func (s *Session) Step(echo bool) (StepResult, error) {
	if s.HasPendingInput() {
		return s.ingest(echo)
	}
	return s.sample()
}

func (s *Session) ingest(echo bool) (StepResult, error) {
	n := min(len(s.queue), s.params.BatchSize)
	batch := s.queue[:n]

	ids := make([]int, n)
	for i, p := range batch {
		ids[i] = p.id
	}

	if err := s.model.Evaluate(ids, s.nPast, s.params.Threads); err != nil {
		return StepResult{}, err
	}

	var out strings.Builder
	for _, p := range batch {
		if p.fromSample {
			// Fed-back sampled tokens were windowed and emitted by the
			// sample step already.
			continue
		}
		s.windowAppend(p.id)
		if echo {
			out.WriteString(s.model.Detokenize(p.id))
		}
	}
	s.queue = s.queue[n:]
	s.nPast += n

	return StepResult{Text: out.String(), Finished: s.finished}, nil
}

func (s *Session) sample() (StepResult, error) {
	if s.nRemain == 0 {
		s.finished = true
		return StepResult{Finished: true}, nil
	}

	id, err := s.model.Sample(s.windowSlice(), s.params)
	if err != nil {
		return StepResult{}, err
	}

	s.windowAppend(id)
	// Feed the sampled token back through the ingest path so nPast
	// bookkeeping stays uniform with prompt tokens.
	s.queue = append(s.queue, pending{id: id, fromSample: true})

	if s.nRemain > 0 {
		s.nRemain--
		if s.nRemain == 0 {
			s.finished = true
		}
	}
	if id == s.model.EndOfText() {
		s.finished = true
	}

	text := s.model.Detokenize(id)
	if s.antiprompt != "" {
		s.tail += text
		// Bound the tail even if the caller never checks for the
		// antiprompt; matches older than this window are lost.
		if keep := 4 * len(s.antiprompt); len(s.tail) > keep {
			s.tail = s.tail[len(s.tail)-keep:]
		}
	}

	return StepResult{Text: text, Finished: s.finished}, nil
}

// IsAntipromptPresent reports whether the configured antiprompt has
// appeared in the generated text since the last positive check. A
// positive check consumes the match so the same occurrence never
// fires twice.
func (s *Session) IsAntipromptPresent() bool {
	if s.antiprompt == "" {
		return false
	}
	if i := strings.Index(s.tail, s.antiprompt); i >= 0 {
		s.tail = s.tail[i+len(s.antiprompt):]
		return true
	}
	// Keep just enough tail for a match spanning future checks.
	if keep := len(s.antiprompt) - 1; len(s.tail) > keep {
		s.tail = s.tail[len(s.tail)-keep:]
	}
	return false
}

// ResetBudget restores the remaining-token budget, clearing a
// finished-by-exhaustion state. Used by interactive sessions to
// continue across turns. Resetting to zero leaves the session
// exhausted.
func (s *Session) ResetBudget(n int) {
	s.nRemain = n
	s.finished = n == 0
}

// IsFinished reports whether end-of-text was sampled or the budget is
// exhausted.
func (s *Session) IsFinished() bool {
	return s.finished
}

// NPast returns the count of tokens folded into the model context so
// far. It is monotonically non-decreasing.
func (s *Session) NPast() int {
	return s.nPast
}

// Remaining returns the sampling budget left.
func (s *Session) Remaining() int {
	return s.nRemain
}

func (s *Session) windowAppend(id int) {
	if s.params.RepeatLastN == 0 {
		return
	}
	s.window = append(s.window, id)
	if len(s.window) > s.params.RepeatLastN {
		s.window = s.window[len(s.window)-s.params.RepeatLastN:]
	}
}

func (s *Session) windowSlice() []int {
	return s.window
}
