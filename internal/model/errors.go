package model

import (
	"errors"
	"fmt"
)

var (
	ErrTokenize = errors.New("tokenize")
	ErrEval     = errors.New("eval")
)

// TokenizeError reports malformed input text. Not recoverable; the
// session aborts.
type TokenizeError struct {
	Text   string
	Reason string
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("tokenize %q: %s", truncate(e.Text, 32), e.Reason)
}

func (e *TokenizeError) Unwrap() error {
	return ErrTokenize
}

// EvalError reports a context window overflow: the evaluation would
// push the context past its configured size. This is a configuration
// or budget bug, not a transient failure; the session terminates.
type EvalError struct {
	StartPos    int
	Count       int
	ContextSize int
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval: %d tokens at position %d exceed context size %d",
		e.Count, e.StartPos, e.ContextSize)
}

func (e *EvalError) Unwrap() error {
	return ErrEval
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
