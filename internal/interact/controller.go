// Package interact drives the outer generation loop: it steps the
// session, renders produced text, and hands control to the user when
// the session signals it is awaiting input.
package interact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/samcharles93/parley/internal/logger"
	"github.com/samcharles93/parley/internal/model"
	"github.com/samcharles93/parley/internal/session"
)

// Mode selects how the controller treats stop conditions and user
// input.
type Mode int

const (
	// ModeBatch generates until end-of-text or budget exhaustion and
	// never reads input.
	ModeBatch Mode = iota
	// ModeInteractive pauses for a user line on antiprompt or finish.
	ModeInteractive
	// ModeInstruct is interactive with fixed per-turn prefix/suffix
	// framing and the instruction antiprompt.
	ModeInstruct
)

func (m Mode) Interactive() bool { return m != ModeBatch }

func (m Mode) String() string {
	switch m {
	case ModeBatch:
		return "batch"
	case ModeInteractive:
		return "interactive"
	case ModeInstruct:
		return "instruct"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Instruction-following turn framing, from the Alpaca convention.
const (
	DefaultAntiprompt = "### Instruction:\n\n"
	instructPrefix    = "\n\n### Instruction:\n\n"
	instructSuffix    = "\n\n### Response:\n\n"
)

// EndOfTextMarker is emitted in batch mode when generation finishes
// naturally.
const EndOfTextMarker = " [end of text]"

// StreamFunc receives each produced text fragment as it is generated.
type StreamFunc func(text string)

// Stats summarises a finished run.
type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Config wires a Controller.
type Config struct {
	Session *session.Session
	Model   model.Model
	Mode    Mode
	// Stream receives generated text. Required.
	Stream StreamFunc
	// Input supplies user lines; required for interactive modes.
	Input LineReader
	// Budget restores the session's remaining-token budget when an
	// interactive session continues past a natural finish.
	Budget int
	// Antiprompt overrides the mode's default reverse prompt.
	Antiprompt string
	// EchoPrompt controls whether initially queued prompt text is
	// rendered as it is ingested.
	EchoPrompt bool
	// PromptUser, when set, is called right before a user line is
	// read (typically to print a "> " marker).
	PromptUser func()
	Log        logger.Logger
}

// Controller owns the running/awaiting-input state machine around one
// GenerationSession.
type Controller struct {
	session    *session.Session
	model      model.Model
	mode       Mode
	stream     StreamFunc
	input      LineReader
	budget     int
	promptUser func()
	log        logger.Logger

	prefix []int
	suffix []int

	interacting  bool
	suppressEcho bool
}

// New validates the configuration and tokenizes the instruct framing
// up front so a framing failure surfaces before any generation.
func New(cfg Config) (*Controller, error) {
	if cfg.Session == nil {
		return nil, errors.New("interact: session is required")
	}
	if cfg.Stream == nil {
		return nil, errors.New("interact: stream is required")
	}
	if cfg.Mode.Interactive() && cfg.Input == nil {
		return nil, errors.New("interact: interactive modes need a line reader")
	}

	c := &Controller{
		session:    cfg.Session,
		model:      cfg.Model,
		mode:       cfg.Mode,
		stream:     cfg.Stream,
		input:      cfg.Input,
		budget:     cfg.Budget,
		promptUser: cfg.PromptUser,
		log:        cfg.Log,
	}
	if c.log == nil {
		c.log = logger.Default()
	}

	antiprompt := cfg.Antiprompt
	if c.mode == ModeInstruct {
		if antiprompt == "" {
			antiprompt = DefaultAntiprompt
		}
		var err error
		// The prefix opens a turn boundary and carries BOS; the suffix
		// does not.
		if c.prefix, err = c.model.Tokenize(instructPrefix, true); err != nil {
			return nil, fmt.Errorf("tokenize instruct prefix: %w", err)
		}
		if c.suffix, err = c.model.Tokenize(instructSuffix, false); err != nil {
			return nil, fmt.Errorf("tokenize instruct suffix: %w", err)
		}
	}
	if antiprompt != "" {
		c.session.SetAntiprompt(antiprompt)
	}

	// Interactive sessions hand control to the user as soon as the
	// initial prompt has been ingested.
	c.interacting = c.mode.Interactive()
	c.suppressEcho = !cfg.EchoPrompt
	return c, nil
}

// Run drives the loop until the conversation ends: batch finish,
// user EOF, context cancellation, or a model error. Returned model
// errors are fatal and unwrapped by errors.Is/As; the session state
// remains consistent if the caller decides to resume after a
// cancellation.
func (c *Controller) Run(ctx context.Context) (stats Stats, err error) {
	c.log.Debug("starting generation", "mode", c.mode.String(), "budget", c.budget)
	start := time.Now()
	defer func() {
		stats.Duration = time.Since(start)
		if s := stats.Duration.Seconds(); s > 0 {
			stats.TPS = float64(stats.TokensGenerated) / s
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if c.session.HasPendingInput() {
			res, err := c.session.Step(!c.suppressEcho)
			if err != nil {
				return stats, err
			}
			if res.Text != "" {
				c.stream(res.Text)
			}
			continue
		}

		if c.mode.Interactive() && c.interacting {
			if err := c.awaitInput(); err != nil {
				if err == io.EOF {
					return stats, nil
				}
				return stats, err
			}
			continue
		}

		if c.session.IsFinished() {
			if !c.mode.Interactive() {
				c.stream(EndOfTextMarker)
				return stats, nil
			}
			// Natural finish in interactive mode: refresh the budget
			// and hand control back instead of stopping.
			c.session.ResetBudget(c.budget)
			c.interacting = true
			continue
		}

		res, err := c.session.Step(true)
		if err != nil {
			return stats, err
		}
		c.stream(res.Text)
		stats.TokensGenerated++
		c.suppressEcho = false

		if c.mode.Interactive() && c.session.IsAntipromptPresent() {
			c.interacting = true
		}
	}
}

// awaitInput runs the AWAITING_INPUT sub-state: instruct prefix, one
// logical line from the user, instruct suffix. The user's own text is
// not echoed back on the next cycle.
func (c *Controller) awaitInput() error {
	if c.mode == ModeInstruct {
		c.session.Enqueue(c.prefix)
	}
	if c.promptUser != nil {
		c.promptUser()
	}

	line, err := ReadLogical(c.input)
	if err != nil {
		return err
	}

	ids, err := c.model.Tokenize(line, false)
	if err != nil {
		return fmt.Errorf("tokenize input line: %w", err)
	}
	c.session.Enqueue(ids)

	if c.mode == ModeInstruct {
		c.session.Enqueue(c.suffix)
	}

	c.suppressEcho = true
	c.interacting = false
	return nil
}
