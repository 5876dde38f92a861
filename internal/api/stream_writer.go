package api

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// SSEStreamWriter emits the generation event stream:
// generation.created once, generation.delta per fragment, then exactly
// one of generation.completed or generation.failed.
type SSEStreamWriter struct {
	w       io.Writer
	flusher func()
	seq     int
	begun   bool
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	return &SSEStreamWriter{
		w:       res,
		flusher: flusher.Flush,
		seq:     1,
	}, nil
}

func (s *SSEStreamWriter) Started() bool {
	return s.begun
}

func (s *SSEStreamWriter) Begin(resp GenerateResponse) error {
	s.begun = true
	return s.send(map[string]any{
		"type":            "generation.created",
		"id":              resp.ID,
		"created_at":      resp.CreatedAt,
		"sequence_number": s.seq,
	})
}

func (s *SSEStreamWriter) EmitDelta(id, delta string) error {
	return s.send(map[string]any{
		"type":            "generation.delta",
		"id":              id,
		"delta":           delta,
		"sequence_number": s.seq,
	})
}

func (s *SSEStreamWriter) Complete(resp GenerateResponse) error {
	return s.send(map[string]any{
		"type":            "generation.completed",
		"generation":      resp,
		"sequence_number": s.seq,
	})
}

func (s *SSEStreamWriter) Failed(id string, genErr error) error {
	return s.send(map[string]any{
		"type": "generation.failed",
		"id":   id,
		"error": GenerationError{
			Message: genErr.Error(),
			Type:    "server_error",
		},
		"sequence_number": s.seq,
	})
}

func (s *SSEStreamWriter) send(payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	s.flusher()
	s.seq++
	return nil
}
