// Package api exposes generation over HTTP: a single-shot generate
// endpoint with optional SSE streaming, plus a health probe. Each
// request gets its own model instance and session, so requests are
// independent and the handler needs no locking.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/parley/internal/logger"
	"github.com/samcharles93/parley/internal/model"
	"github.com/samcharles93/parley/internal/session"
	"github.com/samcharles93/parley/internal/version"
)

// ModelFactory builds a fresh backend for one request.
type ModelFactory func(seed int64, ctxSize int) model.Model

// Defaults are the server-side generation defaults a request may
// override field by field.
type Defaults struct {
	Params   model.SamplingParams
	NPredict int
}

type Server struct {
	factory  ModelFactory
	defaults Defaults
	clock    func() time.Time
	log      logger.Logger
}

func NewServer(factory ModelFactory, defaults Defaults, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		factory:  factory,
		defaults: defaults,
		clock:    time.Now,
		log:      log,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.String(),
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	if s.factory == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "model factory not configured", "", "")
	}
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	params, nPredict, err := s.resolveParams(&req)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	resp := GenerateResponse{
		ID:        newGenerationID(),
		Object:    "generation",
		CreatedAt: s.clock().Unix(),
	}

	var writer *SSEStreamWriter
	if req.Stream {
		w, err := NewSSEStreamWriter(c)
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
		writer = w
		if err := writer.Begin(resp); err != nil {
			return err
		}
	}

	stream := func(string) {}
	if writer != nil {
		stream = func(delta string) {
			_ = writer.EmitDelta(resp.ID, delta)
		}
	}

	start := s.clock()
	result, err := s.generate(c.Request().Context(), params, nPredict, req.Prompt, stream)
	if err != nil {
		s.log.Error("generation failed", "id", resp.ID, "error", err)
		if writer != nil {
			return writer.Failed(resp.ID, err)
		}
		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, model.ErrTokenize) {
			return writeBadRequest(c, err.Error())
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	resp.Text = result.text
	resp.TokensGenerated = result.tokens
	resp.FinishReason = result.finishReason
	resp.DurationMS = s.clock().Sub(start).Milliseconds()
	if secs := s.clock().Sub(start).Seconds(); secs > 0 {
		resp.TPS = float64(result.tokens) / secs
	}

	if writer != nil {
		return writer.Complete(resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) resolveParams(req *GenerateRequest) (model.SamplingParams, int, error) {
	params := s.defaults.Params
	nPredict := s.defaults.NPredict

	if req.NPredict != nil {
		nPredict = *req.NPredict
	}
	if req.TopK != nil {
		params.TopK = *req.TopK
	}
	if req.TopP != nil {
		params.TopP = *req.TopP
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.RepeatLastN != nil {
		params.RepeatLastN = *req.RepeatLastN
	}
	if req.RepeatPenalty != nil {
		params.RepeatPenalty = *req.RepeatPenalty
	}
	if req.CtxSize != nil {
		params.ContextSize = *req.CtxSize
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	if req.Prompt == "" {
		return params, 0, newInvalidRequest("prompt is required")
	}
	if nPredict <= 0 {
		return params, 0, newInvalidRequest("n_predict must be positive")
	}
	if err := params.Validate(); err != nil {
		return params, 0, newInvalidRequest(err.Error())
	}
	return params, nPredict, nil
}

type generateResult struct {
	text         string
	tokens       int
	finishReason string
}

// generate runs one batch-mode session to completion. The leading
// space matches the prompt convention of the terminal front end so the
// two surfaces produce identical streams for identical seeds.
func (s *Server) generate(ctx context.Context, params model.SamplingParams, nPredict int, prompt string, stream func(string)) (generateResult, error) {
	m := s.factory(params.Seed, params.ContextSize)

	ids, err := m.Tokenize(" "+prompt, true)
	if err != nil {
		return generateResult{}, err
	}

	sess, err := session.New(m, params, nPredict)
	if err != nil {
		return generateResult{}, err
	}
	sess.Enqueue(ids)

	var result generateResult
	for !sess.IsFinished() {
		if err := ctx.Err(); err != nil {
			return generateResult{}, err
		}
		res, err := sess.Step(false)
		if err != nil {
			return generateResult{}, err
		}
		// Ingest steps with echo off return empty text; only sampled
		// fragments reach the stream.
		if res.Text != "" {
			result.text += res.Text
			stream(res.Text)
		}
	}

	result.tokens = nPredict - sess.Remaining()
	if sess.Remaining() == 0 {
		result.finishReason = "length"
	} else {
		result.finishReason = "stop"
	}
	return result, nil
}
