package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/parley/internal/model"
)

type testModel struct {
	encode map[string][]int
	vocab  map[int]string
	script []int
	next   int
	evaled int
}

func (m *testModel) Tokenize(text string, addBOS bool) ([]int, error) {
	ids, ok := m.encode[text]
	if !ok {
		return nil, &model.TokenizeError{Text: text, Reason: "no encoding scripted"}
	}
	var out []int
	if addBOS {
		out = append(out, 1)
	}
	return append(out, ids...), nil
}

func (m *testModel) Evaluate(ids []int, startPos, threads int) error {
	if startPos != m.evaled {
		return fmt.Errorf("evaluate at %d, want %d", startPos, m.evaled)
	}
	m.evaled += len(ids)
	return nil
}

func (m *testModel) Sample(recent []int, p model.SamplingParams) (int, error) {
	if m.next >= len(m.script) {
		return 0, fmt.Errorf("sample script exhausted")
	}
	id := m.script[m.next]
	m.next++
	return id, nil
}

func (m *testModel) Detokenize(id int) string { return m.vocab[id] }

func (m *testModel) EndOfText() int { return 2 }

func newTestEcho() *echo.Echo {
	factory := func(seed int64, ctxSize int) model.Model {
		return &testModel{
			encode: map[string][]int{" hello": {10, 11}},
			vocab:  map[int]string{10: " hel", 11: "lo", 20: " wor", 21: "ld", 2: ""},
			script: []int{20, 21, 2},
		}
	}
	defaults := Defaults{
		Params:   model.DefaultSamplingParams(),
		NPredict: 16,
	}
	server := NewServer(factory, defaults, nil)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGenerateCompletes(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.ID, "gen_") {
		t.Fatalf("unexpected id: %q", resp.ID)
	}
	if resp.Object != "generation" {
		t.Fatalf("unexpected object: %q", resp.Object)
	}
	if resp.Text != " world" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Fatalf("unexpected finish reason: %q", resp.FinishReason)
	}
	if resp.TokensGenerated != 3 {
		t.Fatalf("tokens generated: got %d, want 3", resp.TokensGenerated)
	}
}

func TestGenerateBudgetExhaustion(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hello","n_predict":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FinishReason != "length" {
		t.Fatalf("unexpected finish reason: %q", resp.FinishReason)
	}
	if resp.Text != " world" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
}

func TestGenerateValidationErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho()

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing-prompt", `{}`, "prompt is required"},
		{"bad-n-predict", `{"prompt":"hello","n_predict":0}`, "n_predict must be positive"},
		{"bad-top-p", `{"prompt":"hello","top_p":2}`, "top_p"},
		{"bad-repeat-penalty", `{"prompt":"hello","repeat_penalty":0}`, "repeat_penalty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/generate", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Fatalf("unexpected error body: %s", rec.Body.String())
			}
		})
	}
}

func TestGenerateTokenizeFailureIsBadRequest(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	// The fake only scripts an encoding for " hello".
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"unknown"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGenerateStream(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hello","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type: %q", ct)
	}

	body := rec.Body.String()
	for _, event := range []string{"generation.created", "generation.delta", "generation.completed"} {
		if !strings.Contains(body, event) {
			t.Fatalf("missing %s event in stream:\n%s", event, body)
		}
	}
	if !strings.Contains(body, `"delta":" wor"`) {
		t.Fatalf("missing first delta in stream:\n%s", body)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
