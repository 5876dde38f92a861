package api

// GenerateRequest is the body of POST /v1/generate. Sampling fields are
// pointers so absent fields fall back to the server defaults rather
// than zero values.
type GenerateRequest struct {
	Prompt        string   `json:"prompt"`
	Stream        bool     `json:"stream,omitempty"`
	NPredict      *int     `json:"n_predict,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	Temperature   *float64 `json:"temp,omitempty"`
	RepeatLastN   *int     `json:"repeat_last_n,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	CtxSize       *int     `json:"ctx_size,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

type GenerateResponse struct {
	ID              string  `json:"id"`
	Object          string  `json:"object"`
	CreatedAt       int64   `json:"created_at"`
	Text            string  `json:"text"`
	TokensGenerated int     `json:"tokens_generated"`
	FinishReason    string  `json:"finish_reason"`
	DurationMS      int64   `json:"duration_ms"`
	TPS             float64 `json:"tokens_per_second,omitempty"`
}

type GenerationError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
