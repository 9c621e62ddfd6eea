package providers

import (
	"context"
	"encoding/json"
	"time"
)

// ContentClient is the interface for text generation providers.
type ContentClient interface {
	// Generate sends a single content generation request.
	Generate(ctx context.Context, req *ContentRequest) (*ContentResult, error)

	// Name returns the client identifier (e.g., "openai", "openrouter").
	Name() string

	// Hints for callers that pool requests: the provider's configured
	// request rate and attempt budget.
	RequestsPerSecond() float64
	MaxRetries() int
}

// ImageClient is the interface for image generation providers.
// Separate from ContentClient because it has different rate limits,
// pricing, and result handling (binary payloads vs text).
type ImageClient interface {
	// GenerateImage renders a single image from a prompt.
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error)

	// Name returns the provider identifier (e.g., "openai", "stability").
	Name() string
}

// ModelParams are the generation parameters carried by every request.
// They are part of the cache fingerprint: changing any field produces a
// different cache key.
type ModelParams struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// ContentRequest is a request to a text generation provider.
type ContentRequest struct {
	// Prompt is the user-facing instruction.
	Prompt string `json:"prompt"`

	// System is an optional system instruction (uses provider default if empty).
	System string `json:"system,omitempty"`

	Params ModelParams `json:"params"`

	// ResponseFormat requests structured JSON output when set.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`

	// Per-request timeout override (0 means client default).
	Timeout time.Duration `json:"-"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ContentResult is the response from a text generation call.
type ContentResult struct {
	Text       string          `json:"text"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // Set if ResponseFormat was requested

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string        `json:"request_id"`
	Duration  time.Duration `json:"duration"`
}

// ImageRequest is a request to an image generation provider.
type ImageRequest struct {
	Prompt    string `json:"prompt"`
	Size      string `json:"size,omitempty"`  // e.g., "1024x1024"
	Model     string `json:"model,omitempty"` // Provider default if empty
	RequestID string `json:"-"`
}

// ImageResult is the response from an image generation call.
type ImageResult struct {
	// PNG or JPEG bytes, ready to write to disk.
	Data []byte `json:"-"`

	Provider  string        `json:"provider"`
	ModelUsed string        `json:"model_used"`
	RequestID string        `json:"request_id"`
	Duration  time.Duration `json:"duration"`
}
