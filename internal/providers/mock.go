package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockContentClient is a ContentClient for testing.
type MockContentClient struct {
	// Configurable behavior
	Latency      time.Duration
	ResponseText string
	ResponseJSON json.RawMessage

	// FailWith, when set, makes every call fail with this error.
	FailWith error

	// FailFirst makes the first N calls fail with FailWith before succeeding.
	FailFirst int

	// GenerateFn overrides all other behavior when set.
	GenerateFn func(ctx context.Context, req *ContentRequest) (*ContentResult, error)

	// Rate limiting hints
	RPS     float64
	Retries int

	// State
	callCount atomic.Int64

	mu       sync.Mutex
	requests []ContentRequest
}

// NewMockContentClient creates a mock client with sensible defaults.
func NewMockContentClient() *MockContentClient {
	return &MockContentClient{
		Latency:      time.Millisecond,
		ResponseText: "mock response",
		RPS:          1000,
		Retries:      3,
	}
}

// Name returns the client identifier.
func (c *MockContentClient) Name() string {
	return MockClientName
}

// RequestsPerSecond returns the RPS limit for rate limiting.
func (c *MockContentClient) RequestsPerSecond() float64 {
	return c.RPS
}

// MaxRetries returns the configured attempt budget.
func (c *MockContentClient) MaxRetries() int {
	return c.Retries
}

// CallCount returns the number of Generate calls made.
func (c *MockContentClient) CallCount() int {
	return int(c.callCount.Load())
}

// Requests returns a copy of all requests seen so far.
func (c *MockContentClient) Requests() []ContentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ContentRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Generate sends a mock generation request.
func (c *MockContentClient) Generate(ctx context.Context, req *ContentRequest) (*ContentResult, error) {
	count := c.callCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	if c.GenerateFn != nil {
		return c.GenerateFn(ctx, req)
	}

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, &APIError{Provider: MockClientName, Kind: KindCanceled, Message: ctx.Err().Error()}
		case <-time.After(c.Latency):
		}
	}

	if c.FailWith != nil && (c.FailFirst == 0 || int(count) <= c.FailFirst) {
		return nil, c.FailWith
	}

	result := &ContentResult{
		Text:             c.ResponseText,
		PromptTokens:     10,
		CompletionTokens: 20,
		TotalTokens:      30,
		Provider:         MockClientName,
		ModelUsed:        req.Params.Model,
		RequestID:        fmt.Sprintf("mock-%d", count),
	}
	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		result.Text = string(c.ResponseJSON)
		result.ParsedJSON = c.ResponseJSON
	}
	return result, nil
}

// MockImageClient is an ImageClient for testing.
type MockImageClient struct {
	Data     []byte
	FailWith error

	callCount atomic.Int64
}

// Name returns the provider identifier.
func (c *MockImageClient) Name() string { return MockClientName }

// CallCount returns the number of GenerateImage calls made.
func (c *MockImageClient) CallCount() int { return int(c.callCount.Load()) }

// GenerateImage renders a mock image.
func (c *MockImageClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	c.callCount.Add(1)
	if c.FailWith != nil {
		return nil, c.FailWith
	}
	data := c.Data
	if data == nil {
		data = []byte("mock image bytes")
	}
	return &ImageResult{
		Data:      data,
		Provider:  MockClientName,
		ModelUsed: req.Model,
		RequestID: req.RequestID,
	}, nil
}

// Verify interfaces
var (
	_ ContentClient = (*MockContentClient)(nil)
	_ ImageClient   = (*MockImageClient)(nil)
)
