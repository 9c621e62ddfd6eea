package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting hints for the pool
	RPS        float64
	MaxRetries int
}

// OpenRouterClient implements ContentClient using the OpenRouter API.
// It performs a single attempt per call; retry policy lives with the caller.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	rps          float64
	maxRetries   int
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic/claude-3.5-sonnet"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPS == 0 {
		cfg.RPS = 1.0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rps:        cfg.RPS,
		maxRetries: cfg.MaxRetries,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// RequestsPerSecond returns the RPS limit for rate limiting.
func (c *OpenRouterClient) RequestsPerSecond() float64 {
	return c.rps
}

// MaxRetries returns the provider's attempt budget.
func (c *OpenRouterClient) MaxRetries() int {
	return c.maxRetries
}

// Generate sends a chat completion request.
func (c *OpenRouterClient) Generate(ctx context.Context, req *ContentRequest) (*ContentResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Params.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, 2),
		Temperature: req.Params.Temperature,
		MaxTokens:   req.Params.MaxTokens,
	}
	if req.System != "" {
		orReq.Messages = append(orReq.Messages, openRouterMessage{Role: "system", Content: req.System})
	}
	orReq.Messages = append(orReq.Messages, openRouterMessage{Role: "user", Content: req.Prompt})

	if req.ResponseFormat != nil {
		orReq.ResponseFormat = &openRouterResponseFormat{
			Type:       req.ResponseFormat.Type,
			JSONSchema: req.ResponseFormat.JSONSchema,
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	orResp, err := c.doRequest(ctx, "/chat/completions", &orReq)
	if err != nil {
		return nil, err
	}

	if len(orResp.Choices) == 0 {
		return nil, &APIError{
			Provider: OpenRouterName,
			Kind:     KindServer,
			Message:  "no choices in response",
		}
	}

	result := &ContentResult{
		Text:             orResp.Choices[0].Message.Content,
		PromptTokens:     orResp.Usage.PromptTokens,
		CompletionTokens: orResp.Usage.CompletionTokens,
		TotalTokens:      orResp.Usage.TotalTokens,
		Provider:         OpenRouterName,
		ModelUsed:        orResp.Model,
		RequestID:        requestID,
		Duration:         time.Since(start),
	}

	if req.ResponseFormat != nil && result.Text != "" {
		var parsed json.RawMessage
		if jsonErr := json.Unmarshal([]byte(result.Text), &parsed); jsonErr != nil {
			return nil, &APIError{
				Provider: OpenRouterName,
				Kind:     KindServer,
				Message:  fmt.Sprintf("structured response is not valid JSON: %v", jsonErr),
			}
		}
		result.ParsedJSON = parsed
	}

	return result, nil
}

// doRequest makes a single HTTP request to OpenRouter and classifies failures.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, body *openRouterRequest) (*openRouterResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/bookforge/bookforge")
	req.Header.Set("X-Title", "Bookforge")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &APIError{
			Provider: OpenRouterName,
			Kind:     classifyTransportErr(err),
			Message:  err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Provider: OpenRouterName,
			Kind:     KindNetwork,
			Message:  fmt.Sprintf("failed to read response: %v", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			Provider: OpenRouterName,
			Kind:     classifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(respBody),
		}
		if apiErr.Kind == KindRateLimited {
			if s := resp.Header.Get("Retry-After"); s != "" {
				if secs, perr := strconv.Atoi(s); perr == nil {
					apiErr.RetryAfter = time.Duration(secs) * time.Second
				}
			}
		}
		return nil, apiErr
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, &APIError{
			Provider: OpenRouterName,
			Kind:     KindServer,
			Message:  fmt.Sprintf("failed to unmarshal response: %v", err),
		}
	}

	return &orResp, nil
}

// OpenRouter API types

type openRouterRequest struct {
	Model          string                    `json:"model"`
	Messages       []openRouterMessage       `json:"messages"`
	Temperature    float64                   `json:"temperature,omitempty"`
	MaxTokens      int                       `json:"max_tokens,omitempty"`
	ResponseFormat *openRouterResponseFormat `json:"response_format,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ ContentClient = (*OpenRouterClient)(nil)
