package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/google/uuid"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"
)

// OpenAIConfig holds configuration for the OpenAI content client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // Optional (tests)
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting hints for the pool
	RPS        float64
	MaxRetries int
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIClient implements ContentClient using the official OpenAI SDK.
type OpenAIClient struct {
	defaultModel string
	client       openai.Client
	rps          float64
	maxRetries   int
}

// NewOpenAIClient creates a new OpenAI content client.
// SDK-internal retries are disabled; the retry wrapper owns the attempt budget.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
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

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		defaultModel: cfg.DefaultModel,
		client:       openai.NewClient(opts...),
		rps:          cfg.RPS,
		maxRetries:   cfg.MaxRetries,
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// RequestsPerSecond returns the RPS limit for rate limiting.
func (c *OpenAIClient) RequestsPerSecond() float64 {
	return c.rps
}

// MaxRetries returns the provider's attempt budget.
func (c *OpenAIClient) MaxRetries() int {
	return c.maxRetries
}

// Generate sends a chat completion request.
func (c *OpenAIClient) Generate(ctx context.Context, req *ContentRequest) (*ContentResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Params.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Params.Temperature > 0 {
		params.Temperature = openai.Float(req.Params.Temperature)
	}
	if req.Params.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Params.MaxTokens))
	}
	// JSON mode when structured output is requested; the canonical schema is
	// validated locally by the caller.
	if req.ResponseFormat != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &APIError{
			Provider: OpenAIName,
			Kind:     KindServer,
			Message:  "no choices in response",
		}
	}

	result := &ContentResult{
		Text:             completion.Choices[0].Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		Provider:         OpenAIName,
		ModelUsed:        completion.Model,
		RequestID:        requestID,
		Duration:         time.Since(start),
	}

	if req.ResponseFormat != nil && result.Text != "" {
		var parsed json.RawMessage
		if jsonErr := json.Unmarshal([]byte(result.Text), &parsed); jsonErr != nil {
			return nil, &APIError{
				Provider: OpenAIName,
				Kind:     KindServer,
				Message:  fmt.Sprintf("structured response is not valid JSON: %v", jsonErr),
			}
		}
		result.ParsedJSON = parsed
	}

	return result, nil
}

// classify converts an SDK error into a classified APIError.
func (c *OpenAIClient) classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		e := &APIError{
			Provider: OpenAIName,
			Kind:     classifyStatus(apierr.StatusCode),
			Status:   apierr.StatusCode,
			Message:  apierr.Error(),
		}
		if e.Kind == KindRateLimited && apierr.Response != nil {
			if s := apierr.Response.Header.Get("Retry-After"); s != "" {
				if secs, perr := strconv.Atoi(s); perr == nil {
					e.RetryAfter = time.Duration(secs) * time.Second
				}
			}
		}
		return e
	}
	return &APIError{
		Provider: OpenAIName,
		Kind:     classifyTransportErr(err),
		Message:  err.Error(),
	}
}

// Verify interface
var _ ContentClient = (*OpenAIClient)(nil)
