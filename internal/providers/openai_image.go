package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/google/uuid"
)

const (
	OpenAIImageName         = "openai"
	openAIImageDefaultModel = "dall-e-3"
	openAIImageDefaultSize  = "1024x1024"
)

// OpenAIImageConfig holds configuration for the OpenAI image client.
type OpenAIImageConfig struct {
	APIKey     string
	BaseURL    string // Optional (tests)
	Model      string // "dall-e-3" (default), "dall-e-2", "gpt-image-1"
	Size       string // "1024x1024" (default)
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIImageClient implements ImageClient using the official OpenAI SDK.
type OpenAIImageClient struct {
	model  string
	size   string
	client openai.Client
}

// NewOpenAIImageClient creates a new OpenAI image client.
func NewOpenAIImageClient(cfg OpenAIImageConfig) *OpenAIImageClient {
	if cfg.Model == "" {
		cfg.Model = openAIImageDefaultModel
	}
	if cfg.Size == "" {
		cfg.Size = openAIImageDefaultSize
	}
	if cfg.Timeout == 0 {
		// Image rendering is slow compared to chat.
		cfg.Timeout = 300 * time.Second
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

	return &OpenAIImageClient{
		model:  cfg.Model,
		size:   cfg.Size,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIImageClient) Name() string {
	return OpenAIImageName
}

// GenerateImage renders a single image from a prompt.
func (c *OpenAIImageClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	size := req.Size
	if size == "" {
		size = c.size
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return nil, &APIError{
				Provider: OpenAIImageName,
				Kind:     classifyStatus(apierr.StatusCode),
				Status:   apierr.StatusCode,
				Message:  apierr.Error(),
			}
		}
		return nil, &APIError{
			Provider: OpenAIImageName,
			Kind:     classifyTransportErr(err),
			Message:  err.Error(),
		}
	}
	if len(resp.Data) == 0 {
		return nil, &APIError{
			Provider: OpenAIImageName,
			Kind:     KindServer,
			Message:  "no images in response",
		}
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, &APIError{
			Provider: OpenAIImageName,
			Kind:     KindServer,
			Message:  fmt.Sprintf("failed to decode image payload: %v", err),
		}
	}

	return &ImageResult{
		Data:      data,
		Provider:  OpenAIImageName,
		ModelUsed: model,
		RequestID: requestID,
		Duration:  time.Since(start),
	}, nil
}

// Verify interface
var _ ImageClient = (*OpenAIImageClient)(nil)
