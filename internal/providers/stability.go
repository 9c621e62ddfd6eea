package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StabilityName    = "stability"
	StabilityBaseURL = "https://api.stability.ai"

	stabilityDefaultEngine = "stable-diffusion-xl-1024-v1-0"
)

// StabilityConfig holds configuration for the Stability AI image client.
type StabilityConfig struct {
	APIKey  string
	BaseURL string
	Engine  string
	Timeout time.Duration
}

// StabilityClient implements ImageClient using the Stability AI REST API.
type StabilityClient struct {
	apiKey  string
	baseURL string
	engine  string
	client  *http.Client
}

// NewStabilityClient creates a new Stability AI client.
func NewStabilityClient(cfg StabilityConfig) *StabilityClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = StabilityBaseURL
	}
	if cfg.Engine == "" {
		cfg.Engine = stabilityDefaultEngine
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	return &StabilityClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		engine:  cfg.Engine,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *StabilityClient) Name() string {
	return StabilityName
}

// GenerateImage renders a single image from a prompt.
func (c *StabilityClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	width, height := parseSize(req.Size)

	body := stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: req.Prompt, Weight: 1.0}},
		Width:       width,
		Height:      height,
		Samples:     1,
		CfgScale:    7,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", c.baseURL, c.engine)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Provider: StabilityName,
			Kind:     classifyTransportErr(err),
			Message:  err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Provider: StabilityName,
			Kind:     KindNetwork,
			Message:  fmt.Sprintf("failed to read response: %v", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Provider: StabilityName,
			Kind:     classifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(respBody),
		}
	}

	var stResp stabilityResponse
	if err := json.Unmarshal(respBody, &stResp); err != nil {
		return nil, &APIError{
			Provider: StabilityName,
			Kind:     KindServer,
			Message:  fmt.Sprintf("failed to unmarshal response: %v", err),
		}
	}
	if len(stResp.Artifacts) == 0 {
		return nil, &APIError{
			Provider: StabilityName,
			Kind:     KindServer,
			Message:  "no artifacts in response",
		}
	}

	data, err := base64.StdEncoding.DecodeString(stResp.Artifacts[0].Base64)
	if err != nil {
		return nil, &APIError{
			Provider: StabilityName,
			Kind:     KindServer,
			Message:  fmt.Sprintf("failed to decode image payload: %v", err),
		}
	}

	return &ImageResult{
		Data:      data,
		Provider:  StabilityName,
		ModelUsed: c.engine,
		RequestID: requestID,
		Duration:  time.Since(start),
	}, nil
}

// parseSize converts "1024x1024" into width and height, defaulting to 1024.
func parseSize(size string) (int, int) {
	parts := strings.SplitN(size, "x", 2)
	if len(parts) != 2 {
		return 1024, 1024
	}
	w, werr := strconv.Atoi(parts[0])
	h, herr := strconv.Atoi(parts[1])
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return 1024, 1024
	}
	return w, h
}

// Stability API types

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Samples     int               `json:"samples"`
	CfgScale    int               `json:"cfg_scale"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

// Verify interface
var _ ImageClient = (*StabilityClient)(nil)
