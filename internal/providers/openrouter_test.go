package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func openRouterTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenRouterClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOpenRouterClient(OpenRouterConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "test/model",
		Timeout:      5 * time.Second,
	})
	return server, client
}

func TestOpenRouterClient_Generate(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		var captured openRouterRequest
		_, client := openRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("unexpected auth header: %s", got)
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}

			json.NewEncoder(w).Encode(map[string]any{
				"id":    "gen-123",
				"model": "test/model",
				"choices": []map[string]any{
					{"message": map[string]string{"role": "assistant", "content": "Chapter text."}},
				},
				"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
			})
		})

		result, err := client.Generate(context.Background(), &ContentRequest{
			Prompt: "Write a chapter",
			System: "You are a book author",
			Params: ModelParams{Temperature: 0.7, MaxTokens: 2000},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Text != "Chapter text." {
			t.Errorf("unexpected text: %s", result.Text)
		}
		if result.TotalTokens != 30 {
			t.Errorf("expected 30 total tokens, got %d", result.TotalTokens)
		}
		if result.Provider != OpenRouterName {
			t.Errorf("unexpected provider: %s", result.Provider)
		}

		if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", captured.Messages)
		}
		if captured.Model != "test/model" {
			t.Errorf("expected default model, got %s", captured.Model)
		}
	})

	t.Run("rate limit carries retry-after", func(t *testing.T) {
		_, client := openRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
		})

		_, err := client.Generate(context.Background(), &ContentRequest{Prompt: "hi"})
		if err == nil {
			t.Fatal("expected error")
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %T", err)
		}
		if apiErr.Kind != KindRateLimited {
			t.Errorf("expected %s, got %s", KindRateLimited, apiErr.Kind)
		}
		if apiErr.RetryAfter != 7*time.Second {
			t.Errorf("expected 7s retry-after, got %s", apiErr.RetryAfter)
		}
	})

	t.Run("server error classified", func(t *testing.T) {
		_, client := openRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Generate(context.Background(), &ContentRequest{Prompt: "hi"})
		if KindOf(err) != KindServer {
			t.Errorf("expected %s, got %s", KindServer, KindOf(err))
		}
	})

	t.Run("auth error classified", func(t *testing.T) {
		_, client := openRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := client.Generate(context.Background(), &ContentRequest{Prompt: "hi"})
		if KindOf(err) != KindAuth {
			t.Errorf("expected %s, got %s", KindAuth, KindOf(err))
		}
	})

	t.Run("empty choices is a server error", func(t *testing.T) {
		_, client := openRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"id": "gen-1", "choices": []any{}})
		})

		_, err := client.Generate(context.Background(), &ContentRequest{Prompt: "hi"})
		if KindOf(err) != KindServer {
			t.Errorf("expected %s, got %s", KindServer, KindOf(err))
		}
	})

	t.Run("structured output parsed", func(t *testing.T) {
		_, client := openRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"id": "gen-2",
				"choices": []map[string]any{
					{"message": map[string]string{"role": "assistant", "content": `{"title":"My Book"}`}},
				},
			})
		})

		result, err := client.Generate(context.Background(), &ContentRequest{
			Prompt:         "metadata",
			ResponseFormat: &ResponseFormat{Type: "json_object"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ParsedJSON == nil {
			t.Fatal("expected parsed JSON")
		}

		var meta struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(result.ParsedJSON, &meta); err != nil {
			t.Fatalf("failed to unmarshal parsed JSON: %v", err)
		}
		if meta.Title != "My Book" {
			t.Errorf("unexpected title: %s", meta.Title)
		}
	})

	t.Run("malformed structured output rejected", func(t *testing.T) {
		_, client := openRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"id": "gen-3",
				"choices": []map[string]any{
					{"message": map[string]string{"role": "assistant", "content": "not json {"}},
				},
			})
		})

		_, err := client.Generate(context.Background(), &ContentRequest{
			Prompt:         "metadata",
			ResponseFormat: &ResponseFormat{Type: "json_object"},
		})
		if KindOf(err) != KindServer {
			t.Errorf("expected %s, got %s", KindServer, KindOf(err))
		}
	})
}

func TestOpenRouterClient_Defaults(t *testing.T) {
	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k"})

	if client.Name() != OpenRouterName {
		t.Errorf("unexpected name: %s", client.Name())
	}
	if client.RequestsPerSecond() != 1.0 {
		t.Errorf("expected default 1.0 rps, got %f", client.RequestsPerSecond())
	}
	if client.MaxRetries() != 3 {
		t.Errorf("expected default 3 retries, got %d", client.MaxRetries())
	}
}
