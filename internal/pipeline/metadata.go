package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bookforge/bookforge/internal/book"
	"github.com/bookforge/bookforge/internal/metrics"
	"github.com/bookforge/bookforge/internal/prompts"
	"github.com/bookforge/bookforge/internal/providers"
	"github.com/bookforge/bookforge/internal/retry"
)

// Structured-output schemas for the metadata stages. Each prompt asks the
// model for a JSON object; the response is validated locally before use.
const (
	titleSchemaJSON = `{
		"type": "object",
		"properties": {"title": {"type": "string", "minLength": 1}},
		"required": ["title"]
	}`

	descriptionSchemaJSON = `{
		"type": "object",
		"properties": {"description": {"type": "string", "minLength": 1}},
		"required": ["description"]
	}`

	outlineSchemaJSON = `{
		"type": "object",
		"properties": {
			"chapters": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"title": {"type": "string", "minLength": 1},
						"summary": {"type": "string"}
					},
					"required": ["title"]
				}
			}
		},
		"required": ["chapters"]
	}`
)

var (
	titleSchema       = jsonschema.MustCompileString("title.json", titleSchemaJSON)
	descriptionSchema = jsonschema.MustCompileString("description.json", descriptionSchemaJSON)
	outlineSchema     = jsonschema.MustCompileString("outline.json", outlineSchemaJSON)
)

// generateStructured runs one retried provider call that must return JSON
// matching schema, and decodes the validated document into out.
func (p *Pipeline) generateStructured(ctx context.Context, stage, prompt string, schema *jsonschema.Schema, schemaRaw string, out any) error {
	req := &providers.ContentRequest{
		Prompt: prompt,
		System: prompts.AuthorSystem,
		Params: providers.ModelParams{
			Model:       p.cfg.Generation.Model,
			Temperature: p.cfg.Generation.Temperature,
			MaxTokens:   p.cfg.Generation.MaxTokens,
		},
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: json.RawMessage(schemaRaw),
		},
	}

	attempts := 0
	result, err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) (*providers.ContentResult, error) {
		attempts++
		res, cerr := p.content.Generate(ctx, req)
		if cerr != nil {
			return nil, cerr
		}

		raw := res.ParsedJSON
		if len(raw) == 0 {
			raw = extractJSON(res.Text)
		}
		if len(raw) == 0 {
			return nil, &providers.APIError{
				Provider: p.content.Name(),
				Kind:     providers.KindServer,
				Message:  fmt.Sprintf("%s: response is not JSON", stage),
			}
		}

		var doc any
		if jerr := json.Unmarshal(raw, &doc); jerr != nil {
			return nil, &providers.APIError{
				Provider: p.content.Name(),
				Kind:     providers.KindServer,
				Message:  fmt.Sprintf("%s: invalid JSON: %v", stage, jerr),
			}
		}
		if verr := schema.Validate(doc); verr != nil {
			return nil, &providers.APIError{
				Provider: p.content.Name(),
				Kind:     providers.KindServer,
				Message:  fmt.Sprintf("%s: output does not match schema: %v", stage, verr),
			}
		}

		res.ParsedJSON = raw
		return res, nil
	})

	m := metrics.Metric{Stage: stage, Provider: p.content.Name(), Attempts: attempts}
	if err != nil {
		m.ErrorType = string(providers.KindOf(err))
		p.recorder.Record(m)
		return fmt.Errorf("%s generation failed: %w", stage, err)
	}

	m.Success = true
	m.Model = result.ModelUsed
	m.PromptTokens = result.PromptTokens
	m.CompletionTokens = result.CompletionTokens
	m.TotalTokens = result.TotalTokens
	m.Duration = result.Duration
	p.recorder.Record(m)

	if err := json.Unmarshal(result.ParsedJSON, out); err != nil {
		return fmt.Errorf("%s generation returned undecodable JSON: %w", stage, err)
	}
	return nil
}

// generateTitle produces the book title from the input content.
func (p *Pipeline) generateTitle(ctx context.Context, content string) (string, error) {
	prompt, err := prompts.Title(truncate(content, 3000))
	if err != nil {
		return "", fmt.Errorf("failed to render title prompt: %w", err)
	}

	var parsed struct {
		Title string `json:"title"`
	}
	if err := p.generateStructured(ctx, "title", prompt, titleSchema, titleSchemaJSON, &parsed); err != nil {
		return "", err
	}
	return strings.TrimSpace(parsed.Title), nil
}

// generateDescription produces the back-cover description.
func (p *Pipeline) generateDescription(ctx context.Context, title, content string) (string, error) {
	prompt, err := prompts.Description(title, truncate(content, 3000))
	if err != nil {
		return "", fmt.Errorf("failed to render description prompt: %w", err)
	}

	var parsed struct {
		Description string `json:"description"`
	}
	if err := p.generateStructured(ctx, "description", prompt, descriptionSchema, descriptionSchemaJSON, &parsed); err != nil {
		return "", err
	}
	return strings.TrimSpace(parsed.Description), nil
}

// generateOutline produces the chapter outline with the requested count.
func (p *Pipeline) generateOutline(ctx context.Context, title, content string, chapterCount int) (*book.Outline, error) {
	prompt, err := prompts.Outline(prompts.OutlineData{
		Title:        title,
		ChapterCount: chapterCount,
		Content:      truncate(content, 4000),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render outline prompt: %w", err)
	}

	var outline book.Outline
	if err := p.generateStructured(ctx, "outline", prompt, outlineSchema, outlineSchemaJSON, &outline); err != nil {
		return nil, err
	}

	// Models occasionally return a different count than requested; trim the
	// excess and pad the shortfall so chapter/section pairing stays aligned.
	if len(outline.Chapters) > chapterCount {
		outline.Chapters = outline.Chapters[:chapterCount]
	}
	for len(outline.Chapters) < chapterCount {
		outline.Chapters = append(outline.Chapters, book.OutlineChapter{
			Title: fmt.Sprintf("Chapter %d", len(outline.Chapters)+1),
		})
	}

	return &outline, nil
}

// extractJSON recovers a JSON object from model output that wraps it in
// markdown fences or surrounding prose.
func extractJSON(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil
	}

	candidate := text[start : end+1]
	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return normalized
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
