package config

import (
	"fmt"
	"time"

	"github.com/bookforge/bookforge/internal/providers"
)

// Config holds bookforge configuration.
// Loaded from config.yaml with BOOKFORGE_ environment overrides.
type Config struct {
	Book             BookCfg                       `mapstructure:"book" yaml:"book"`
	Generation       GenerationCfg                 `mapstructure:"generation" yaml:"generation"`
	Concurrency      ConcurrencyCfg                `mapstructure:"concurrency" yaml:"concurrency"`
	Retry            RetryCfg                      `mapstructure:"retry" yaml:"retry"`
	ContentProviders map[string]ContentProviderCfg `mapstructure:"content_providers" yaml:"content_providers"`
	ImageProviders   map[string]ImageProviderCfg   `mapstructure:"image_providers" yaml:"image_providers"`
	Defaults         DefaultsCfg                   `mapstructure:"defaults" yaml:"defaults"`
	Output           OutputCfg                     `mapstructure:"output" yaml:"output"`
	Cache            CacheCfg                      `mapstructure:"cache" yaml:"cache"`
}

// BookCfg describes the book being generated.
type BookCfg struct {
	Author   string `mapstructure:"author" yaml:"author"`
	Language string `mapstructure:"language" yaml:"language"` // ISO 639-1 code
	Type     string `mapstructure:"type" yaml:"type"`         // "scientific", "educational", "popular"
	Audience string `mapstructure:"audience" yaml:"audience"`
}

// GenerationCfg holds model parameters for the content stages.
type GenerationCfg struct {
	Model        string  `mapstructure:"model" yaml:"model"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	ChapterWords int     `mapstructure:"chapter_words" yaml:"chapter_words"` // Target words per chapter
	MinChapters  int     `mapstructure:"min_chapters" yaml:"min_chapters"`
	MaxChapters  int     `mapstructure:"max_chapters" yaml:"max_chapters"`
	SectionChars int     `mapstructure:"section_chars" yaml:"section_chars"` // Input chars per chapter section
	Images       bool    `mapstructure:"images" yaml:"images"`               // Generate cover + illustrations
}

// ConcurrencyCfg controls chapter dispatch.
type ConcurrencyCfg struct {
	MaxWorkers int  `mapstructure:"max_workers" yaml:"max_workers"`
	Parallel   bool `mapstructure:"parallel" yaml:"parallel"`
	UseCache   bool `mapstructure:"use_cache" yaml:"use_cache"`
}

// RetryCfg controls the retry schedule for provider calls.
type RetryCfg struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier" yaml:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	// RecoverableKinds lists the error kinds worth retrying. Retry behavior
	// is configured here, never inferred from error message text.
	RecoverableKinds []string `mapstructure:"recoverable_kinds" yaml:"recoverable_kinds"`
}

// ErrorKinds converts the configured recoverable kinds to the provider taxonomy.
func (r RetryCfg) ErrorKinds() []providers.ErrorKind {
	if len(r.RecoverableKinds) == 0 {
		return providers.DefaultRecoverableKinds
	}
	kinds := make([]providers.ErrorKind, 0, len(r.RecoverableKinds))
	for _, s := range r.RecoverableKinds {
		kinds = append(kinds, providers.ParseErrorKind(s))
	}
	return kinds
}

// ContentProviderCfg configures a text generation provider.
type ContentProviderCfg struct {
	Type       string  `mapstructure:"type" yaml:"type"`             // "openai", "openrouter"
	Model      string  `mapstructure:"model" yaml:"model"`           // Default model
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"`       // Supports ${ENV_VAR} syntax
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	MaxRetries int     `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSec int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
}

// ImageProviderCfg configures an image generation provider.
type ImageProviderCfg struct {
	Type       string `mapstructure:"type" yaml:"type"` // "openai", "stability"
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	Size       string `mapstructure:"size" yaml:"size"`
	TimeoutSec int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg selects which providers the pipeline uses.
type DefaultsCfg struct {
	ContentProvider string `mapstructure:"content_provider" yaml:"content_provider"`
	ImageProvider   string `mapstructure:"image_provider" yaml:"image_provider"`
}

// OutputCfg controls formatting and packaging.
type OutputCfg struct {
	Formats []string `mapstructure:"formats" yaml:"formats"` // "pdf", "epub", "html"
	Dir     string   `mapstructure:"dir" yaml:"dir"`         // Empty means <home>/output

	// FailedChapterLimit aborts packaging when more than this many chapters
	// failed. -1 disables the threshold; failed chapters become placeholders.
	FailedChapterLimit int `mapstructure:"failed_chapter_limit" yaml:"failed_chapter_limit"`
}

// CacheCfg controls the generation cache backing store.
type CacheCfg struct {
	Dir string `mapstructure:"dir" yaml:"dir"` // Empty means <home>/cache
}

var validFormats = map[string]bool{"pdf": true, "epub": true, "html": true}

// Validate checks the configuration once at pipeline start.
func (c *Config) Validate() error {
	if c.Concurrency.MaxWorkers < 1 {
		return fmt.Errorf("concurrency.max_workers must be >= 1, got %d", c.Concurrency.MaxWorkers)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %g", c.Retry.Multiplier)
	}
	if c.Generation.MinChapters < 1 || c.Generation.MaxChapters < c.Generation.MinChapters {
		return fmt.Errorf("generation chapter bounds invalid: min=%d max=%d",
			c.Generation.MinChapters, c.Generation.MaxChapters)
	}
	if len(c.Output.Formats) == 0 {
		return fmt.Errorf("output.formats must list at least one format")
	}
	for _, f := range c.Output.Formats {
		if !validFormats[f] {
			return fmt.Errorf("unknown output format: %s", f)
		}
	}
	if _, ok := c.ContentProviders[c.Defaults.ContentProvider]; !ok {
		return fmt.Errorf("defaults.content_provider %q is not configured", c.Defaults.ContentProvider)
	}
	if c.Generation.Images && c.Defaults.ImageProvider != "" {
		if _, ok := c.ImageProviders[c.Defaults.ImageProvider]; !ok {
			return fmt.Errorf("defaults.image_provider %q is not configured", c.Defaults.ImageProvider)
		}
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Book: BookCfg{
			Author:   "Bookforge",
			Language: "en",
			Type:     "educational",
			Audience: "general",
		},
		Generation: GenerationCfg{
			Model:        "gpt-4o",
			Temperature:  0.7,
			MaxTokens:    4000,
			ChapterWords: 2000,
			MinChapters:  5,
			MaxChapters:  8,
			SectionChars: 2000,
			Images:       false,
		},
		Concurrency: ConcurrencyCfg{
			MaxWorkers: 3,
			Parallel:   true,
			UseCache:   true,
		},
		Retry: RetryCfg{
			MaxAttempts:      3,
			BaseDelay:        time.Second,
			Multiplier:       2.0,
			MaxDelay:         30 * time.Second,
			RecoverableKinds: []string{"rate_limited", "timeout", "network", "server"},
		},
		ContentProviders: map[string]ContentProviderCfg{
			"openai": {
				Type:       "openai",
				Model:      "gpt-4o",
				APIKey:     "${OPENAI_API_KEY}",
				RateLimit:  2.0,
				MaxRetries: 3,
				TimeoutSec: 120,
				Enabled:    true,
			},
			"openrouter": {
				Type:       "openrouter",
				Model:      "anthropic/claude-3.5-sonnet",
				APIKey:     "${OPENROUTER_API_KEY}",
				RateLimit:  2.0,
				MaxRetries: 3,
				TimeoutSec: 120,
				Enabled:    false,
			},
		},
		ImageProviders: map[string]ImageProviderCfg{
			"openai": {
				Type:       "openai",
				Model:      "dall-e-3",
				APIKey:     "${OPENAI_API_KEY}",
				Size:       "1024x1024",
				TimeoutSec: 300,
				Enabled:    true,
			},
			"stability": {
				Type:       "stability",
				Model:      "stable-diffusion-xl-1024-v1-0",
				APIKey:     "${STABILITY_API_KEY}",
				Size:       "1024x1024",
				TimeoutSec: 300,
				Enabled:    false,
			},
		},
		Defaults: DefaultsCfg{
			ContentProvider: "openai",
			ImageProvider:   "openai",
		},
		Output: OutputCfg{
			Formats:            []string{"pdf", "epub", "html"},
			FailedChapterLimit: -1,
		},
		Cache: CacheCfg{},
	}
}

// GetContentProvider returns a content provider config by name.
func (c *Config) GetContentProvider(name string) (ContentProviderCfg, bool) {
	cfg, ok := c.ContentProviders[name]
	return cfg, ok
}

// GetImageProvider returns an image provider config by name.
func (c *Config) GetImageProvider(name string) (ImageProviderCfg, bool) {
	cfg, ok := c.ImageProviders[name]
	return cfg, ok
}
