package providers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ContentProviderConfig configures a text generation client.
type ContentProviderConfig struct {
	Type       string  // "openai", "openrouter"
	Model      string  // Default model
	APIKey     string  // Resolved key (no ${ENV_VAR} references at this point)
	RateLimit  float64 // Requests per second
	MaxRetries int
	TimeoutSec int
	Enabled    bool
}

// ImageProviderConfig configures an image generation client.
type ImageProviderConfig struct {
	Type       string // "openai", "stability"
	Model      string
	APIKey     string
	Size       string
	TimeoutSec int
	Enabled    bool
}

// RegistryConfig drives config-based registry population.
type RegistryConfig struct {
	ContentProviders map[string]ContentProviderConfig
	ImageProviders   map[string]ImageProviderConfig
}

// Registry holds references to content and image clients.
// It supports config-driven instantiation and thread-safe access.
type Registry struct {
	mu             sync.RWMutex
	contentClients map[string]ContentClient
	imageClients   map[string]ImageClient
	logger         *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		contentClients: make(map[string]ContentClient),
		imageClients:   make(map[string]ImageClient),
		logger:         slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterContent registers a content client by name.
func (r *Registry) RegisterContent(name string, client ContentClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentClients[name] = client
	r.logger.Debug("registered content client", "name", name)
}

// RegisterImage registers an image client by name.
func (r *Registry) RegisterImage(name string, client ImageClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imageClients[name] = client
	r.logger.Debug("registered image client", "name", name)
}

// GetContent returns a content client by name.
func (r *Registry) GetContent(name string) (ContentClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.contentClients[name]
	if !ok {
		return nil, fmt.Errorf("content client not found: %s", name)
	}
	return client, nil
}

// GetImage returns an image client by name.
func (r *Registry) GetImage(name string) (ImageClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.imageClients[name]
	if !ok {
		return nil, fmt.Errorf("image client not found: %s", name)
	}
	return client, nil
}

// ContentNames returns the names of registered content clients.
func (r *Registry) ContentNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.contentClients))
	for name := range r.contentClients {
		names = append(names, name)
	}
	return names
}

// LoadFromConfig instantiates and registers all enabled providers.
func (r *Registry) LoadFromConfig(cfg RegistryConfig) error {
	for name, pc := range cfg.ContentProviders {
		if !pc.Enabled {
			continue
		}
		client, err := buildContentClient(pc)
		if err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
		r.RegisterContent(name, client)
	}

	for name, ic := range cfg.ImageProviders {
		if !ic.Enabled {
			continue
		}
		client, err := buildImageClient(ic)
		if err != nil {
			return fmt.Errorf("image provider %q: %w", name, err)
		}
		r.RegisterImage(name, client)
	}

	return nil
}

func buildContentClient(pc ContentProviderConfig) (ContentClient, error) {
	timeout := time.Duration(pc.TimeoutSec) * time.Second
	switch pc.Type {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.Model,
			RPS:          pc.RateLimit,
			MaxRetries:   pc.MaxRetries,
			Timeout:      timeout,
		}), nil
	case "openrouter":
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.Model,
			RPS:          pc.RateLimit,
			MaxRetries:   pc.MaxRetries,
			Timeout:      timeout,
		}), nil
	case "mock":
		return NewMockContentClient(), nil
	default:
		return nil, fmt.Errorf("unknown content provider type: %s", pc.Type)
	}
}

func buildImageClient(ic ImageProviderConfig) (ImageClient, error) {
	timeout := time.Duration(ic.TimeoutSec) * time.Second
	switch ic.Type {
	case "openai":
		return NewOpenAIImageClient(OpenAIImageConfig{
			APIKey:  ic.APIKey,
			Model:   ic.Model,
			Size:    ic.Size,
			Timeout: timeout,
		}), nil
	case "stability":
		return NewStabilityClient(StabilityConfig{
			APIKey:  ic.APIKey,
			Engine:  ic.Model,
			Timeout: timeout,
		}), nil
	case "mock":
		return &MockImageClient{}, nil
	default:
		return nil, fmt.Errorf("unknown image provider type: %s", ic.Type)
	}
}
