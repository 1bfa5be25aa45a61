package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/parley/internal/config"
)

// Registry holds the configured providers by name and decides which one
// serves a channel. Every provider is wrapped with a per-backend rate
// limiter so a busy server cannot hammer an API.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
}

// NewRegistry builds the three standard backends from config. Backends
// without an API key are skipped; selecting one later fails with
// ErrUnknownProvider.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		fallback:  cfg.Providers.Default,
	}

	if c := cfg.Providers.OpenAI; c.APIKey != "" {
		r.register(NewOpenAIProvider("openai", c.APIKey, c.BaseURL, c.Model, c.MaxTokens, c.Temperature), c.RateLimitPerMinute)
	}
	if c := cfg.Providers.Anthropic; c.APIKey != "" {
		r.register(NewAnthropicProvider(c.APIKey, c.Model, c.MaxTokens, c.Temperature), c.RateLimitPerMinute)
	}
	if c := cfg.Providers.DeepSeek; c.APIKey != "" {
		r.register(NewDeepSeekProvider(c.APIKey, c.BaseURL, c.Model, c.MaxTokens, c.Temperature), c.RateLimitPerMinute)
	}

	slog.Info("provider registry ready", "providers", r.Names(), "default", r.fallback)
	return r
}

func (r *Registry) register(p Provider, perMinute int) {
	// A zero or negative limit means no throttling.
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = &rateLimited{Provider: p, limiter: limiter}
}

// Register adds or replaces a provider without rate limiting. Used by tests.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Default returns the process-wide default provider.
func (r *Registry) Default() (Provider, error) {
	return r.Get(r.fallback)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

// rateLimited wraps a provider with a token-bucket limiter. Chat blocks
// until a slot is available or the context expires.
type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

func (p *rateLimited) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit wait: %w", p.Name(), err)
	}
	return p.Provider.Chat(ctx, req)
}
