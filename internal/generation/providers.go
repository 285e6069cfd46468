package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a Client for a task's model.
type Factory interface {
	NewClient(ctx context.Context, info ModelInfo) (Client, error)
}

// Constructor builds a provider client.
type Constructor func(ctx context.Context, info ModelInfo) (Client, error)

// Providers is a Factory that dispatches on ModelInfo.ProviderID. Providers
// without a registered constructor go to the fallback when one is set,
// which is how OpenAI-compatible endpoints (OpenRouter, DeepSeek, vLLM, ...)
// are reached.
type Providers struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	fallback     Constructor
	decorators   []func(Client, ModelInfo) Client
}

// Ensure Providers implements Factory
var _ Factory = (*Providers)(nil)

// NewProviders creates an empty Providers.
func NewProviders() *Providers {
	return &Providers{constructors: make(map[string]Constructor)}
}

// Register binds a provider ID (case-insensitive) to a constructor.
func (p *Providers) Register(providerID string, c Constructor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.constructors[strings.ToLower(providerID)] = c
}

// SetFallback sets the constructor used for unregistered providers that
// name an endpoint.
func (p *Providers) SetFallback(c Constructor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = c
}

// Use wraps every client built from now on, outermost last.
func (p *Providers) Use(decorator func(Client, ModelInfo) Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decorators = append(p.decorators, decorator)
}

// IDs lists the registered provider IDs.
func (p *Providers) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.constructors))
	for id := range p.constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewClient validates info and builds the matching provider client.
func (p *Providers) NewClient(ctx context.Context, info ModelInfo) (Client, error) {
	info.ProviderID = strings.ToLower(strings.TrimSpace(info.ProviderID))
	if err := info.Validate(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	constructor, ok := p.constructors[info.ProviderID]
	if !ok && info.Endpoint != "" {
		constructor, ok = p.fallback, p.fallback != nil
	}
	decorators := append([]func(Client, ModelInfo) Client(nil), p.decorators...)
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, info.ProviderID)
	}

	client, err := constructor(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", info, err)
	}
	for _, decorate := range decorators {
		client = decorate(client, info)
	}
	return client, nil
}
