package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/dataset-forge/internal/generation"
)

// Ensure MockClient implements generation.Client
var _ generation.Client = (*MockClient)(nil)

// MockClient implements generation.Client for testing
type MockClient struct {
	// Custom behavior functions
	GetResponseFn        func(ctx context.Context, prompt string) (string, error)
	GetResponseWithCOTFn func(ctx context.Context, prompt string) (*generation.COTResponse, error)

	// Default response values
	Answer string
	COT    string
	Err    error

	calls struct {
		mu      sync.Mutex
		prompts []string
		cot     int
	}
}

// GetResponse implements the generation.Client interface
func (m *MockClient) GetResponse(ctx context.Context, prompt string) (string, error) {
	m.record(prompt, false)

	if m.GetResponseFn != nil {
		return m.GetResponseFn(ctx, prompt)
	}
	return m.Answer, m.Err
}

// GetResponseWithCOT implements the generation.Client interface. Without a
// dedicated function it falls back to GetResponseFn with an empty COT.
func (m *MockClient) GetResponseWithCOT(ctx context.Context, prompt string) (*generation.COTResponse, error) {
	m.record(prompt, true)

	if m.GetResponseWithCOTFn != nil {
		return m.GetResponseWithCOTFn(ctx, prompt)
	}
	if m.GetResponseFn != nil {
		answer, err := m.GetResponseFn(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return &generation.COTResponse{Answer: answer}, nil
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &generation.COTResponse{Answer: m.Answer, COT: m.COT}, nil
}

func (m *MockClient) record(prompt string, cot bool) {
	m.calls.mu.Lock()
	defer m.calls.mu.Unlock()
	m.calls.prompts = append(m.calls.prompts, prompt)
	if cot {
		m.calls.cot++
	}
}

// Calls returns how many requests were made through either method.
func (m *MockClient) Calls() int {
	m.calls.mu.Lock()
	defer m.calls.mu.Unlock()
	return len(m.calls.prompts)
}

// COTCalls returns how many requests went through GetResponseWithCOT.
func (m *MockClient) COTCalls() int {
	m.calls.mu.Lock()
	defer m.calls.mu.Unlock()
	return m.calls.cot
}

// Prompts returns a copy of every prompt received, in arrival order.
func (m *MockClient) Prompts() []string {
	m.calls.mu.Lock()
	defer m.calls.mu.Unlock()
	return append([]string(nil), m.calls.prompts...)
}

// Reset clears call tracking.
func (m *MockClient) Reset() {
	m.calls.mu.Lock()
	defer m.calls.mu.Unlock()
	m.calls.prompts = nil
	m.calls.cot = 0
}

// ClientOption configures a MockClient
type ClientOption func(*MockClient)

// WithAnswer sets the default answer and reasoning
func WithAnswer(answer, cot string) ClientOption {
	return func(m *MockClient) {
		m.Answer = answer
		m.COT = cot
	}
}

// WithError sets the default error returned by both methods
func WithError(err error) ClientOption {
	return func(m *MockClient) {
		m.Err = err
	}
}

// WithResponseFn sets a custom function for GetResponse
func WithResponseFn(fn func(ctx context.Context, prompt string) (string, error)) ClientOption {
	return func(m *MockClient) {
		m.GetResponseFn = fn
	}
}

// WithCOTFn sets a custom function for GetResponseWithCOT
func WithCOTFn(fn func(ctx context.Context, prompt string) (*generation.COTResponse, error)) ClientOption {
	return func(m *MockClient) {
		m.GetResponseWithCOTFn = fn
	}
}

// NewMockClient creates a new MockClient with the given options
func NewMockClient(opts ...ClientOption) *MockClient {
	m := &MockClient{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure MockFactory implements generation.Factory
var _ generation.Factory = (*MockFactory)(nil)

// MockFactory hands out a fixed client and records the model info it was
// asked for.
type MockFactory struct {
	Client generation.Client
	Err    error

	mu    sync.Mutex
	infos []generation.ModelInfo
}

// NewMockFactory creates a MockFactory returning client.
func NewMockFactory(client generation.Client) *MockFactory {
	return &MockFactory{Client: client}
}

// NewClient implements the generation.Factory interface
func (f *MockFactory) NewClient(_ context.Context, info generation.ModelInfo) (generation.Client, error) {
	f.mu.Lock()
	f.infos = append(f.infos, info)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return f.Client, nil
}

// Requested returns the model infos passed to NewClient.
func (f *MockFactory) Requested() []generation.ModelInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]generation.ModelInfo(nil), f.infos...)
}
