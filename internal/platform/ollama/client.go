package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/phrazzld/dataset-forge/internal/generation"
)

// ProviderID is the provider name tasks use to select Ollama.
const ProviderID = "ollama"

// DefaultHost is used when neither the task nor the configuration names one.
const DefaultHost = "http://127.0.0.1:11434"

type generator interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
}

// Client sends prompts to one Ollama model.
type Client struct {
	api  generator
	info generation.ModelInfo
}

// Ensure Client implements generation.Client
var _ generation.Client = (*Client)(nil)

// NewConstructor returns a generation.Constructor that talks to host unless
// the task's model info names its own endpoint.
func NewConstructor(host string, httpClient *http.Client) generation.Constructor {
	return func(_ context.Context, info generation.ModelInfo) (generation.Client, error) {
		endpoint := info.Endpoint
		if endpoint == "" {
			endpoint = host
		}
		return New(endpoint, info, httpClient)
	}
}

// New creates a Client for the server at host.
func New(host string, info generation.ModelInfo, httpClient *http.Client) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	base, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid ollama host %q", generation.ErrInvalidConfig, host)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{api: api.NewClient(base, httpClient), info: info}, nil
}

// GetResponse implements generation.Client.
func (c *Client) GetResponse(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// GetResponseWithCOT implements generation.Client.
func (c *Client) GetResponseWithCOT(ctx context.Context, prompt string) (*generation.COTResponse, error) {
	return c.generate(ctx, prompt)
}

func (c *Client) generate(ctx context.Context, prompt string) (*generation.COTResponse, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   c.info.ModelName,
		Prompt:  prompt,
		Stream:  &stream,
		Options: c.options(),
	}

	var text, thinking strings.Builder
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		thinking.WriteString(r.Thinking)
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}

	answer, inline := generation.SplitThinking(text.String())
	cot := strings.TrimSpace(thinking.String())
	if cot == "" {
		cot = inline
	}
	if answer == "" {
		return nil, fmt.Errorf("%w: empty answer", generation.ErrInvalidResponse)
	}
	return &generation.COTResponse{Answer: answer, COT: cot}, nil
}

func (c *Client) options() map[string]any {
	opts := map[string]any{}
	if c.info.Temperature != nil {
		opts["temperature"] = *c.info.Temperature
	}
	if c.info.TopP != nil {
		opts["top_p"] = *c.info.TopP
	}
	if c.info.MaxTokens > 0 {
		opts["num_predict"] = c.info.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if generation.TransientStatus(statusErr.StatusCode) {
			return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
		}
		return fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}

	// Connection refused and similar: the server may still be starting.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}
	return fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
}
