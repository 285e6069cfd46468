package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/phrazzld/dataset-forge/internal/generation"
	oai "github.com/sashabaranov/go-openai"
)

// ProviderID is the provider name tasks use to select OpenAI.
const ProviderID = "openai"

// Defaults fill in what a task's model info leaves out, typically from
// server configuration.
type Defaults struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// chatCompleter is the subset of *oai.Client used by Client.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req oai.ChatCompletionRequest) (oai.ChatCompletionResponse, error)
}

// Client sends prompts to one chat model.
type Client struct {
	api  chatCompleter
	info generation.ModelInfo
}

// Ensure Client implements generation.Client
var _ generation.Client = (*Client)(nil)

// NewConstructor returns a generation.Constructor that builds clients with
// defaults applied under each task's model info.
func NewConstructor(defaults Defaults) generation.Constructor {
	return func(_ context.Context, info generation.ModelInfo) (generation.Client, error) {
		return New(info, defaults)
	}
}

// New creates a Client for info.
func New(info generation.ModelInfo, defaults Defaults) (*Client, error) {
	apiKey := info.APIKey
	if apiKey == "" {
		apiKey = defaults.APIKey
	}
	baseURL := info.Endpoint
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("%w: an API key or endpoint is required", generation.ErrInvalidConfig)
	}

	cfg := oai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if defaults.HTTPClient != nil {
		cfg.HTTPClient = defaults.HTTPClient
	}
	return &Client{api: oai.NewClientWithConfig(cfg), info: info}, nil
}

// GetResponse implements generation.Client.
func (c *Client) GetResponse(ctx context.Context, prompt string) (string, error) {
	resp, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// GetResponseWithCOT implements generation.Client. The reasoning comes from
// the message's reasoning_content when the endpoint provides it (DeepSeek,
// OpenRouter), otherwise from inline <think> blocks.
func (c *Client) GetResponseWithCOT(ctx context.Context, prompt string) (*generation.COTResponse, error) {
	return c.complete(ctx, prompt)
}

func (c *Client) complete(ctx context.Context, prompt string) (*generation.COTResponse, error) {
	req := oai.ChatCompletionRequest{
		Model: c.info.ModelName,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.info.MaxTokens,
	}
	if c.info.Temperature != nil {
		req.Temperature = *c.info.Temperature
		// The request omits a zero temperature, which servers read as 1.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if c.info.TopP != nil {
		req.TopP = *c.info.TopP
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", generation.ErrInvalidResponse)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == oai.FinishReasonContentFilter {
		return nil, fmt.Errorf("%w: finish reason %s", generation.ErrContentBlocked, choice.FinishReason)
	}

	answer, inline := generation.SplitThinking(choice.Message.Content)
	cot := strings.TrimSpace(choice.Message.ReasoningContent)
	if cot == "" {
		cot = inline
	}
	if answer == "" {
		return nil, fmt.Errorf("%w: empty answer", generation.ErrInvalidResponse)
	}
	return &generation.COTResponse{Answer: answer, COT: cot}, nil
}

// mapError classifies an API error by HTTP status.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}

	status := 0
	var apiErr *oai.APIError
	var reqErr *oai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status != 0 && generation.TransientStatus(status) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}
	return fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
}
