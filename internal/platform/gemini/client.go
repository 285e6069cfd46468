package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/dataset-forge/internal/generation"
	"google.golang.org/genai"
)

// ProviderID is the provider name tasks use to select Gemini.
const ProviderID = "gemini"

// contentGenerator is the subset of *genai.Models used by Client.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client sends prompts to one Gemini model.
type Client struct {
	models contentGenerator
	info   generation.ModelInfo
}

// Ensure Client implements generation.Client
var _ generation.Client = (*Client)(nil)

// New creates a Client for the model described by info. An Endpoint, when
// set, overrides the Gemini API base URL.
func New(ctx context.Context, info generation.ModelInfo) (generation.Client, error) {
	if info.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	cfg := &genai.ClientConfig{
		APIKey:  info.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if info.Endpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: info.Endpoint}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}
	return newClient(client.Models, info), nil
}

func newClient(models contentGenerator, info generation.ModelInfo) *Client {
	return &Client{models: models, info: info}
}

// GetResponse implements generation.Client.
func (c *Client) GetResponse(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generate(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// GetResponseWithCOT implements generation.Client. Thought parts are
// requested from the API; models that emit inline <think> blocks instead
// are handled too.
func (c *Client) GetResponseWithCOT(ctx context.Context, prompt string) (*generation.COTResponse, error) {
	return c.generate(ctx, prompt, true)
}

func (c *Client) generate(ctx context.Context, prompt string, withThoughts bool) (*generation.COTResponse, error) {
	resp, err := c.models.GenerateContent(ctx, c.info.ModelName, genai.Text(prompt), c.config(withThoughts))
	if err != nil {
		return nil, mapError(err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var answer, thoughts strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts.WriteString(part.Text)
			continue
		}
		answer.WriteString(part.Text)
	}

	text, inline := generation.SplitThinking(answer.String())
	cot := strings.TrimSpace(thoughts.String())
	if cot == "" {
		cot = inline
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty answer", generation.ErrInvalidResponse)
	}
	return &generation.COTResponse{Answer: text, COT: cot}, nil
}

func (c *Client) config(withThoughts bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: c.info.Temperature,
		TopP:        c.info.TopP,
	}
	if c.info.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.info.MaxTokens)
	}
	if withThoughts {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return cfg
}

// mapError classifies a Gemini API error.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if generation.TransientStatus(apiErr.Code) {
			return fmt.Errorf("%w: gemini %d: %s", generation.ErrTransientFailure, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%w: gemini %d: %s", generation.ErrGenerationFailed, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
}
