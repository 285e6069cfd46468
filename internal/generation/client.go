package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Client sends a single prompt to a model.
type Client interface {
	// GetResponse returns the model's answer with any reasoning removed.
	GetResponse(ctx context.Context, prompt string) (string, error)

	// GetResponseWithCOT returns the answer and the model's reasoning
	// ("chain of thought") separately. COT is empty when the model produced
	// none.
	GetResponseWithCOT(ctx context.Context, prompt string) (*COTResponse, error)
}

// COTResponse is an answer paired with the reasoning that produced it.
type COTResponse struct {
	Answer string `json:"answer"`
	COT    string `json:"cot"`
}

// ModelInfo selects a provider and model for a task and carries the
// sampling parameters. It is stored as the task's model info.
type ModelInfo struct {
	ProviderID  string   `json:"provider_id" validate:"required"`
	Endpoint    string   `json:"endpoint,omitempty" validate:"omitempty,url"`
	APIKey      string   `json:"api_key,omitempty"`
	ModelName   string   `json:"model_name" validate:"required"`
	Temperature *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"max_tokens,omitempty" validate:"gte=0"`
	TopP        *float32 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
}

var validate = validator.New()

// ParseModelInfo decodes and validates raw model info.
func ParseModelInfo(raw json.RawMessage) (ModelInfo, error) {
	var info ModelInfo
	if len(raw) == 0 {
		return info, fmt.Errorf("%w: model info is required", ErrInvalidConfig)
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return info, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	info.ProviderID = strings.ToLower(strings.TrimSpace(info.ProviderID))
	if err := info.Validate(); err != nil {
		return info, err
	}
	return info, nil
}

// Validate checks the model info's fields.
func (m ModelInfo) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// String identifies the model without exposing its credentials.
func (m ModelInfo) String() string {
	return fmt.Sprintf("%s/%s", m.ProviderID, m.ModelName)
}
