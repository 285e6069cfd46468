package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/redact"
)

// WithTimeout bounds every request made through the client. Deadline
// expiry is reported as a transient failure so batch retries apply.
func WithTimeout(timeout time.Duration) func(Client, ModelInfo) Client {
	return func(next Client, _ ModelInfo) Client {
		if timeout <= 0 {
			return next
		}
		return &timeoutClient{next: next, timeout: timeout}
	}
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func (c *timeoutClient) GetResponse(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	answer, err := c.next.GetResponse(ctx, prompt)
	return answer, c.mapDeadline(ctx, err)
}

func (c *timeoutClient) GetResponseWithCOT(ctx context.Context, prompt string) (*COTResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.next.GetResponseWithCOT(ctx, prompt)
	return resp, c.mapDeadline(ctx, err)
}

func (c *timeoutClient) mapDeadline(ctx context.Context, err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: no answer within %s: %w", ErrTransientFailure, c.timeout, err)
	}
	return err
}

// WithLogging logs each request's duration and outcome. Prompts and answers
// are never logged; errors are redacted.
func WithLogging(base *slog.Logger) func(Client, ModelInfo) Client {
	return func(next Client, info ModelInfo) Client {
		return &loggingClient{next: next, logger: base, model: info.String()}
	}
}

type loggingClient struct {
	next   Client
	logger *slog.Logger
	model  string
}

func (c *loggingClient) GetResponse(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	answer, err := c.next.GetResponse(ctx, prompt)
	c.log(ctx, "response", start, len(prompt), len(answer), err)
	return answer, err
}

func (c *loggingClient) GetResponseWithCOT(ctx context.Context, prompt string) (*COTResponse, error) {
	start := time.Now()
	resp, err := c.next.GetResponseWithCOT(ctx, prompt)
	answerLen := 0
	if resp != nil {
		answerLen = len(resp.Answer)
	}
	c.log(ctx, "response_with_cot", start, len(prompt), answerLen, err)
	return resp, err
}

func (c *loggingClient) log(ctx context.Context, call string, start time.Time, promptLen, answerLen int, err error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	attrs := []any{
		slog.String("model", c.model),
		slog.String("call", call),
		slog.Duration("duration", time.Since(start)),
		slog.Int("prompt_chars", promptLen),
	}
	if err != nil {
		log.WarnContext(ctx, "model request failed",
			append(attrs, slog.String("error", redact.Error(err)), slog.Bool("transient", IsTransient(err)))...)
		return
	}
	log.DebugContext(ctx, "model request completed", append(attrs, slog.Int("answer_chars", answerLen))...)
}
