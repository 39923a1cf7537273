package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Request is a single completion request from an agent.
type Request struct {
	// System is the agent's persona instructions.
	System string
	// Prompt is the user-turn content.
	Prompt string
	// Model optionally overrides the client's default model.
	Model anthropic.Model
}

// Response is the model's reply.
type Response struct {
	// Text is the concatenated text content of the reply.
	Text string
	// InputTokens and OutputTokens report usage for this call.
	InputTokens  int64
	OutputTokens int64
}

// Completer is the interface agents use to call the model. It exists so
// agents can be tested against a fake without network access.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Complete sends a single-turn request and returns the text response.
// Transient API errors (429, 5xx, overloaded) are retried with exponential
// backoff up to the configured retry limit.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	} else if c.IsBedrock() {
		model = translateModelForBedrock(model)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.inner.Messages.New(ctx, params)
		if err != nil {
			lastErr = err
			if isTransient(err) {
				continue
			}
			return Response{}, fmt.Errorf("anthropic api: %w", err)
		}

		c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var text string
		for _, block := range resp.Content {
			if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
				text += variant.Text
			}
		}

		return Response{
			Text:         text,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}, nil
	}

	return Response{}, fmt.Errorf("anthropic api: retries exhausted: %w", lastErr)
}

// isTransient reports whether an API error is worth retrying.
func isTransient(err error) bool {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 500, 502, 503, 504, 529:
			return true
		}
		return false
	}
	// Network-level errors without an API status are treated as transient.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
