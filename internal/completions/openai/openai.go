// Package openai implements completions.Provider against an
// OpenAI-compatible chat-completions endpoint.
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/openlot/openlot/core/internal/completions"
	"github.com/openlot/openlot/core/internal/model"
)

// Provider calls a chat-completions API with bearer auth.
type Provider struct {
	client *resty.Client
	model  string
}

// New builds a provider against baseURL (e.g. https://api.openai.com/v1)
// with a hard per-call timeout. apiKey may be empty for local gateways.
func New(baseURL, apiKey, completionModel string, timeout time.Duration) *Provider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Provider{client: c, model: completionModel}
}

type chatRequest struct {
	Model    string                `json:"model"`
	Messages []completions.Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message completions.Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete returns the first choice's content.
func (p *Provider) Complete(ctx context.Context, messages []completions.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.Wrap(model.ErrValidation, "empty prompt")
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&chatRequest{Model: p.model, Messages: messages}).
		Post("/chat/completions")
	if err != nil {
		return "", errors.Wrapf(model.ErrCompletionUnavailable, "completion request: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", errors.Wrapf(model.ErrCompletionUnavailable, "completion status %d: %s", resp.StatusCode(), resp.String())
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", errors.Wrapf(model.ErrCompletionUnavailable, "decode response: %v", err)
	}
	if cr.Error != nil {
		return "", errors.Wrapf(model.ErrCompletionUnavailable, "completion: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", errors.Wrap(model.ErrCompletionUnavailable, "no choices returned")
	}
	return cr.Choices[0].Message.Content, nil
}

// HealthPing checks that the endpoint lists models.
func (p *Provider) HealthPing(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get("/models")
	if err != nil {
		return errors.Wrap(err, "completion ping")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("completion ping status %d", resp.StatusCode())
	}
	return nil
}
