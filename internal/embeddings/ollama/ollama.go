// Package ollama implements embeddings.Provider against the Ollama
// embeddings HTTP API.
package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/openlot/openlot/core/internal/model"
)

// Provider calls the local Ollama embeddings API.
type Provider struct {
	client *resty.Client
	model  string
}

// New builds a provider against baseURL with a hard per-call timeout.
func New(baseURL, embedModel string, timeout time.Duration) *Provider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Provider{client: c, model: embedModel}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

// Embed generates a dense vector for the given text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.Wrap(model.ErrValidation, "empty text")
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&embedRequest{Model: p.model, Prompt: text}).
		Post("/api/embeddings")
	if err != nil {
		return nil, errors.Wrapf(model.ErrEmbeddingUnavailable, "ollama request: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Wrapf(model.ErrEmbeddingUnavailable, "ollama status %d: %s", resp.StatusCode(), resp.String())
	}

	var er embedResponse
	if err := json.Unmarshal(resp.Body(), &er); err != nil {
		return nil, errors.Wrapf(model.ErrEmbeddingUnavailable, "decode response: %v", err)
	}
	if er.Error != "" {
		return nil, errors.Wrapf(model.ErrEmbeddingUnavailable, "ollama: %s", er.Error)
	}

	vec := make([]float32, len(er.Embedding))
	for i, v := range er.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// HealthPing checks that the Ollama API answers /api/tags.
func (p *Provider) HealthPing(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return errors.Wrap(err, "ollama ping")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("ollama ping status %d", resp.StatusCode())
	}
	return nil
}
