package factory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openlot/openlot/core/internal/completions"
	"github.com/openlot/openlot/core/internal/completions/openai"
	"github.com/openlot/openlot/core/internal/config"
	emb "github.com/openlot/openlot/core/internal/embeddings"
	"github.com/openlot/openlot/core/internal/embeddings/ollama"
)

// NewEmbeddingProvider creates an embedding provider based on config.
// Launches an async warmup ping; returns the provider immediately so
// startup is not gated on the model server.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) emb.Provider {
	var provider *ollama.Provider
	switch cfg.EmbedProvider {
	case "", "ollama":
		provider = ollama.New(cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbedTimeout)
	default:
		log.Warn().Str("provider", cfg.EmbedProvider).Msg("unknown embedding provider; using ollama")
		provider = ollama.New(cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbedTimeout)
	}

	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, cfg.EmbedTimeout)
		defer cancel()
		if err := provider.HealthPing(warmupCtx); err != nil {
			log.Warn().Err(err).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup completed")
		}
	}()

	return provider
}

// NewCompletionProvider creates a chat completion provider based on config.
func NewCompletionProvider(cfg *config.Config, log zerolog.Logger) completions.Provider {
	switch cfg.CompletionProvider {
	case "", "openai":
		return openai.New(cfg.CompletionBaseURL, cfg.CompletionAPIKey, cfg.CompletionModel, cfg.CompletionTimeout)
	default:
		log.Warn().Str("provider", cfg.CompletionProvider).Msg("unknown completion provider; using openai")
		return openai.New(cfg.CompletionBaseURL, cfg.CompletionAPIKey, cfg.CompletionModel, cfg.CompletionTimeout)
	}
}
