// Package embeddings defines the vector embedding contract the chat and
// recommendation paths consume. Providers live in subpackages.
package embeddings

import "context"

// Provider produces vector representations for text. Implementations
// honor ctx for timeout and cancellation; transport failures wrap
// model.ErrEmbeddingUnavailable so callers can degrade.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
