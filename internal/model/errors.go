package model

import "errors"

var (
	// ErrNotFound reports an unknown vehicle or conversation id.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports malformed request input.
	ErrValidation = errors.New("validation error")
	// ErrNoHistory is recoverable: the caller should fall back to popularity.
	ErrNoHistory = errors.New("insufficient interaction history")
	// ErrDimensionMismatch reports a query vector whose dimensionality does
	// not match the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbeddingUnavailable reports a failed embedding service call.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrCompletionUnavailable reports a failed completion service call.
	ErrCompletionUnavailable = errors.New("completion service unavailable")
	// ErrConversationBusy reports a second in-flight turn on one conversation.
	ErrConversationBusy = errors.New("conversation busy")
)
