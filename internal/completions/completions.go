// Package completions defines the chat-completion contract the
// conversational engine consumes. Providers live in subpackages.
package completions

import "context"

// Message is one turn of a completion prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider generates an assistant reply for a prompt transcript.
// Transport failures wrap model.ErrCompletionUnavailable so callers
// can retry or degrade.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
