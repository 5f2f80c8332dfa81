package services

import (
	"context"

	"github.com/openlot/openlot/core/internal/chat"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/store"
)

// DefaultMessageLimit bounds a transcript page when unset.
const DefaultMessageLimit = 50

// ChatService fronts the conversational engine and transcript reads.
type ChatService struct {
	engine        *chat.Engine
	conversations store.Conversations
	messages      store.Messages
}

// NewChatService wires the service to the engine and the store.
func NewChatService(engine *chat.Engine, conversations store.Conversations, messages store.Messages) *ChatService {
	return &ChatService{engine: engine, conversations: conversations, messages: messages}
}

func (s *ChatService) SendMessage(ctx context.Context, req chat.SendMessageRequest) (*model.ChatTurnResult, error) {
	return s.engine.SendMessage(ctx, req)
}

func (s *ChatService) ListConversations(ctx context.Context, userID string, limit int) ([]*model.ConversationSummary, error) {
	return s.conversations.ListForUser(ctx, userID, clampLimit(limit))
}

// ListMessages returns the newest tail of a transcript in chronological
// order. Unknown conversations fail with NotFound.
func (s *ChatService) ListMessages(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	return s.messages.List(ctx, conversationID, limit)
}

// DeleteConversation removes the conversation and its messages.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID string) error {
	return s.conversations.Delete(ctx, conversationID)
}
