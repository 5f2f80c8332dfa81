// Package chat implements the conversational retrieval engine: one
// send-message turn walks embedding, retrieval, prompt composition,
// generation, and persistence, degrading to an apology instead of
// surfacing external-service failures to the visitor.
package chat

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/openlot/openlot/core/internal/completions"
	"github.com/openlot/openlot/core/internal/embeddings"
	"github.com/openlot/openlot/core/internal/metrics"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/store"
)

// apologyText is the fixed degraded-mode reply. Conversations never
// dead-end on provider failure.
const apologyText = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

const maxMessageRunes = 5000

// Retriever finds vehicles near a query embedding.
type Retriever interface {
	Nearest(ctx context.Context, query []float32, k int, exclude map[string]bool) ([]model.ScoredVehicle, error)
}

// VehicleLookup resolves a vehicle id to its current record.
type VehicleLookup interface {
	Get(ctx context.Context, vehicleID string) (*model.Vehicle, error)
}

// Params are the engine tunables.
type Params struct {
	RetrievalK    int
	ContextWindow int
	MaxCitations  int
	// RetryInterval seeds the backoff before the single completion retry.
	RetryInterval time.Duration
}

// SendMessageRequest is one user turn. An empty ConversationID starts a
// new conversation owned by UserID (nil for anonymous).
type SendMessageRequest struct {
	ConversationID string
	UserID         *string
	Text           string
}

// Engine drives the per-turn state machine.
type Engine struct {
	conversations store.Conversations
	messages      store.Messages
	vehicles      VehicleLookup
	embedder      embeddings.Provider
	completer     completions.Provider
	retriever     Retriever
	params        Params
	locks         *conversationLocks
	logger        zerolog.Logger
}

// NewEngine wires the engine to its collaborators.
func NewEngine(conversations store.Conversations, messages store.Messages, vehicles VehicleLookup,
	embedder embeddings.Provider, completer completions.Provider, retriever Retriever,
	params Params, logger zerolog.Logger) *Engine {
	if params.RetryInterval <= 0 {
		params.RetryInterval = 500 * time.Millisecond
	}
	return &Engine{
		conversations: conversations,
		messages:      messages,
		vehicles:      vehicles,
		embedder:      embedder,
		completer:     completer,
		retriever:     retriever,
		params:        params,
		locks:         newConversationLocks(),
		logger:        logger.With().Str("component", "chat").Logger(),
	}
}

// SendMessage runs one conversation turn. The user message is persisted
// before any external call so history survives provider failures; a
// concurrent turn on the same conversation fails with ConversationBusy.
func (e *Engine) SendMessage(ctx context.Context, req SendMessageRequest) (*model.ChatTurnResult, error) {
	if n := utf8.RuneCountInString(req.Text); n == 0 || n > maxMessageRunes {
		return nil, errors.Wrapf(model.ErrValidation, "message length %d runes, want 1..%d", n, maxMessageRunes)
	}

	conv, err := e.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}
	if !e.locks.tryAcquire(conv.ConversationID) {
		metrics.ChatTurns.WithLabelValues("rejected").Inc()
		return nil, errors.Wrapf(model.ErrConversationBusy, "conversation %s", conv.ConversationID)
	}
	defer e.locks.release(conv.ConversationID)
	start := time.Now()
	defer func() { metrics.ChatTurnDuration.Observe(time.Since(start).Seconds()) }()

	history, err := e.messages.List(ctx, conv.ConversationID, e.params.ContextWindow)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	userMsg, err := e.messages.Create(ctx, &model.Message{
		ConversationID: conv.ConversationID,
		Role:           model.RoleUser,
		Content:        req.Text,
	})
	if err != nil {
		return nil, errors.Wrap(err, "persist user message")
	}
	defer e.touch(conv.ConversationID)

	queryVec, err := e.embedder.Embed(ctx, req.Text)
	if err != nil {
		// history keeps the user message; the visitor sees the apology
		e.logger.Warn().Err(err).Str("conversation_id", conv.ConversationID).Msg("embedding failed, degrading turn")
		metrics.ExternalCallFailures.WithLabelValues("embedding").Inc()
		metrics.ChatTurns.WithLabelValues("degraded").Inc()
		return &model.ChatTurnResult{
			ConversationID: conv.ConversationID,
			MessageID:      userMsg.MessageID,
			ResponseText:   apologyText,
		}, nil
	}

	candidates, scores := e.retrieve(ctx, conv.ConversationID, queryVec)
	prompt := composePrompt(history, candidates, scores, req.Text)

	responseText, genErr := e.generate(ctx, prompt)
	if genErr != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "turn canceled")
		}
		e.logger.Warn().Err(genErr).Str("conversation_id", conv.ConversationID).Msg("completion failed after retry, sending apology")
		metrics.ExternalCallFailures.WithLabelValues("completion").Inc()
		metrics.ChatTurns.WithLabelValues("degraded").Inc()
		responseText = apologyText
		candidates = nil
	} else {
		metrics.ChatTurns.WithLabelValues("ok").Inc()
	}

	var cited []string
	maxCite := e.params.MaxCitations
	for i, v := range candidates {
		if i == maxCite {
			break
		}
		cited = append(cited, v.VehicleID)
	}
	assistantMsg, err := e.messages.Create(ctx, &model.Message{
		ConversationID:  conv.ConversationID,
		Role:            model.RoleAssistant,
		Content:         responseText,
		CitedVehicleIDs: cited,
	})
	if err != nil {
		return nil, errors.Wrap(err, "persist assistant message")
	}

	result := &model.ChatTurnResult{
		ConversationID: conv.ConversationID,
		MessageID:      assistantMsg.MessageID,
		ResponseText:   responseText,
		Vehicles:       make([]model.Vehicle, 0, len(cited)),
	}
	for i, v := range candidates {
		if i == maxCite {
			break
		}
		result.Vehicles = append(result.Vehicles, *v)
	}
	return result, nil
}

func (e *Engine) resolveConversation(ctx context.Context, req SendMessageRequest) (*model.Conversation, error) {
	if req.ConversationID == "" {
		conv, err := e.conversations.Create(ctx, &model.Conversation{UserID: req.UserID})
		if err != nil {
			return nil, errors.Wrap(err, "create conversation")
		}
		return conv, nil
	}
	return e.conversations.Get(ctx, req.ConversationID)
}

// retrieve degrades to an empty candidate set on any retrieval failure;
// the model can still answer conversationally.
func (e *Engine) retrieve(ctx context.Context, conversationID string, queryVec []float32) ([]*model.Vehicle, []float64) {
	hits, err := e.retriever.Nearest(ctx, queryVec, e.params.RetrievalK, nil)
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("retrieval failed, answering without candidates")
		return nil, nil
	}
	var vehicles []*model.Vehicle
	var scores []float64
	for _, h := range hits {
		v, err := e.vehicles.Get(ctx, h.VehicleID)
		if err != nil {
			continue
		}
		vehicles = append(vehicles, v)
		scores = append(scores, h.Score)
	}
	return vehicles, scores
}

// generate calls the completion provider, retrying once with backoff.
func (e *Engine) generate(ctx context.Context, prompt []completions.Message) (string, error) {
	var out string
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.params.RetryInterval
	err := backoff.Retry(func() error {
		text, err := e.completer.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx))
	return out, err
}

func (e *Engine) touch(conversationID string) {
	// detached context so a canceled turn still bumps updated_at
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.conversations.Touch(ctx, conversationID, time.Now().UTC()); err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("touch conversation failed")
	}
}
