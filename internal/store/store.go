package store

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/openlot/openlot/core/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Vehicles() Vehicles
	Interactions() Interactions
	Conversations() Conversations
	Messages() Messages
	// HealthPing verifies the backing database answers a trivial query.
	HealthPing(ctx context.Context) error
}

// Vehicles is the read-mostly view over listing records. Upsert exists for
// the ETL handoff and test seeding; the core never mutates vehicles.
type Vehicles interface {
	Upsert(ctx context.Context, v *model.Vehicle) error
	Get(ctx context.Context, vehicleID string) (*model.Vehicle, error)
	ListAll(ctx context.Context) ([]*model.Vehicle, error)
}

// Interactions is append-only. Record returns false when the event's dedupe
// key was already stored, so duplicate delivery never double counts.
type Interactions interface {
	Record(ctx context.Context, e *model.InteractionEvent) (bool, error)
	ListSince(ctx context.Context, since time.Time) ([]*model.InteractionEvent, error)
	// ListForUser returns the user's events newest first.
	ListForUser(ctx context.Context, userID string, limit int) ([]*model.InteractionEvent, error)
}

type Conversations interface {
	Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	Get(ctx context.Context, conversationID string) (*model.Conversation, error)
	// ListForUser returns summaries newest-updated first. The preview is the
	// last message clipped to PreviewRunes runes.
	ListForUser(ctx context.Context, userID string, limit int) ([]*model.ConversationSummary, error)
	Touch(ctx context.Context, conversationID string, at time.Time) error
	// Delete cascades to the conversation's messages.
	Delete(ctx context.Context, conversationID string) error
}

type Messages interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	// List returns the newest limit messages in transcript order
	// (created_at ascending).
	List(ctx context.Context, conversationID string, limit int) ([]*model.Message, error)
}

// PreviewRunes caps the conversation-list preview length.
const PreviewRunes = 100

// TruncatePreview clips a message body to PreviewRunes runes for listing
// projections. SQL substr is avoided so multi-byte text never splits
// mid-rune.
func TruncatePreview(s string) string {
	if utf8.RuneCountInString(s) <= PreviewRunes {
		return s
	}
	return string([]rune(s)[:PreviewRunes])
}
