package model

import "time"

// Vehicle is the canonical listing record exposed to ranking and retrieval.
// Embedding may be nil for listings the ETL has not embedded yet; such
// vehicles are excluded from similarity paths but still rank by popularity.
type Vehicle struct {
	VehicleID string    `json:"vehicleId"`
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	Condition string    `json:"condition"`
	Price     float64   `json:"price"`
	Mileage   float64   `json:"mileage"`
	Rating    float64   `json:"rating"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// InteractionType classifies a user action on a listing.
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionClick    InteractionType = "click"
	InteractionCompare  InteractionType = "compare"
	InteractionFavorite InteractionType = "favorite"
	InteractionContact  InteractionType = "contact"
)

// BaseWeight returns the intent strength of an interaction type.
// Ordering: contact > favorite > compare > click > view.
func (t InteractionType) BaseWeight() float64 {
	switch t {
	case InteractionView:
		return 1.0
	case InteractionClick:
		return 2.0
	case InteractionCompare:
		return 3.0
	case InteractionFavorite:
		return 4.0
	case InteractionContact:
		return 8.0
	default:
		return 0
	}
}

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool { return t.BaseWeight() > 0 }

// InteractionEvent is an append-only record of a user action.
// UserID is nil for anonymous visitors.
type InteractionEvent struct {
	UserID     *string         `json:"userId,omitempty"`
	VehicleID  string          `json:"vehicleId"`
	Type       InteractionType `json:"type"`
	Weight     float64         `json:"weight"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// DedupeKey identifies an event at minute granularity. Recording the same
// key twice must not double count.
func (e InteractionEvent) DedupeKey() string {
	uid := ""
	if e.UserID != nil {
		uid = *e.UserID
	}
	return uid + "|" + e.VehicleID + "|" + string(e.Type) + "|" + e.OccurredAt.UTC().Truncate(time.Minute).Format(time.RFC3339)
}

// Conversation groups chat messages for one visitor session.
type Conversation struct {
	ConversationID string    `json:"conversationId"`
	UserID         *string   `json:"userId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ConversationSummary is the listing projection for a user's conversations.
type ConversationSummary struct {
	ConversationID string    `json:"conversationId"`
	UpdatedAt      time.Time `json:"updatedAt"`
	MessageCount   int       `json:"messageCount"`
	Preview        string    `json:"preview,omitempty"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is an immutable transcript entry. Ordering by CreatedAt is the
// canonical transcript order.
type Message struct {
	MessageID       string    `json:"messageId"`
	ConversationID  string    `json:"conversationId"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	CitedVehicleIDs []string  `json:"citedVehicleIds,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ScoredVehicle pairs a vehicle id with a ranking score. Higher is always
// better; similarity results carry cosine similarity, popularity and hybrid
// results carry their fused scores.
type ScoredVehicle struct {
	VehicleID string  `json:"vehicleId"`
	Score     float64 `json:"score"`
}

// ChatTurnResult is the outcome of one send_message turn.
// MessageID is the persisted assistant message; on an embedding-failure
// turn no assistant message exists and it carries the user message's id
// instead, so the caller can still anchor the turn in the transcript.
type ChatTurnResult struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	ResponseText   string    `json:"response"`
	Vehicles       []Vehicle `json:"vehicles"`
}
