package services

import (
	"context"
	"time"

	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/model"
)

// InteractionService records user actions on listings.
type InteractionService struct {
	agg *interactions.Aggregator
}

// NewInteractionService wires the service to the aggregator.
func NewInteractionService(agg *interactions.Aggregator) *InteractionService {
	return &InteractionService{agg: agg}
}

// RecordRequest is one interaction submission. UserID nil means an
// anonymous visitor; OccurredAt zero means now.
type RecordRequest struct {
	UserID     *string
	VehicleID  string
	Type       model.InteractionType
	OccurredAt time.Time
}

// Record persists the event. Duplicate delivery of the same dedupe key
// is a silent no-op.
func (s *InteractionService) Record(ctx context.Context, req RecordRequest) error {
	return s.agg.Record(ctx, &model.InteractionEvent{
		UserID:     req.UserID,
		VehicleID:  req.VehicleID,
		Type:       req.Type,
		OccurredAt: req.OccurredAt,
	})
}
