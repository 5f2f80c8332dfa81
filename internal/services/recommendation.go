// Package services is the orchestration layer between the HTTP
// handlers and the ranking, interaction, and chat components.
package services

import (
	"context"

	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/rank"
)

// DefaultLimit applies when a request leaves limit unset.
const DefaultLimit = 10

// MaxLimit bounds a single recommendation page.
const MaxLimit = 100

// RecommendationService exposes the four ranking queries plus the
// cache refresh command.
type RecommendationService struct {
	popularity   *rank.PopularityRanker
	similarity   *rank.SimilarityRanker
	personalized *rank.PersonalizationRanker
	hybrid       *rank.HybridComposer
	features     *features.Store
	agg          *interactions.Aggregator
}

// NewRecommendationService wires the service to its rankers.
func NewRecommendationService(pop *rank.PopularityRanker, sim *rank.SimilarityRanker,
	pers *rank.PersonalizationRanker, hybrid *rank.HybridComposer,
	fs *features.Store, agg *interactions.Aggregator) *RecommendationService {
	return &RecommendationService{
		popularity:   pop,
		similarity:   sim,
		personalized: pers,
		hybrid:       hybrid,
		features:     fs,
		agg:          agg,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (s *RecommendationService) Popular(ctx context.Context, limit int) ([]model.ScoredVehicle, error) {
	return s.popularity.Rank(ctx, clampLimit(limit))
}

func (s *RecommendationService) Similar(ctx context.Context, vehicleID string, limit int) ([]model.ScoredVehicle, error) {
	return s.similarity.Similar(ctx, vehicleID, clampLimit(limit))
}

func (s *RecommendationService) Personalized(ctx context.Context, userID string, limit int) ([]model.ScoredVehicle, error) {
	return s.personalized.RankForUser(ctx, userID, clampLimit(limit))
}

func (s *RecommendationService) Hybrid(ctx context.Context, userID *string, seedVehicleID string, limit int) ([]model.ScoredVehicle, error) {
	return s.hybrid.Hybrid(ctx, userID, seedVehicleID, clampLimit(limit))
}

// Refresh drops the cached popularity aggregates and the feature
// snapshot so the next query recomputes. Profile centroids expire on
// their own TTL.
func (s *RecommendationService) Refresh(ctx context.Context) error {
	s.features.Invalidate()
	return s.agg.InvalidateCache(ctx)
}
