// Package rank implements the ranking paths of the recommendation
// engine: decayed popularity, content similarity, personalized scores,
// and the hybrid fusion that combines them.
package rank

import (
	"context"
	"sort"

	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/model"
)

// PopularityRanker orders vehicles by time-decayed interaction volume
// with the listing rating folded in as a small additive prior.
type PopularityRanker struct {
	agg         *interactions.Aggregator
	features    *features.Store
	ratingPrior float64
}

// NewPopularityRanker wires the ranker to its signal sources.
func NewPopularityRanker(agg *interactions.Aggregator, fs *features.Store, ratingPrior float64) *PopularityRanker {
	return &PopularityRanker{agg: agg, features: fs, ratingPrior: ratingPrior}
}

// Rank returns up to limit vehicles by descending popularity score.
// Ties go to the newer listing. With no interactions recorded yet the
// catalog falls back to newest-first so the surface is never empty.
func (r *PopularityRanker) Rank(ctx context.Context, limit int) ([]model.ScoredVehicle, error) {
	if limit <= 0 {
		return nil, nil
	}
	snap, err := r.features.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := r.agg.PopularityCounts(ctx)
	if err != nil {
		return nil, err
	}

	vehicles := snap.All()
	if len(counts) == 0 {
		return newestFirst(vehicles, limit), nil
	}

	scored := make([]model.ScoredVehicle, 0, len(vehicles))
	byID := make(map[string]*model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		byID[v.VehicleID] = v
		scored = append(scored, model.ScoredVehicle{
			VehicleID: v.VehicleID,
			Score:     counts[v.VehicleID] + r.ratingPrior*v.Rating,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		vi, vj := byID[scored[i].VehicleID], byID[scored[j].VehicleID]
		if !vi.CreatedAt.Equal(vj.CreatedAt) {
			return vi.CreatedAt.After(vj.CreatedAt)
		}
		return scored[i].VehicleID < scored[j].VehicleID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func newestFirst(vehicles []*model.Vehicle, limit int) []model.ScoredVehicle {
	sorted := make([]*model.Vehicle, len(vehicles))
	copy(sorted, vehicles)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].VehicleID < sorted[j].VehicleID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]model.ScoredVehicle, len(sorted))
	for i, v := range sorted {
		out[i] = model.ScoredVehicle{VehicleID: v.VehicleID}
	}
	return out
}
