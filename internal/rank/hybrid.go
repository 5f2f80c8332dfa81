package rank

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/model"
)

// FusionWeights are the per-signal contributions before renormalization
// over the lists actually available for a request.
type FusionWeights struct {
	Popularity   float64
	Personalized float64
	Similarity   float64
}

// HybridComposer fuses the three ranking signals into one ranked,
// de-duplicated, diversity-capped list.
type HybridComposer struct {
	pop         *PopularityRanker
	pers        *PersonalizationRanker
	sim         *SimilarityRanker
	features    *features.Store
	weights     FusionWeights
	capDivisor  int
	candidateFn func(limit int) int
}

// NewHybridComposer wires the composer to the three rankers.
func NewHybridComposer(pop *PopularityRanker, pers *PersonalizationRanker, sim *SimilarityRanker, fs *features.Store, weights FusionWeights, capDivisor int) *HybridComposer {
	return &HybridComposer{
		pop:        pop,
		pers:       pers,
		sim:        sim,
		features:   fs,
		weights:    weights,
		capDivisor: capDivisor,
		// fetch deeper than the page so the diversity cap has requeue room
		candidateFn: func(limit int) int { return limit * 3 },
	}
}

// Hybrid composes the final ranking. userID nil skips personalization;
// a NoHistory user degrades to the remaining signals; seedVehicleID ""
// skips similarity, an unknown seed fails with NotFound.
func (h *HybridComposer) Hybrid(ctx context.Context, userID *string, seedVehicleID string, limit int) ([]model.ScoredVehicle, error) {
	if limit <= 0 {
		return nil, nil
	}
	depth := h.candidateFn(limit)

	type signal struct {
		weight float64
		list   []model.ScoredVehicle
	}
	var signals []signal

	popList, err := h.pop.Rank(ctx, depth)
	if err != nil {
		return nil, errors.Wrap(err, "popularity signal")
	}
	signals = append(signals, signal{h.weights.Popularity, popList})

	if userID != nil && *userID != "" {
		persList, err := h.pers.RankForUser(ctx, *userID, depth)
		switch {
		case errors.Is(err, model.ErrNoHistory):
			// cold user, fuse without the personalized signal
		case err != nil:
			return nil, errors.Wrap(err, "personalized signal")
		default:
			signals = append(signals, signal{h.weights.Personalized, persList})
		}
	}

	if seedVehicleID != "" {
		simList, err := h.sim.Similar(ctx, seedVehicleID, depth)
		if err != nil {
			return nil, errors.Wrap(err, "similarity signal")
		}
		signals = append(signals, signal{h.weights.Similarity, simList})
	}

	var totalWeight float64
	for _, s := range signals {
		totalWeight += s.weight
	}
	if totalWeight == 0 {
		return nil, nil
	}

	// popularity rank breaks final-score ties
	popRank := make(map[string]int, len(popList))
	for i, sv := range popList {
		popRank[sv.VehicleID] = i
	}

	fused := make(map[string]float64)
	for _, s := range signals {
		w := s.weight / totalWeight
		for id, norm := range minMaxNormalize(s.list) {
			fused[id] += w * norm
		}
	}

	ordered := make([]model.ScoredVehicle, 0, len(fused))
	for id, score := range fused {
		ordered = append(ordered, model.ScoredVehicle{VehicleID: id, Score: score})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		ri, iOK := popRank[ordered[i].VehicleID]
		rj, jOK := popRank[ordered[j].VehicleID]
		if iOK != jOK {
			return iOK
		}
		if iOK && ri != rj {
			return ri < rj
		}
		return ordered[i].VehicleID < ordered[j].VehicleID
	})

	snap, err := h.features.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	brandCap := int(math.Ceil(float64(limit) / float64(h.capDivisor)))
	return capBrands(ordered, limit, brandCap, func(id string) string {
		if v := snap.Get(id); v != nil {
			return v.Brand
		}
		return ""
	}), nil
}

// minMaxNormalize scales a list's scores into [0,1]. A constant or
// single-entry list maps everything to 1 so presence still counts.
func minMaxNormalize(list []model.ScoredVehicle) map[string]float64 {
	if len(list) == 0 {
		return nil
	}
	lo, hi := list[0].Score, list[0].Score
	for _, sv := range list[1:] {
		if sv.Score < lo {
			lo = sv.Score
		}
		if sv.Score > hi {
			hi = sv.Score
		}
	}
	out := make(map[string]float64, len(list))
	for _, sv := range list {
		if hi > lo {
			out[sv.VehicleID] = (sv.Score - lo) / (hi - lo)
		} else {
			out[sv.VehicleID] = 1
		}
	}
	return out
}

// capBrands skips items whose brand already holds cap slots, letting
// lower-ranked other-brand items move up in their original relative
// order. A short page beats an over-represented one, so capped items
// are dropped rather than appended at the tail.
func capBrands(ordered []model.ScoredVehicle, limit, cap int, brandOf func(string) string) []model.ScoredVehicle {
	if cap < 1 {
		cap = 1
	}
	counts := make(map[string]int)
	var out []model.ScoredVehicle
	for _, sv := range ordered {
		if len(out) == limit {
			break
		}
		b := brandOf(sv.VehicleID)
		if counts[b] >= cap {
			continue
		}
		counts[b]++
		out = append(out, sv)
	}
	return out
}
