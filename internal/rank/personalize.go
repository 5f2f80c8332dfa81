package rank

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/openlot/openlot/core/internal/cache"
	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/vecindex"
)

// ProfileParams holds the personalization tunables.
type ProfileParams struct {
	Window     int     // interactions considered when building the profile
	MinHistory int     // weighted interactions required before personalizing
	Lambda     float64 // recency decay rate, ln2 / half-life days
	Alpha      float64 // blend between profile and collaborative similarity
	CacheTTL   time.Duration
}

// profile is the derived user taste model. Cached, never persisted.
type profile struct {
	Centroid []float32 `json:"centroid"`
	Seen     []string  `json:"seen"`
	Strong   []string  `json:"strong"`
}

// PersonalizationRanker scores candidates against a recency-weighted
// centroid of the vehicles a user interacted with, blended with the
// average similarity to the user's high-intent picks.
type PersonalizationRanker struct {
	agg      *interactions.Aggregator
	features *features.Store
	cache    cache.Cache
	params   ProfileParams
	now      func() time.Time
}

// NewPersonalizationRanker wires the ranker to its signal sources.
func NewPersonalizationRanker(agg *interactions.Aggregator, fs *features.Store, c cache.Cache, params ProfileParams) *PersonalizationRanker {
	return &PersonalizationRanker{agg: agg, features: fs, cache: c, params: params, now: time.Now}
}

// SetClock overrides the time source for tests.
func (r *PersonalizationRanker) SetClock(now func() time.Time) { r.now = now }

// RankForUser returns up to limit candidates the user has not already
// interacted with, ordered by blended similarity to their profile.
// Users below the history threshold fail with NoHistory so callers can
// fall back to popularity. Candidates without an embedding never
// appear here.
func (r *PersonalizationRanker) RankForUser(ctx context.Context, userID string, limit int) ([]model.ScoredVehicle, error) {
	if limit <= 0 {
		return nil, nil
	}
	snap, err := r.features.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	prof, err := r.loadProfile(ctx, userID, snap)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(prof.Seen))
	for _, id := range prof.Seen {
		seen[id] = true
	}
	var strong [][]float32
	for _, id := range prof.Strong {
		if v := snap.Get(id); v != nil && len(v.Embedding) > 0 {
			strong = append(strong, v.Embedding)
		}
	}

	var scored []model.ScoredVehicle
	for _, v := range snap.All() {
		if seen[v.VehicleID] || len(v.Embedding) == 0 {
			continue
		}
		score := vecindex.Cosine(prof.Centroid, v.Embedding)
		if len(strong) > 0 {
			var collab float64
			for _, s := range strong {
				collab += vecindex.Cosine(v.Embedding, s)
			}
			collab /= float64(len(strong))
			score = r.params.Alpha*score + (1-r.params.Alpha)*collab
		}
		scored = append(scored, model.ScoredVehicle{VehicleID: v.VehicleID, Score: score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].VehicleID < scored[j].VehicleID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// InvalidateProfile drops the cached profile so the next request
// recomputes from fresh history.
func (r *PersonalizationRanker) InvalidateProfile(ctx context.Context, userID string) error {
	return r.cache.Delete(ctx, profileCacheKey(userID))
}

func (r *PersonalizationRanker) loadProfile(ctx context.Context, userID string, snap *features.Snapshot) (*profile, error) {
	key := profileCacheKey(userID)
	var cached profile
	if ok, err := r.cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	history, err := r.agg.InteractionsForUser(ctx, userID, r.params.Window)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()

	var vectors [][]float32
	var weights []float64
	var seen, strong []string
	seenSet := make(map[string]bool)
	dim := 0
	weighted := 0
	for _, e := range history {
		if !seenSet[e.VehicleID] {
			seenSet[e.VehicleID] = true
			seen = append(seen, e.VehicleID)
		}
		v := snap.Get(e.VehicleID)
		if v == nil || len(v.Embedding) == 0 {
			continue
		}
		weighted++
		if dim == 0 {
			dim = len(v.Embedding)
		}
		age := now.Sub(e.OccurredAt).Hours() / 24
		if age < 0 {
			age = 0
		}
		vectors = append(vectors, v.Embedding)
		weights = append(weights, e.Weight*math.Exp(-r.params.Lambda*age))
		if e.Type == model.InteractionFavorite || e.Type == model.InteractionContact {
			strong = append(strong, e.VehicleID)
		}
	}
	if weighted < r.params.MinHistory {
		return nil, model.ErrNoHistory
	}
	centroid := vecindex.Centroid(vectors, weights, dim)
	if centroid == nil {
		return nil, model.ErrNoHistory
	}

	prof := &profile{Centroid: centroid, Seen: seen, Strong: strong}
	// best effort, a cold cache only costs a recompute
	_ = r.cache.Set(ctx, key, prof, r.params.CacheTTL)
	return prof, nil
}

func profileCacheKey(userID string) string { return "profile:" + userID }
