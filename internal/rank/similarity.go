package rank

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/vecindex"
)

// SimilarityRanker answers "more like this" queries. It keeps a cosine
// index built from the current feature snapshot and rebuilds it
// whenever the snapshot rolls over.
type SimilarityRanker struct {
	features *features.Store

	mu      sync.Mutex
	idx     *vecindex.Index
	takenAt time.Time
}

// NewSimilarityRanker wires the ranker to the feature store.
func NewSimilarityRanker(fs *features.Store) *SimilarityRanker {
	return &SimilarityRanker{features: fs}
}

// Similar returns up to limit vehicles closest to the given one,
// excluding the seed itself. Unknown seeds fail with NotFound; a seed
// without an embedding yields an empty result.
func (r *SimilarityRanker) Similar(ctx context.Context, vehicleID string, limit int) ([]model.ScoredVehicle, error) {
	seed, err := r.features.Get(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if len(seed.Embedding) == 0 {
		return nil, nil
	}
	return r.Nearest(ctx, seed.Embedding, limit, map[string]bool{vehicleID: true})
}

// Nearest runs a raw k-NN query against the index, skipping IDs in
// exclude. Dimension mismatches surface as DimensionMismatch.
func (r *SimilarityRanker) Nearest(ctx context.Context, query []float32, k int, exclude map[string]bool) ([]model.ScoredVehicle, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	hits, err := idx.Search(query, k, exclude)
	if err != nil {
		return nil, err
	}
	out := make([]model.ScoredVehicle, len(hits))
	for i, h := range hits {
		out[i] = model.ScoredVehicle{VehicleID: h.VehicleID, Score: h.Score}
	}
	return out, nil
}

func (r *SimilarityRanker) index(ctx context.Context) (*vecindex.Index, error) {
	snap, err := r.features.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx != nil && r.takenAt.Equal(snap.TakenAt()) {
		return r.idx, nil
	}
	idx, err := vecindex.Build(snap.All())
	if err != nil {
		return nil, errors.Wrap(err, "rebuild similarity index")
	}
	r.idx = idx
	r.takenAt = snap.TakenAt()
	return idx, nil
}
