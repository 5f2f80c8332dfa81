// Package vecindex provides an in-process exact cosine similarity index
// over vehicle embeddings. The corpus is small enough that brute-force
// scan beats maintaining an external vector store, and exact scoring
// keeps tie-break ordering deterministic.
package vecindex

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/openlot/openlot/core/internal/model"
)

// Hit is a single nearest-neighbor result.
type Hit struct {
	VehicleID string
	Score     float64
}

type entry struct {
	id    string
	vec   []float32
	price float64
}

// Index holds L2-normalized embeddings for cosine search. It is
// immutable after Build; rebuild from a fresh snapshot to update.
type Index struct {
	dim     int
	entries []entry
}

// Build constructs an index from vehicles that carry an embedding.
// Vehicles without one are skipped. Vectors whose dimension differs
// from the first accepted vector are rejected.
func Build(vehicles []*model.Vehicle) (*Index, error) {
	idx := &Index{}
	for _, v := range vehicles {
		if len(v.Embedding) == 0 {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(v.Embedding)
		} else if len(v.Embedding) != idx.dim {
			return nil, errors.Wrapf(model.ErrDimensionMismatch,
				"vehicle %s: got %d, index has %d", v.VehicleID, len(v.Embedding), idx.dim)
		}
		idx.entries = append(idx.entries, entry{
			id:    v.VehicleID,
			vec:   normalize(v.Embedding),
			price: v.Price,
		})
	}
	return idx, nil
}

// Len reports how many vehicles are indexed.
func (idx *Index) Len() int { return len(idx.entries) }

// Dim reports the embedding dimensionality, 0 for an empty index.
func (idx *Index) Dim() int { return idx.dim }

// Search returns up to k vehicles most similar to the query vector,
// skipping IDs in exclude. Ties on score break toward the lower price,
// then the lexicographically smaller vehicle ID. An empty index yields
// an empty result, not an error.
func (idx *Index) Search(query []float32, k int, exclude map[string]bool) ([]Hit, error) {
	if len(idx.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, errors.Wrapf(model.ErrDimensionMismatch,
			"query dimension %d, index has %d", len(query), idx.dim)
	}
	q := normalize(query)

	type scored struct {
		entry
		score float64
	}
	cands := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		if exclude[e.id] {
			continue
		}
		cands = append(cands, scored{entry: e, score: dot(q, e.vec)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].price != cands[j].price {
			return cands[i].price < cands[j].price
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	hits := make([]Hit, len(cands))
	for i, c := range cands {
		hits[i] = Hit{VehicleID: c.id, Score: c.score}
	}
	return hits, nil
}

// Centroid returns the weighted mean of the given vectors, normalized.
// Returns nil when no vector carries positive weight.
func Centroid(vectors [][]float32, weights []float64, dim int) []float32 {
	acc := make([]float64, dim)
	var total float64
	for i, vec := range vectors {
		if len(vec) != dim || weights[i] <= 0 {
			continue
		}
		for j, x := range vec {
			acc[j] += float64(x) * weights[i]
		}
		total += weights[i]
	}
	if total == 0 {
		return nil
	}
	out := make([]float32, dim)
	for j := range acc {
		out[j] = float32(acc[j] / total)
	}
	return normalize(out)
}

// Cosine returns the cosine similarity of two vectors, 0 when either
// has zero magnitude. Callers must pass vectors of equal length.
func Cosine(a, b []float32) float64 {
	var dotp, na, nb float64
	for i := range a {
		dotp += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dotp / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
