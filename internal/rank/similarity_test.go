package rank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openlot/openlot/core/internal/model"
)

func TestSimilar_CrossBrandCloserWins(t *testing.T) {
	f := newFixture(t)
	// C (Honda) sits next to A in embedding space, B (Toyota) far away.
	f.addVehicle("A", "Toyota", 20000, 0, []float32{1, 0, 0}, time.Hour)
	f.addVehicle("B", "Toyota", 20000, 0, []float32{0, 1, 0}, time.Hour)
	f.addVehicle("C", "Honda", 20000, 0, []float32{0.95, 0.05, 0}, time.Hour)

	r := NewSimilarityRanker(f.features)
	got, err := r.Similar(context.Background(), "A", 2)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if !sameIDs(ids(got), "C", "B") {
		t.Fatalf("order: %v", ids(got))
	}
}

func TestSimilar_NeverReturnsSeed(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("A", "Toyota", 20000, 0, []float32{1, 0}, time.Hour)
	f.addVehicle("B", "Toyota", 21000, 0, []float32{1, 0}, time.Hour)

	r := NewSimilarityRanker(f.features)
	got, err := r.Similar(context.Background(), "A", 5)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	for _, id := range ids(got) {
		if id == "A" {
			t.Fatalf("seed leaked into results: %v", ids(got))
		}
	}
}

func TestSimilar_UnknownSeed(t *testing.T) {
	f := newFixture(t)
	r := NewSimilarityRanker(f.features)
	if _, err := r.Similar(context.Background(), "ghost", 5); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestSimilar_SeedWithoutEmbedding(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("A", "Toyota", 20000, 0, nil, time.Hour)
	f.addVehicle("B", "Toyota", 21000, 0, []float32{1, 0}, time.Hour)

	r := NewSimilarityRanker(f.features)
	got, err := r.Similar(context.Background(), "A", 5)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", ids(got))
	}
}

func TestSimilar_RebuildsAfterSnapshotRollover(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("A", "Toyota", 20000, 0, []float32{1, 0}, time.Hour)
	f.addVehicle("B", "Toyota", 21000, 0, []float32{1, 0}, time.Hour)

	r := NewSimilarityRanker(f.features)
	if _, err := r.Similar(context.Background(), "A", 5); err != nil {
		t.Fatalf("similar: %v", err)
	}

	f.addVehicle("D", "Honda", 5000, 0, []float32{1, 0.01}, time.Hour)
	f.features.Invalidate()

	got, err := r.Similar(context.Background(), "A", 5)
	if err != nil {
		t.Fatalf("similar after rollover: %v", err)
	}
	found := false
	for _, id := range ids(got) {
		if id == "D" {
			found = true
		}
	}
	if !found {
		t.Fatalf("index not rebuilt, D missing: %v", ids(got))
	}
}
