package rank

import (
	"context"
	"testing"
	"time"

	"github.com/openlot/openlot/core/internal/model"
)

func TestPopularity_OrdersByDecayedScore(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("hot", "Toyota", 10000, 0, nil, 48*time.Hour)
	f.addVehicle("warm", "Honda", 10000, 0, nil, 48*time.Hour)
	f.addVehicle("cold", "Mazda", 10000, 0, nil, 48*time.Hour)

	// hot: fresh contact (8). warm: fresh view (1). cold: nothing.
	f.interact("", "hot", model.InteractionContact, 0)
	f.interact("", "warm", model.InteractionView, 0)

	r := NewPopularityRanker(f.agg, f.features, 0)
	got, err := r.Rank(context.Background(), 3)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !sameIDs(ids(got), "hot", "warm", "cold") {
		t.Fatalf("order: %v", ids(got))
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %+v", got)
	}
}

func TestPopularity_RecencyBeatsVolume(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("stale", "Toyota", 10000, 0, nil, 0)
	f.addVehicle("fresh", "Honda", 10000, 0, nil, 0)

	// two views from four half-lives ago decay to 2*2^-4 = 0.125,
	// under one fresh view's 1.0
	f.interact("", "stale", model.InteractionView, 56*24*time.Hour)
	f.interact("", "stale", model.InteractionView, 56*24*time.Hour+time.Minute)
	f.interact("", "fresh", model.InteractionView, 0)

	r := NewPopularityRanker(f.agg, f.features, 0)
	got, err := r.Rank(context.Background(), 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got[0].VehicleID != "fresh" {
		t.Fatalf("order: %v", ids(got))
	}
}

func TestPopularity_TiesGoToNewerListing(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("older", "Toyota", 10000, 0, nil, 72*time.Hour)
	f.addVehicle("newer", "Honda", 10000, 0, nil, time.Hour)

	// identical score for both
	f.interact("", "older", model.InteractionView, 0)
	f.interact("", "newer", model.InteractionView, 0)

	r := NewPopularityRanker(f.agg, f.features, 0)
	got, err := r.Rank(context.Background(), 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !sameIDs(ids(got), "newer", "older") {
		t.Fatalf("tie-break order: %v", ids(got))
	}
}

func TestPopularity_EmptyAggregatorFallsBackToNewest(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("old", "Toyota", 10000, 4.5, nil, 72*time.Hour)
	f.addVehicle("new", "Honda", 10000, 1.0, nil, time.Hour)

	r := NewPopularityRanker(f.agg, f.features, 0.1)
	got, err := r.Rank(context.Background(), 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !sameIDs(ids(got), "new", "old") {
		t.Fatalf("fallback order: %v", ids(got))
	}
}

func TestPopularity_RatingPriorBreaksLowSignal(t *testing.T) {
	f := newFixture(t)
	f.addVehicle("plain", "Toyota", 10000, 0, nil, time.Hour)
	f.addVehicle("rated", "Honda", 10000, 5, nil, 72*time.Hour)

	// equal interaction signal, rating prior decides
	f.interact("", "plain", model.InteractionView, 0)
	f.interact("", "rated", model.InteractionView, 0)

	r := NewPopularityRanker(f.agg, f.features, 0.1)
	got, err := r.Rank(context.Background(), 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got[0].VehicleID != "rated" {
		t.Fatalf("rating prior ignored: %v", ids(got))
	}
}

func TestPopularity_RespectsLimit(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.addVehicle(id, "Toyota", 10000, 0, nil, time.Hour)
		f.interact("", id, model.InteractionView, 0)
	}
	r := NewPopularityRanker(f.agg, f.features, 0)
	got, err := r.Rank(context.Background(), 2)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied: %v", ids(got))
	}
}
