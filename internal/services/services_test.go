package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/openlot/openlot/core/internal/cache"
	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/rank"
)

type fakeVehicles struct {
	vehicles []*model.Vehicle
	listed   int
}

func (f *fakeVehicles) Upsert(_ context.Context, v *model.Vehicle) error {
	f.vehicles = append(f.vehicles, v)
	return nil
}

func (f *fakeVehicles) Get(_ context.Context, id string) (*model.Vehicle, error) {
	for _, v := range f.vehicles {
		if v.VehicleID == id {
			return v, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeVehicles) ListAll(_ context.Context) ([]*model.Vehicle, error) {
	f.listed++
	return f.vehicles, nil
}

type fakeInteractions struct {
	events []*model.InteractionEvent
	scans  int
}

func (f *fakeInteractions) Record(_ context.Context, e *model.InteractionEvent) (bool, error) {
	cp := *e
	f.events = append(f.events, &cp)
	return true, nil
}

func (f *fakeInteractions) ListSince(_ context.Context, since time.Time) ([]*model.InteractionEvent, error) {
	f.scans++
	var out []*model.InteractionEvent
	for _, e := range f.events {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeInteractions) ListForUser(_ context.Context, userID string, limit int) ([]*model.InteractionEvent, error) {
	var out []*model.InteractionEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if e := f.events[i]; e.UserID != nil && *e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newRecommendationFixture() (*RecommendationService, *fakeVehicles, *fakeInteractions) {
	fv := &fakeVehicles{}
	fi := &fakeInteractions{}
	fs := features.NewStore(fv, time.Hour)
	agg := interactions.NewAggregator(fi, cache.NewMemory(), time.Hour, math.Ln2/14)
	pop := rank.NewPopularityRanker(agg, fs, 0.1)
	sim := rank.NewSimilarityRanker(fs)
	pers := rank.NewPersonalizationRanker(agg, fs, cache.NewMemory(), rank.ProfileParams{
		Window: 50, MinHistory: 3, Lambda: math.Ln2 / 14, Alpha: 0.7, CacheTTL: time.Hour,
	})
	hybrid := rank.NewHybridComposer(pop, pers, sim, fs,
		rank.FusionWeights{Popularity: 0.3, Personalized: 0.5, Similarity: 0.2}, 4)
	return NewRecommendationService(pop, sim, pers, hybrid, fs, agg), fv, fi
}

func TestRecommendation_DefaultLimit(t *testing.T) {
	svc, fv, _ := newRecommendationFixture()
	for i := 0; i < 15; i++ {
		fv.vehicles = append(fv.vehicles, &model.Vehicle{
			VehicleID: string(rune('a' + i)), Brand: "b", CreatedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	got, err := svc.Popular(context.Background(), 0)
	if err != nil {
		t.Fatalf("popular: %v", err)
	}
	if len(got) != DefaultLimit {
		t.Fatalf("default limit: got %d", len(got))
	}
}

func TestRecommendation_PersonalizedNoHistoryPassesThrough(t *testing.T) {
	svc, fv, _ := newRecommendationFixture()
	fv.vehicles = append(fv.vehicles, &model.Vehicle{VehicleID: "v", Brand: "b", Embedding: []float32{1}, CreatedAt: time.Now()})

	if _, err := svc.Personalized(context.Background(), "nobody", 5); !errors.Is(err, model.ErrNoHistory) {
		t.Fatalf("want NoHistory, got %v", err)
	}
}

func TestRecommendation_RefreshForcesRecompute(t *testing.T) {
	svc, fv, fi := newRecommendationFixture()
	fv.vehicles = append(fv.vehicles, &model.Vehicle{VehicleID: "v", Brand: "b", CreatedAt: time.Now()})
	fi.events = append(fi.events, &model.InteractionEvent{VehicleID: "v", Type: model.InteractionView, Weight: 1, OccurredAt: time.Now()})

	ctx := context.Background()
	if _, err := svc.Popular(ctx, 5); err != nil {
		t.Fatalf("popular: %v", err)
	}
	listedBefore, scansBefore := fv.listed, fi.scans

	// within TTL nothing recomputes
	if _, err := svc.Popular(ctx, 5); err != nil {
		t.Fatalf("popular: %v", err)
	}
	if fv.listed != listedBefore || fi.scans != scansBefore {
		t.Fatalf("recompute within TTL: listed=%d scans=%d", fv.listed, fi.scans)
	}

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.Popular(ctx, 5); err != nil {
		t.Fatalf("popular: %v", err)
	}
	if fv.listed == listedBefore || fi.scans == scansBefore {
		t.Fatalf("refresh did not force recompute: listed=%d scans=%d", fv.listed, fi.scans)
	}
}

func TestInteraction_RecordValidates(t *testing.T) {
	fi := &fakeInteractions{}
	agg := interactions.NewAggregator(fi, cache.NewMemory(), time.Hour, math.Ln2/14)
	svc := NewInteractionService(agg)

	if err := svc.Record(context.Background(), RecordRequest{VehicleID: "", Type: model.InteractionView}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want Validation, got %v", err)
	}
	if err := svc.Record(context.Background(), RecordRequest{VehicleID: "v", Type: model.InteractionFavorite}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(fi.events) != 1 || fi.events[0].Weight != 4 {
		t.Fatalf("event: %+v", fi.events)
	}
}
