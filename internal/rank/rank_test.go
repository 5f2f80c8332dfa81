package rank

// Shared fixture for the ranker tests: in-memory store fakes seeded per
// test, wired through the real feature store and aggregator.

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/openlot/openlot/core/internal/cache"
	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/model"
)

type fakeVehicles struct {
	vehicles []*model.Vehicle
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
	return f.vehicles, nil
}

type fakeInteractions struct {
	events []*model.InteractionEvent
}

func (f *fakeInteractions) Record(_ context.Context, e *model.InteractionEvent) (bool, error) {
	cp := *e
	f.events = append(f.events, &cp)
	return true, nil
}

func (f *fakeInteractions) ListSince(_ context.Context, since time.Time) ([]*model.InteractionEvent, error) {
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
		e := f.events[i]
		if e.UserID != nil && *e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fixture struct {
	vehicles     *fakeVehicles
	interactions *fakeInteractions
	features     *features.Store
	agg          *interactions.Aggregator
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fv := &fakeVehicles{}
	fi := &fakeInteractions{}
	f := &fixture{
		vehicles:     fv,
		interactions: fi,
		features:     features.NewStore(fv, time.Minute),
		agg:          interactions.NewAggregator(fi, cache.NewMemory(), time.Nanosecond, math.Ln2/14),
		now:          time.Now().UTC().Truncate(time.Second),
	}
	f.agg.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addVehicle(id, brand string, price, rating float64, emb []float32, age time.Duration) {
	f.vehicles.vehicles = append(f.vehicles.vehicles, &model.Vehicle{
		VehicleID: id, Brand: brand, Model: "m", Condition: "used",
		Price: price, Rating: rating, Embedding: emb,
		CreatedAt: f.now.Add(-age),
	})
}

func (f *fixture) interact(userID, vehicleID string, typ model.InteractionType, age time.Duration) {
	var uid *string
	if userID != "" {
		uid = &userID
	}
	f.interactions.events = append(f.interactions.events, &model.InteractionEvent{
		UserID: uid, VehicleID: vehicleID, Type: typ,
		Weight: typ.BaseWeight(), OccurredAt: f.now.Add(-age),
	})
}

func ids(scored []model.ScoredVehicle) []string {
	out := make([]string, len(scored))
	for i, sv := range scored {
		out[i] = sv.VehicleID
	}
	return out
}

func sameIDs(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
