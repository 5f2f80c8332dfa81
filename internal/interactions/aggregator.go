// Package interactions ingests interaction events and derives the popularity
// aggregates and per-user histories the rankers consume.
package interactions

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openlot/openlot/core/internal/cache"
	"github.com/openlot/openlot/core/internal/metrics"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/store"
)

const (
	popularityCacheKey = "agg:popularity"
	// Events older than the lookback contribute effectively nothing after
	// decay and are excluded from the aggregate scan.
	lookback = 90 * 24 * time.Hour
)

// Aggregator records events append-only and serves decayed popularity counts.
// Aggregates are cached with a TTL; readers may observe slightly stale scores.
type Aggregator struct {
	store  store.Interactions
	cache  cache.Cache
	ttl    time.Duration
	lambda float64
	now    func() time.Time
}

// NewAggregator builds an aggregator. lambda is the popularity decay rate per
// day (see config.PopularityLambda).
func NewAggregator(s store.Interactions, c cache.Cache, ttl time.Duration, lambda float64) *Aggregator {
	return &Aggregator{store: s, cache: c, ttl: ttl, lambda: lambda, now: time.Now}
}

// Record validates and persists an event. Duplicate delivery of the same
// dedupe key is acknowledged without double counting.
func (a *Aggregator) Record(ctx context.Context, e *model.InteractionEvent) error {
	if e.VehicleID == "" {
		return fmt.Errorf("%w: vehicle id is required", model.ErrValidation)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown interaction type %q", model.ErrValidation, e.Type)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = a.now().UTC()
	}
	if e.Weight == 0 {
		e.Weight = e.Type.BaseWeight()
	}
	fresh, err := a.store.Record(ctx, e)
	if err != nil {
		return err
	}
	if fresh {
		metrics.InteractionsRecorded.WithLabelValues(string(e.Type)).Inc()
	}
	return nil
}

// PopularityCounts returns the decayed per-vehicle scores:
// score = Σ weight(type) * exp(-λ * age_days). An empty map is a valid
// outcome for a catalog with no interactions yet.
func (a *Aggregator) PopularityCounts(ctx context.Context) (map[string]float64, error) {
	var cached map[string]float64
	if hit, err := a.cache.Get(ctx, popularityCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	events, err := a.store.ListSince(ctx, a.now().Add(-lookback))
	if err != nil {
		return nil, err
	}
	now := a.now()
	scores := make(map[string]float64, len(events))
	for _, e := range events {
		ageDays := now.Sub(e.OccurredAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		scores[e.VehicleID] += e.Weight * math.Exp(-a.lambda*ageDays)
	}

	// Best effort: stale aggregates are acceptable, a cache failure is not
	// worth failing the read for.
	_ = a.cache.Set(ctx, popularityCacheKey, scores, a.ttl)
	return scores, nil
}

// InteractionsForUser returns the user's recent events, newest first.
func (a *Aggregator) InteractionsForUser(ctx context.Context, userID string, limit int) ([]*model.InteractionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return a.store.ListForUser(ctx, userID, limit)
}

// InvalidateCache drops the cached aggregate so the next read recomputes.
func (a *Aggregator) InvalidateCache(ctx context.Context) error {
	return a.cache.Delete(ctx, popularityCacheKey)
}

// SetClock overrides the time source. Test hook.
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }
