// Package features provides a read-only, periodically refreshed view over
// vehicle attributes and content embeddings. Rankers work against an
// immutable snapshot so concurrent queries never coordinate.
package features

import (
	"context"
	"sync"
	"time"

	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/store"
)

// Snapshot is an immutable view of the catalog. All lookups are O(1).
type Snapshot struct {
	byID    map[string]*model.Vehicle
	ordered []*model.Vehicle
	takenAt time.Time
}

// Get returns the vehicle for id, or nil when unknown.
func (s *Snapshot) Get(id string) *model.Vehicle { return s.byID[id] }

// All returns every vehicle in the snapshot. Callers must not mutate.
func (s *Snapshot) All() []*model.Vehicle { return s.ordered }

// Len returns the catalog size.
func (s *Snapshot) Len() int { return len(s.ordered) }

// TakenAt reports when the snapshot was loaded.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Store serves snapshots of the vehicle catalog, reloading from persistence
// when the current snapshot is older than the TTL.
type Store struct {
	vehicles store.Vehicles
	ttl      time.Duration

	mu   sync.RWMutex
	snap *Snapshot
}

func NewStore(vehicles store.Vehicles, ttl time.Duration) *Store {
	return &Store{vehicles: vehicles, ttl: ttl}
}

// Snapshot returns the current catalog snapshot, reloading it when stale.
// Concurrent callers share one snapshot; a reload in progress does not block
// readers of the previous snapshot.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil && time.Since(snap.takenAt) < s.ttl {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have reloaded while we waited.
	if s.snap != nil && time.Since(s.snap.takenAt) < s.ttl {
		return s.snap, nil
	}

	all, err := s.vehicles.ListAll(ctx)
	if err != nil {
		if s.snap != nil {
			// Serve the stale snapshot rather than failing reads.
			return s.snap, nil
		}
		return nil, err
	}
	byID := make(map[string]*model.Vehicle, len(all))
	for _, v := range all {
		byID[v.VehicleID] = v
	}
	s.snap = &Snapshot{byID: byID, ordered: all, takenAt: time.Now()}
	return s.snap, nil
}

// Invalidate drops the current snapshot so the next read reloads.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
}

// Get is a convenience lookup through the current snapshot.
func (s *Store) Get(ctx context.Context, vehicleID string) (*model.Vehicle, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	v := snap.Get(vehicleID)
	if v == nil {
		return nil, model.ErrNotFound
	}
	return v, nil
}
