package favorites

import (
	"context"
	"log"
	"sync"
)

// RecordStore is the durable backing for the favorite set: one named record
// holding the id list in insertion order.
type RecordStore interface {
	// LoadIDs returns the persisted id list, or (nil, nil) when no record
	// exists yet.
	LoadIDs(ctx context.Context) ([]int64, error)
	SaveIDs(ctx context.Context, ids []int64) error
}

// Set is the in-memory favorite set. Membership is a set (no duplicates);
// insertion order is preserved for display and persisted as-is. Mutations
// are idempotent and persisted best-effort: a persistence failure is logged
// and swallowed, the in-memory state stays authoritative for the session.
//
// A freshly constructed Set reports Loading() == true until LoadFromStore
// completes; consumers must treat that window as "unknown", not as "no
// favorites".
type Set struct {
	mu      sync.Mutex
	ids     map[int64]struct{}
	order   []int64
	loading bool
	store   RecordStore
}

// NewSet creates an empty Set in the loading state. Call LoadFromStore
// (typically from a goroutine at startup) to rehydrate it.
func NewSet(store RecordStore) *Set {
	return &Set{
		ids:     make(map[int64]struct{}),
		loading: true,
		store:   store,
	}
}

// LoadFromStore reads the persisted record and populates the set. An absent
// or unreadable record recovers silently to the empty set. Loading flips to
// false exactly once; repeated calls are no-ops.
func (s *Set) LoadFromStore(ctx context.Context) {
	ids, err := s.store.LoadIDs(ctx)
	if err != nil {
		log.Printf("WARN: favorites: loading persisted set failed, starting empty: %v", err)
		ids = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loading {
		return
	}
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		s.order = append(s.order, id)
	}
	s.loading = false
}

// Loading reports whether the persisted set is still being read.
func (s *Set) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// IsFavorite reports membership of id.
func (s *Set) IsFavorite(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Count returns the number of favorited ids.
func (s *Set) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// HasAny reports whether at least one id is favorited.
func (s *Set) HasAny() bool {
	return s.Count() > 0
}

// IDs returns the favorited ids in insertion order.
func (s *Set) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}

// Add inserts id. Adding an already-present id is a no-op.
func (s *Set) Add(ctx context.Context, id int64) {
	s.mu.Lock()
	if _, ok := s.ids[id]; ok {
		s.mu.Unlock()
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

// Remove deletes id. Removing an absent id is a no-op.
func (s *Set) Remove(ctx context.Context, id int64) {
	s.mu.Lock()
	if _, ok := s.ids[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.ids, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

// Toggle flips membership of id and reports the new state.
func (s *Set) Toggle(ctx context.Context, id int64) bool {
	s.mu.Lock()
	_, present := s.ids[id]
	if present {
		delete(s.ids, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	} else {
		s.ids[id] = struct{}{}
		s.order = append(s.order, id)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(ctx, snapshot)
	return !present
}

// Clear empties the set.
func (s *Set) Clear(ctx context.Context) {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return
	}
	s.ids = make(map[int64]struct{})
	s.order = nil
	s.mu.Unlock()
	s.persist(ctx, []int64{})
}

func (s *Set) snapshotLocked() []int64 {
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set) persist(ctx context.Context, ids []int64) {
	if err := s.store.SaveIDs(ctx, ids); err != nil {
		log.Printf("WARN: favorites: persisting set failed (in-memory state kept): %v", err)
	}
}
