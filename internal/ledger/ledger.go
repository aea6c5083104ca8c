// Package ledger holds the device's progress sets. Both only ever grow.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"lakbay-kasaysayan/internal/achievement"
	"lakbay-kasaysayan/internal/devicestore"
)

// KV is the subset of the device store the ledger persists through.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// idSet is an ordered set of ids persisted as a JSON array under one key. A nil
// store keeps it in memory.
type idSet struct {
	mu    sync.RWMutex
	key   string
	ids   map[string]struct{}
	order []string
	store KV
}

func loadIDSet(ctx context.Context, store KV, key string) (*idSet, error) {
	s := &idSet{key: key, ids: map[string]struct{}{}, store: store}
	if store == nil {
		return s, nil
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return s, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	for _, id := range ids {
		if _, dup := s.ids[id]; !dup {
			s.ids[id] = struct{}{}
			s.order = append(s.order, id)
		}
	}
	return s, nil
}

// Add records id and persists the set. It reports whether id was new; adding a
// known id writes nothing. When the write fails the id is not recorded.
func (s *idSet) Add(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false, nil
	}

	next := append(append([]string(nil), s.order...), id)
	if s.store != nil {
		raw, err := json.Marshal(next)
		if err != nil {
			return false, err
		}
		if err := s.store.Set(ctx, s.key, string(raw)); err != nil {
			return false, err
		}
	}
	s.ids[id] = struct{}{}
	s.order = next
	return true, nil
}

func (s *idSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *idSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the ids in insertion order.
func (s *idSet) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Artifacts is the locally authoritative set of collected artifact ids.
type Artifacts struct {
	*idSet
}

// LoadArtifacts reads the collectedArtifacts key. A missing key is an empty set.
func LoadArtifacts(ctx context.Context, store KV) (*Artifacts, error) {
	s, err := loadIDSet(ctx, store, devicestore.KeyCollectedArtifacts)
	if err != nil {
		return nil, err
	}
	return &Artifacts{s}, nil
}

// Visits is the set of distinct historical locations the user has visited.
type Visits struct {
	*idSet
}

// LoadVisits reads the visitedLocations key.
func LoadVisits(ctx context.Context, store KV) (*Visits, error) {
	s, err := loadIDSet(ctx, store, devicestore.KeyVisitedLocations)
	if err != nil {
		return nil, err
	}
	return &Visits{s}, nil
}

// NewVisits is an in-memory visit set.
func NewVisits() *Visits {
	s, _ := loadIDSet(context.Background(), nil, devicestore.KeyVisitedLocations)
	return &Visits{s}
}

// Achievements mirrors the achievements the server has confirmed.
type Achievements struct {
	mu  sync.RWMutex
	set achievement.Set
}

func NewAchievements(ids ...string) *Achievements {
	return &Achievements{set: achievement.NewSet(ids...)}
}

// Merge adds ids and returns the ones that were not yet present, sorted.
func (e *Achievements) Merge(ids ...string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	added := []string{}
	for _, id := range ids {
		if e.set.Has(id) {
			continue
		}
		e.set[id] = struct{}{}
		added = append(added, id)
	}
	sort.Strings(added)
	return added
}

func (e *Achievements) Has(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set.Has(id)
}

// Snapshot returns a copy that is safe to hand to the evaluator.
func (e *Achievements) Snapshot() achievement.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(achievement.Set, len(e.set))
	for id := range e.set {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the earned ids, sorted.
func (e *Achievements) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.set))
	for id := range e.set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
