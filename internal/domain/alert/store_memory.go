package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a concurrency-safe in-memory Store, used in tests and as
// the degraded-mode store when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	rules   map[uuid.UUID]*Rule
	history map[uuid.UUID]*History
	open    map[Fingerprint]uuid.UUID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:   make(map[uuid.UUID]*Rule),
		history: make(map[uuid.UUID]*History),
		open:    make(map[Fingerprint]uuid.UUID),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) ListRules(_ context.Context) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ListEnabledRules(ctx context.Context) ([]*Rule, error) {
	all, err := s.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Rule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetRule(_ context.Context, id uuid.UUID) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("alert rule %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) CreateRule(_ context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateRule(_ context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return fmt.Errorf("alert rule %s not found", r.ID)
	}
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteRule(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) OpenHistoryFor(_ context.Context, fp Fingerprint) (*History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.open[fp]
	if !ok {
		return nil, nil
	}
	cp := *s.history[id]
	return &cp, nil
}

func (s *MemoryStore) CreateHistory(_ context.Context, h *History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	fp := h.Fingerprint()
	if _, exists := s.open[fp]; exists && h.Open() {
		return fmt.Errorf("an unresolved alert already occupies fingerprint %+v", fp)
	}
	cp := *h
	s.history[h.ID] = &cp
	if h.Open() {
		s.open[fp] = h.ID
	}
	return nil
}

func (s *MemoryStore) ResolveHistory(_ context.Context, id uuid.UUID, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[id]
	if !ok {
		return fmt.Errorf("alert history %s not found", id)
	}
	t := resolvedAt
	h.ResolvedAt = &t
	delete(s.open, h.Fingerprint())
	return nil
}

func (s *MemoryStore) AcknowledgeHistory(_ context.Context, id uuid.UUID, by string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[id]
	if !ok {
		return fmt.Errorf("alert history %s not found", id)
	}
	t := at
	h.AcknowledgedAt = &t
	h.AcknowledgedBy = by
	return nil
}

func (s *MemoryStore) ListOpenHistory(_ context.Context) ([]*History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*History, 0, len(s.open))
	for _, id := range s.open {
		cp := *s.history[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.Before(out[j].TriggeredAt) })
	return out, nil
}

func (s *MemoryStore) ListHistory(_ context.Context, deviceID *uuid.UUID, limit int) ([]*History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*History, 0)
	for _, h := range s.history {
		if deviceID != nil && h.DeviceID != *deviceID {
			continue
		}
		cp := *h
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteResolvedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, h := range s.history {
		if h.ResolvedAt != nil && h.ResolvedAt.Before(cutoff) {
			delete(s.history, id)
			n++
		}
	}
	return n, nil
}
