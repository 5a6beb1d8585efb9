package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing"
)

// MemoryRepo keeps listings in process; used for tests and when MongoDB is
// not configured.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*listing.Listing
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*listing.Listing), now: time.Now}
}

func (m *MemoryRepo) Create(ctx context.Context, l *listing.Listing) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := l.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = listing.StatusAvailable
	}
	c.CreatedAt = m.now().UTC()
	c.UpdatedAt = c.CreatedAt
	m.store[c.ID] = c
	l.ID, l.Status, l.CreatedAt, l.UpdatedAt = c.ID, c.Status, c.CreatedAt, c.UpdatedAt
	return c.ID, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.store[id]; ok {
		return l.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) ListAvailable(ctx context.Context) ([]*listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*listing.Listing, 0, len(m.store))
	for _, l := range m.store {
		if l.Status == listing.StatusAvailable {
			out = append(out, l.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepo) UpdateFields(ctx context.Context, id string, set gating.Record, unset []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range set {
		l.Fields[k] = v
	}
	for _, k := range unset {
		delete(l.Fields, k)
	}
	l.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepo) AppendField(ctx context.Context, id, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	l.Fields[field] = append(listing.Values(l.Fields[field]), value)
	l.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepo) ReplaceField(ctx context.Context, id, field string, value any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	prev := l.Fields[field]
	l.Fields[field] = value
	l.UpdatedAt = m.now().UTC()
	return prev, nil
}

func (m *MemoryRepo) SetStatus(ctx context.Context, id string, status listing.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) (*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.store, id)
	return l, nil
}
