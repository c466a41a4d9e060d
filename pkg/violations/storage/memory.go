package storage

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/violations"
)

// MemoryStorage is an in-memory violation repository for tests and one-shot CLI runs.
// Records are copied on the way in and out so callers cannot mutate stored state.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*rules.Violation
	order   []string
}

// NewMemoryStorage creates an empty in-memory repository.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*rules.Violation),
	}
}

// Save stores a copy of v.
func (m *MemoryStorage) Save(ctx context.Context, v *rules.Violation) error {
	if v == nil || v.ID == "" {
		return violations.NewStorageError("memory", "save", fmt.Errorf("violation id is required"))
	}
	if !v.Status.Valid() {
		return fmt.Errorf("%w: %q", violations.ErrInvalidStatus, v.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[v.ID]; exists {
		return fmt.Errorf("%w: %s", violations.ErrDuplicate, v.ID)
	}
	m.records[v.ID] = cloneViolation(v)
	m.order = append(m.order, v.ID)
	return nil
}

// Get returns a copy of the stored violation.
func (m *MemoryStorage) Get(ctx context.Context, id string) (*rules.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[id]
	if !ok {
		return nil, &violations.NotFoundError{ID: id}
	}
	return cloneViolation(v), nil
}

// ListByTenant returns matching violations, newest first.
func (m *MemoryStorage) ListByTenant(ctx context.Context, tenantID string, filter *violations.Filter) ([]*rules.Violation, error) {
	m.mu.RLock()
	var out []*rules.Violation
	for _, id := range m.order {
		v := m.records[id]
		if v.TenantID != tenantID || !filter.Matches(v) {
			continue
		}
		out = append(out, cloneViolation(v))
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus changes the status of a stored violation.
func (m *MemoryStorage) UpdateStatus(ctx context.Context, id string, status rules.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", violations.ErrInvalidStatus, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.records[id]
	if !ok {
		return &violations.NotFoundError{ID: id}
	}
	v.Status = status
	return nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}

func cloneViolation(v *rules.Violation) *rules.Violation {
	c := *v
	c.Data = maps.Clone(v.Data)
	return &c
}
