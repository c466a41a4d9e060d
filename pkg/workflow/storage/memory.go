package storage

import (
	"context"
	"fmt"
	"sync"

	"complyhq/sentinel/pkg/workflow"
)

// MemoryStore keeps workflows in an append-only arena with an id index.
type MemoryStore struct {
	mu          sync.RWMutex
	arena       []*workflow.Workflow
	index       map[string]int
	transitions map[string][]*workflow.Transition
}

// NewMemoryStore creates an empty in-memory workflow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index:       make(map[string]int),
		transitions: make(map[string][]*workflow.Transition),
	}
}

// Create implements workflow.Store.
func (m *MemoryStore) Create(ctx context.Context, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[wf.ID]; exists {
		return fmt.Errorf("%w: %s", workflow.ErrDuplicate, wf.ID)
	}
	wf.Version = 1
	m.index[wf.ID] = len(m.arena)
	m.arena = append(m.arena, wf.Clone())
	return nil
}

// Get implements workflow.Store.
func (m *MemoryStore) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[id]
	if !ok {
		return nil, &workflow.NotFoundError{WorkflowID: id}
	}
	return m.arena[i].Clone(), nil
}

// Update implements workflow.Store.
func (m *MemoryStore) Update(ctx context.Context, wf *workflow.Workflow, expectedVersion int64, t *workflow.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[wf.ID]
	if !ok {
		return &workflow.NotFoundError{WorkflowID: wf.ID}
	}
	if m.arena[i].Version != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d",
			workflow.ErrVersionConflict, wf.ID, m.arena[i].Version, expectedVersion)
	}

	wf.Version = expectedVersion + 1
	m.arena[i] = wf.Clone()
	if t != nil {
		c := *t
		m.transitions[wf.ID] = append(m.transitions[wf.ID], &c)
	}
	return nil
}

// ListByViolation implements workflow.Store.
func (m *MemoryStore) ListByViolation(ctx context.Context, violationID string) ([]*workflow.Workflow, error) {
	return m.filter(func(wf *workflow.Workflow) bool { return wf.ViolationID == violationID }), nil
}

// ListActive implements workflow.Store.
func (m *MemoryStore) ListActive(ctx context.Context) ([]*workflow.Workflow, error) {
	return m.filter(func(wf *workflow.Workflow) bool { return wf.Status.Active() }), nil
}

// ListByTenant implements workflow.Store.
func (m *MemoryStore) ListByTenant(ctx context.Context, tenantID string) ([]*workflow.Workflow, error) {
	return m.filter(func(wf *workflow.Workflow) bool { return wf.TenantID == tenantID }), nil
}

// ListTransitions implements workflow.Store.
func (m *MemoryStore) ListTransitions(ctx context.Context, workflowID string) ([]*workflow.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.transitions[workflowID]
	out := make([]*workflow.Transition, len(src))
	for i, t := range src {
		c := *t
		out[i] = &c
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) filter(keep func(*workflow.Workflow) bool) []*workflow.Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Workflow
	for _, wf := range m.arena {
		if keep(wf) {
			out = append(out, wf.Clone())
		}
	}
	return out
}
