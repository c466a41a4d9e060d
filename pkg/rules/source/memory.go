package source

import (
	"context"
	"sync"

	"complyhq/sentinel/pkg/rules"
)

// MemorySource is an in-memory rule source for testing.
type MemorySource struct {
	mu    sync.RWMutex
	rules []*rules.Rule
}

// NewMemorySource creates a new in-memory rule source.
func NewMemorySource(rs ...*rules.Rule) *MemorySource {
	return &MemorySource{rules: rs}
}

// LoadRules returns a copy of the stored rule slice.
func (s *MemorySource) LoadRules(ctx context.Context) ([]*rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*rules.Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// SetRules replaces the stored rules.
func (s *MemorySource) SetRules(rs []*rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rs
}
