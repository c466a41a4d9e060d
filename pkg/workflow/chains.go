package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// ChainStep is one approval level of a chain template.
type ChainStep struct {
	Level             int    `json:"level" yaml:"level"`
	ApproverRole      string `json:"approverRole" yaml:"approver_role"`
	RequiredApprovals int    `json:"requiredApprovals" yaml:"required_approvals"`
	TimeoutHours      int    `json:"timeoutHours" yaml:"timeout_hours"`
}

// ApprovalChain is a read-only template that workflow steps are built from.
type ApprovalChain struct {
	ID    string      `json:"id" yaml:"id"`
	Name  string      `json:"name" yaml:"name"`
	Steps []ChainStep `json:"steps" yaml:"steps"`
}

// Validate checks the chain is usable.
func (c *ApprovalChain) Validate() error {
	if c.ID == "" {
		return &ValidationError{Field: "chain.id", Message: "is required"}
	}
	if len(c.Steps) == 0 {
		return &ValidationError{Field: "chain.steps", Message: fmt.Sprintf("chain %s has no steps", c.ID)}
	}
	for i, s := range c.Steps {
		if s.ApproverRole == "" {
			return &ValidationError{Field: fmt.Sprintf("chain.steps[%d].approverRole", i), Message: "is required"}
		}
		if s.RequiredApprovals < 1 {
			return &ValidationError{Field: fmt.Sprintf("chain.steps[%d].requiredApprovals", i), Message: "must be at least 1"}
		}
		if s.TimeoutHours < 0 {
			return &ValidationError{Field: fmt.Sprintf("chain.steps[%d].timeoutHours", i), Message: "must not be negative"}
		}
	}
	return nil
}

// Default chain ids.
const (
	ChainCritical3Level = "critical-3-level"
	ChainHigh2Level     = "high-2-level"
	ChainStandard1Level = "standard-1-level"
)

// DefaultApprovalChains returns the chains seeded into every new registry.
func DefaultApprovalChains() []ApprovalChain {
	return []ApprovalChain{
		{
			ID:   ChainCritical3Level,
			Name: "Critical Risk - 3 Level Approval",
			Steps: []ChainStep{
				{Level: 1, ApproverRole: "manager", RequiredApprovals: 1, TimeoutHours: 24},
				{Level: 2, ApproverRole: "director", RequiredApprovals: 1, TimeoutHours: 48},
				{Level: 3, ApproverRole: "ciso", RequiredApprovals: 1, TimeoutHours: 72},
			},
		},
		{
			ID:   ChainHigh2Level,
			Name: "High Risk - 2 Level Approval",
			Steps: []ChainStep{
				{Level: 1, ApproverRole: "manager", RequiredApprovals: 1, TimeoutHours: 48},
				{Level: 2, ApproverRole: "director", RequiredApprovals: 1, TimeoutHours: 96},
			},
		},
		{
			ID:   ChainStandard1Level,
			Name: "Standard - 1 Level Approval",
			Steps: []ChainStep{
				{Level: 1, ApproverRole: "manager", RequiredApprovals: 1, TimeoutHours: 120},
			},
		},
	}
}

// ChainForPriority returns the default chain id for a priority.
func ChainForPriority(p Priority) string {
	switch p {
	case PriorityCritical:
		return ChainCritical3Level
	case PriorityHigh:
		return ChainHigh2Level
	default:
		return ChainStandard1Level
	}
}

// ChainRegistry holds approval chains by id. It is safe for concurrent use.
type ChainRegistry struct {
	mu     sync.RWMutex
	chains map[string]ApprovalChain
}

// NewChainRegistry creates a registry seeded with DefaultApprovalChains.
func NewChainRegistry() *ChainRegistry {
	r := &ChainRegistry{chains: make(map[string]ApprovalChain)}
	for _, c := range DefaultApprovalChains() {
		r.chains[c.ID] = c
	}
	return r
}

// Register adds or replaces a chain.
func (r *ChainRegistry) Register(chain ApprovalChain) error {
	if err := chain.Validate(); err != nil {
		return err
	}
	chain.Steps = append([]ChainStep(nil), chain.Steps...)

	r.mu.Lock()
	r.chains[chain.ID] = chain
	r.mu.Unlock()
	return nil
}

// Get returns the chain with the given id.
func (r *ChainRegistry) Get(id string) (ApprovalChain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[id]
	if ok {
		c.Steps = append([]ChainStep(nil), c.Steps...)
	}
	return c, ok
}

// List returns every chain sorted by id.
func (r *ChainRegistry) List() []ApprovalChain {
	r.mu.RLock()
	out := make([]ApprovalChain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
