package violations

import (
	"context"
	"time"

	"complyhq/sentinel/pkg/rules"
)

// Repository persists violations produced by the rule evaluator.
type Repository interface {
	// Save stores a new violation. Saving an id twice is an error.
	Save(ctx context.Context, v *rules.Violation) error

	// Get returns a violation by id, or a *NotFoundError.
	Get(ctx context.Context, id string) (*rules.Violation, error)

	// ListByTenant returns the tenant's violations matching filter, newest first.
	ListByTenant(ctx context.Context, tenantID string, filter *Filter) ([]*rules.Violation, error)

	// UpdateStatus changes the review status of a violation. Statuses outside the
	// enum are rejected with ErrInvalidStatus.
	UpdateStatus(ctx context.Context, id string, status rules.Status) error

	// Close releases backend resources.
	Close() error
}

// Filter narrows ListByTenant results. Zero values match everything.
type Filter struct {
	Statuses   []rules.Status
	RiskLevels []rules.RiskLevel
	RuleID     string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Matches reports whether v satisfies the filter.
func (f *Filter) Matches(v *rules.Violation) bool {
	if f == nil {
		return true
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, v.Status) {
		return false
	}
	if len(f.RiskLevels) > 0 && !contains(f.RiskLevels, v.Risk.Level) {
		return false
	}
	if f.RuleID != "" && v.RuleID != f.RuleID {
		return false
	}
	if !f.Since.IsZero() && v.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !v.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

func contains[T comparable](items []T, want T) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
