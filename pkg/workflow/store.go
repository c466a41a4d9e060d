package workflow

import "context"

// Store persists workflows and their transition history.
//
// Implementations must return copies so callers never alias stored state, and must
// apply Update atomically: the version check, the workflow write and the transition
// append either all happen or none do.
type Store interface {
	// Create stores a new workflow and sets its Version to 1.
	Create(ctx context.Context, wf *Workflow) error

	// Get returns the workflow or a *NotFoundError.
	Get(ctx context.Context, id string) (*Workflow, error)

	// Update replaces the workflow if the stored version equals expectedVersion,
	// appending t when non-nil. On success wf.Version is incremented. A stale
	// version yields ErrVersionConflict.
	Update(ctx context.Context, wf *Workflow, expectedVersion int64, t *Transition) error

	// ListByViolation returns workflows created for a violation, oldest first.
	ListByViolation(ctx context.Context, violationID string) ([]*Workflow, error)

	// ListByTenant returns a tenant's workflows, oldest first.
	ListByTenant(ctx context.Context, tenantID string) ([]*Workflow, error)

	// ListActive returns every workflow whose status is Active, oldest first.
	ListActive(ctx context.Context) ([]*Workflow, error)

	// ListTransitions returns the audit trail of a workflow in append order.
	ListTransitions(ctx context.Context, workflowID string) ([]*Transition, error)

	// Close releases backend resources.
	Close() error
}
