package notify

import (
	"context"
	"errors"

	"complyhq/sentinel/pkg/workflow"
)

// Multi publishes every event to each publisher in order. All publishers are
// attempted; their errors are joined.
type Multi []workflow.Publisher

// Publish implements workflow.Publisher.
func (m Multi) Publish(ctx context.Context, ev workflow.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
