package ports

import (
	"context"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// CheckpointStore defines the interface for persisting workflow snapshots.
// A Load must return every field exactly as it was saved, which is what makes
// an interrupted instance resumable.
type CheckpointStore interface {
	// Save persists the state for a given instance ID, replacing any earlier snapshot.
	Save(ctx context.Context, instanceID string, state *domain.State) error

	// Load retrieves the state for a given instance ID.
	// Returns domain.ErrInstanceNotFound if the instance does not exist.
	Load(ctx context.Context, instanceID string) (*domain.State, error)

	// Delete removes the state for a given instance ID.
	Delete(ctx context.Context, instanceID string) error

	// List returns the IDs of all stored instances.
	List(ctx context.Context) ([]string, error)
}
