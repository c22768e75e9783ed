package revision

import (
	"context"

	"github.com/trezcool/masomo-curriculum/core"
)

// Repository persists revisions. Implementations must be safe for concurrent use
// and must return copies: callers never share memory with the store.
type Repository interface {
	// CreateRevision stores rev. rev.ID is set by the caller.
	CreateRevision(ctx context.Context, rev Revision) (Revision, error)
	// GetRevision returns ErrNotFound for unknown IDs.
	GetRevision(ctx context.Context, id string) (Revision, error)
	// UpdateRevision saves the stage, status and updated_at of rev and appends tr to its history.
	UpdateRevision(ctx context.Context, rev Revision, tr Transition) (Revision, error)
	// QueryRevisions applies filter (nil for all) and ordering. Default order is creation order.
	QueryRevisions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Revision, error)
}
