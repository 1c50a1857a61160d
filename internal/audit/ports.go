package audit

import (
	"context"
	"time"

	"chronos/pkg/domain"
)

// Store is the persistence boundary for audit entries. Implementations keep
// entries newest-first and must never mutate a stored entry.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filters) ([]Entry, int, error)
	Since(ctx context.Context, t time.Time) ([]Entry, error)
	ByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
	ByUser(ctx context.Context, userID domain.UserID, since time.Time) ([]Entry, error)
	CountByUser(ctx context.Context, userID domain.UserID, since time.Time, failedOnly bool) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
