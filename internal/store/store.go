package store

import (
	"context"
	"errors"

	"SVIXScreener/internal/model"
)

// ErrNotFound is returned when nothing is cached.
var ErrNotFound = errors.New("not found in store")

// Store caches fetched data across restarts. It holds only the latest refresh; a new
// snapshot replaces the previous one.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
	LatestSnapshot(ctx context.Context) (*model.Snapshot, error)
	SaveUniverse(ctx context.Context, epoch string, tickers []string) error
	LoadUniverse(ctx context.Context, epoch string) ([]string, error)
	Invalidate(ctx context.Context) error
	Close() error
}
