package store

import (
	"context"

	"SVIXScreener/internal/model"
)

// NoopStore is used when SQLite is not configured. It never holds anything.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) SaveSnapshot(_ context.Context, _ *model.Snapshot) error { return nil }
func (n *NoopStore) LatestSnapshot(_ context.Context) (*model.Snapshot, error) {
	return nil, ErrNotFound
}
func (n *NoopStore) SaveUniverse(_ context.Context, _ string, _ []string) error { return nil }
func (n *NoopStore) LoadUniverse(_ context.Context, _ string) ([]string, error) {
	return nil, ErrNotFound
}
func (n *NoopStore) Invalidate(_ context.Context) error { return nil }
func (n *NoopStore) Close() error                       { return nil }
