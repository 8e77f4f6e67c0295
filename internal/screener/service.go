package screener

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/collector"
	"SVIXScreener/internal/engine"
	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/model"
	"SVIXScreener/internal/store"
	"SVIXScreener/internal/table"
)

// Universe supplies the set of tickers to screen.
type Universe interface {
	Tickers(ctx context.Context) ([]string, error)
}

// StaticUniverse is a fixed ticker list.
type StaticUniverse []string

func (u StaticUniverse) Tickers(_ context.Context) ([]string, error) {
	return dedupe(u), nil
}

// Query is one screener request.
type Query struct {
	Interval      calculator.Interval
	Lookback      int
	Threshold     float64
	Search        string
	SortKey       table.SortKey
	ShowMarketCap bool
	Limit         int
}

// Result is a rendered screener table plus the refresh it was computed from.
type Result struct {
	Query    Query
	Table    table.Table
	Skipped  int
	LastDate time.Time
}

// Service owns the fetched-data cache and runs queries against it.
//
// mu guards only the snapshot pointer. fillMu serializes downloads, so concurrent callers
// of a cold cache share one collection while holders of a fresh snapshot never wait on a
// running refresh.
type Service struct {
	mu       sync.Mutex
	snapshot *model.Snapshot
	fillMu   sync.Mutex

	collector *collector.Collector
	universe  Universe
	store     store.Store
	ttl       time.Duration
	suffix    string
	Now       func() time.Time
	logger    logger.Logger
}

// NewService creates a Service. Fetched data stays valid for ttl or until Refresh.
func NewService(col *collector.Collector, u Universe, st store.Store, ttl time.Duration, suffix string, l logger.Logger) *Service {
	return &Service{
		collector: col,
		universe:  u,
		store:     st,
		ttl:       ttl,
		suffix:    suffix,
		Now:       time.Now,
		logger:    l,
	}
}

func (s *Service) fresh(snap *model.Snapshot) bool {
	return snap != nil && s.Now().Sub(snap.FetchedAt) < s.ttl
}

func (s *Service) cached() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fresh(s.snapshot) {
		return s.snapshot
	}
	return nil
}

func (s *Service) setSnapshot(snap *model.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// Snapshot returns cached data while it is younger than the TTL, falling back to the
// store and finally to a fresh collection.
func (s *Service) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	if snap := s.cached(); snap != nil {
		return snap, nil
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if snap := s.cached(); snap != nil {
		return snap, nil
	}

	stored, err := s.store.LatestSnapshot(ctx)
	switch {
	case err == nil && s.fresh(stored):
		s.logger.Infof("loaded cached snapshot %s from %s", stored.ID, stored.FetchedAt.Format(time.RFC3339))
		s.setSnapshot(stored)
		return stored, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		s.logger.Warnf("%s: read cached snapshot", err)
	}

	return s.collect(ctx)
}

// Refresh drops every cached copy and downloads fresh data. Readers keep the previous
// in-memory snapshot until the download succeeds; on failure it is dropped.
func (s *Service) Refresh(ctx context.Context) (*model.Snapshot, error) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	if err := s.store.Invalidate(ctx); err != nil {
		s.logger.Warnf("%s: invalidate store", err)
	}
	snap, err := s.collect(ctx)
	if err != nil {
		s.setSnapshot(nil)
		return nil, err
	}
	return snap, nil
}

// collect must be called with fillMu held.
func (s *Service) collect(ctx context.Context) (*model.Snapshot, error) {
	tickers, err := s.tickers(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.collector.Collect(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Errorf("%s: save snapshot", err)
	}
	s.setSnapshot(snap)
	return snap, nil
}

func (s *Service) tickers(ctx context.Context) ([]string, error) {
	epoch := s.Now().Format("2006-01-02")
	cached, err := s.store.LoadUniverse(ctx, epoch)
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warnf("%s: read cached universe", err)
	}

	tickers, err := s.universe.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickers: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("load tickers: empty universe")
	}
	if err := s.store.SaveUniverse(ctx, epoch, tickers); err != nil {
		s.logger.Warnf("%s: save universe", err)
	}
	return tickers, nil
}

// Query computes scores for the cached snapshot and builds the display table.
func (s *Service) Query(ctx context.Context, q Query) (*Result, error) {
	if _, err := calculator.WindowSize(q.Interval, q.Lookback); err != nil {
		return nil, err
	}
	if math.IsNaN(q.Threshold) || math.IsInf(q.Threshold, 0) {
		return nil, fmt.Errorf("%w: threshold must be a finite number, got %v", calculator.ErrInvalidArgument, q.Threshold)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	res, err := engine.Compute(snap.Records, q.Interval, q.Lookback)
	if err != nil {
		return nil, err
	}
	for ticker, reason := range res.Skipped {
		s.logger.Debugf("%s: %s excluded from %s/%d", reason, ticker, q.Interval, q.Lookback)
	}

	tb := table.Build(res.Metrics, table.Options{
		Search:        q.Search,
		Threshold:     q.Threshold,
		SortKey:       q.SortKey,
		ShowMarketCap: q.ShowMarketCap,
		Suffix:        s.suffix,
		Limit:         q.Limit,
	})
	return &Result{
		Query:    q,
		Table:    tb,
		Skipped:  len(res.Skipped),
		LastDate: snap.LastDate,
	}, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
