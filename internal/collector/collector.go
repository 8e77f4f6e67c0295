package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/model"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
)

// ErrNoData means no ticker in the batch could be fetched.
var ErrNoData = errors.New("no market data fetched")

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price    float64
	Bars     map[string]model.HistoricalSeries
	Metadata map[string]model.TickerMetadata
	Fail     map[string]error
	To       time.Time // end of generated history; zero means now
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(_ context.Context, symbol string, start time.Time) (model.HistoricalSeries, error) {
	if err := m.Fail[symbol]; err != nil {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	to := m.To
	if to.IsZero() {
		to = time.Now()
	}
	return generateMockBars(m.Price, start, to), nil
}

func (m *MockFetcher) FetchMetadata(_ context.Context, symbol string) (model.TickerMetadata, error) {
	if md, ok := m.Metadata[symbol]; ok {
		return md, nil
	}
	return model.TickerMetadata{CurrentPrice: null.FloatFrom(m.Price)}, nil
}

// generateMockBars emits one bar per Sunday-Thursday trading day in [from, to].
func generateMockBars(basePrice float64, from, to time.Time) model.HistoricalSeries {
	var bars model.HistoricalSeries
	for d, i := from, 0; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Friday || wd == time.Saturday {
			continue
		}
		p := basePrice * (1 + float64(i%20-10)*0.002)
		bars = append(bars, model.Bar{
			Time:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return bars
}

// Collector assembles TickerRecords for a universe of tickers.
type Collector struct {
	Fetcher      Fetcher
	HistoryWeeks int
	Workers      int
	Now          func() time.Time
	logger       logger.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, historyWeeks, workers int, l logger.Logger) *Collector {
	if workers <= 0 {
		workers = 1
	}
	return &Collector{
		Fetcher:      fetcher,
		HistoryWeeks: historyWeeks,
		Workers:      workers,
		Now:          time.Now,
		logger:       l,
	}
}

// Collect fetches history and metadata for every ticker. A ticker that fails is logged
// and left out; ErrNoData is returned only when every ticker fails.
func (c *Collector) Collect(ctx context.Context, tickers []string) (*model.Snapshot, error) {
	now := c.Now()
	start, err := calculator.FetchStartDate(now, calculator.Weekly, c.HistoryWeeks)
	if err != nil {
		return nil, fmt.Errorf("history window: %w", err)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		records = make(map[string]model.TickerRecord, len(tickers))
		failed  int
		lastErr error
		sem     = make(chan struct{}, c.Workers)
	)
	for _, ticker := range tickers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			rec, err := c.collectOne(ctx, ticker, start)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warnf("%s: skip ticker %s", err, ticker)
				failed++
				lastErr = err
				return
			}
			records[ticker] = rec
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 && len(tickers) > 0 {
		return nil, fmt.Errorf("%w: %d tickers failed, last error: %v", ErrNoData, failed, lastErr)
	}

	snap := &model.Snapshot{
		ID:        uuid.NewString(),
		Epoch:     now.Format("2006-01-02"),
		FetchedAt: now,
		Records:   records,
	}
	for _, rec := range records {
		if last, ok := rec.History.Last(); ok && last.Time.After(snap.LastDate) {
			snap.LastDate = last.Time
		}
	}
	c.logger.Infof("collected %d/%d tickers via %s (%d failed)", len(records), len(tickers), c.Fetcher.Name(), failed)
	return snap, nil
}

func (c *Collector) collectOne(ctx context.Context, ticker string, start time.Time) (model.TickerRecord, error) {
	bars, err := c.Fetcher.FetchHistory(ctx, ticker, start)
	if err != nil {
		return model.TickerRecord{}, fmt.Errorf("fetch history: %w", err)
	}
	md, err := c.Fetcher.FetchMetadata(ctx, ticker)
	if err != nil {
		// Metadata is optional; the score only needs the history.
		c.logger.Debugf("%s: metadata unavailable for %s", err, ticker)
		md = model.TickerMetadata{}
	}
	return model.TickerRecord{Metadata: md, History: normalize(bars)}, nil
}
