package collector

import (
	"context"
	"sort"
	"time"

	"SVIXScreener/internal/model"
)

// Fetcher defines the interface for fetching per-ticker market data.
type Fetcher interface {
	// FetchHistory returns daily bars from start up to now, dated in exchange-local time.
	FetchHistory(ctx context.Context, symbol string, start time.Time) (model.HistoricalSeries, error)
	// FetchMetadata returns the static snapshot; missing fields stay invalid.
	FetchMetadata(ctx context.Context, symbol string) (model.TickerMetadata, error)
	Name() string
}

// normalize sorts bars chronologically and keeps the last bar for any repeated date.
func normalize(bars model.HistoricalSeries) model.HistoricalSeries {
	sorted := append(model.HistoricalSeries(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	out := make(model.HistoricalSeries, 0, len(sorted))
	for _, b := range sorted {
		if n := len(out); n > 0 && sameDay(out[n-1].Time, b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
