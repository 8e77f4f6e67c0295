package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// Bar represents a single daily candlestick bar. Time carries the exchange-local
// trading date so weekday checks follow the exchange calendar.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// HistoricalSeries is a chronologically ordered run of bars for one ticker.
// Dates are unique and strictly increasing.
type HistoricalSeries []Bar

// Last returns the chronologically last bar.
func (s HistoricalSeries) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// TickerMetadata is a static snapshot of descriptive fields. Every field is optional.
type TickerMetadata struct {
	Name         null.String
	CurrentPrice null.Float
	MarketCap    null.Float
}

// TickerRecord pairs a ticker's metadata with its fetched history.
type TickerRecord struct {
	Metadata TickerMetadata
	History  HistoricalSeries
}

// Snapshot is one refresh cycle worth of fetched data.
type Snapshot struct {
	ID        string
	Epoch     string // refresh day, YYYY-MM-DD
	FetchedAt time.Time
	LastDate  time.Time // latest bar date across all series
	Records   map[string]TickerRecord
}
