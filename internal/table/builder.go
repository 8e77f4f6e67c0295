package table

import (
	"fmt"
	"sort"
	"strings"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/model"

	"github.com/guregu/null/v6"
)

// SortKey selects the column rows are ordered by, descending.
type SortKey string

const (
	SortMarketCap SortKey = "market_cap"
	SortScore     SortKey = "svix"
	SortPrice     SortKey = "price"
)

// ParseSortKey accepts the canonical keys plus a few spellings used by chat commands.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "market_cap", "marketcap", "mcap":
		return SortMarketCap, nil
	case "svix", "score":
		return SortScore, nil
	case "price":
		return SortPrice, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q", calculator.ErrInvalidArgument, s)
	}
}

// Options controls filtering, ordering and projection.
type Options struct {
	Search        string  // case-insensitive substring of symbol or name; empty matches all
	Threshold     float64 // closed lower bound on the score
	SortKey       SortKey
	ShowMarketCap bool
	Suffix        string // exchange suffix stripped from symbols, e.g. ".SR"
	Limit         int    // 0 keeps every row
}

// Table is the display-ready result.
type Table struct {
	Columns []string
	Rows    []model.DisplayRow
}

// Build filters, sorts and projects the computed metrics.
//
// Rows sort descending on the chosen key with absent values last; ties break on symbol
// ascending so the output does not depend on map iteration order.
func Build(metrics map[string]model.ComputedMetric, opts Options) Table {
	search := strings.ToLower(opts.Search)
	rows := make([]model.DisplayRow, 0, len(metrics))
	for ticker, m := range metrics {
		if m.Score < opts.Threshold {
			continue
		}
		symbol := displaySymbol(ticker, opts.Suffix)
		if !matches(symbol, m.Name, search) {
			continue
		}
		rows = append(rows, model.DisplayRow{
			Symbol:    symbol,
			Name:      m.Name,
			Price:     m.CurrentPrice,
			Score:     m.Score,
			MarketCap: m.MarketCap,
		})
	}

	key := opts.SortKey
	if key == "" {
		key = SortMarketCap
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := sortValue(rows[i], key), sortValue(rows[j], key)
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && a.Float64 != b.Float64 {
			return a.Float64 > b.Float64
		}
		return rows[i].Symbol < rows[j].Symbol
	})

	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	cols := []string{"Symbol", "Name", "Price", "SVIX"}
	if opts.ShowMarketCap {
		cols = append(cols, "Market Cap")
	} else {
		for i := range rows {
			rows[i].MarketCap = null.Float{}
		}
	}
	return Table{Columns: cols, Rows: rows}
}

func displaySymbol(ticker, suffix string) string {
	if suffix == "" {
		return ticker
	}
	return strings.TrimSuffix(ticker, suffix)
}

// matches reports whether search is a substring of symbol or name. search is lower-cased.
func matches(symbol string, name null.String, search string) bool {
	if search == "" {
		return true
	}
	if strings.Contains(strings.ToLower(symbol), search) {
		return true
	}
	return name.Valid && strings.Contains(strings.ToLower(name.String), search)
}

func sortValue(r model.DisplayRow, key SortKey) null.Float {
	switch key {
	case SortScore:
		return null.FloatFrom(r.Score)
	case SortPrice:
		return r.Price
	default:
		return r.MarketCap
	}
}
