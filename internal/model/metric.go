package model

import "github.com/guregu/null/v6"

// ComputedMetric is the SVIX score of one ticker plus its metadata, unchanged.
type ComputedMetric struct {
	Name         null.String
	CurrentPrice null.Float
	MarketCap    null.Float
	Score        float64 // 0 = at window high, 1 = at window low
}

// DisplayRow is the presentation projection of a ComputedMetric.
// MarketCap is left invalid when the market cap column is hidden.
type DisplayRow struct {
	Symbol    string      `json:"symbol"`
	Name      null.String `json:"name"`
	Price     null.Float  `json:"price"`
	Score     float64     `json:"svix"`
	MarketCap null.Float  `json:"market_cap,omitzero"`
}
