package engine

import (
	"errors"
	"fmt"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/model"
)

// Result holds the scores that could be computed and why the others were dropped.
type Result struct {
	Metrics map[string]model.ComputedMetric
	Skipped map[string]error
}

// ComputeMetric scores one record and carries its metadata through unchanged.
func ComputeMetric(rec model.TickerRecord, interval calculator.Interval, lookback int) (model.ComputedMetric, error) {
	score, err := calculator.CalculateSVIX(rec.History, interval, lookback)
	if err != nil {
		return model.ComputedMetric{}, err
	}
	return model.ComputedMetric{
		Name:         rec.Metadata.Name,
		CurrentPrice: rec.Metadata.CurrentPrice,
		MarketCap:    rec.Metadata.MarketCap,
		Score:        score,
	}, nil
}

// Compute scores every record independently. Tickers whose window is undefined land in
// Skipped and never abort the batch; only a malformed interval or lookback fails the call.
func Compute(records map[string]model.TickerRecord, interval calculator.Interval, lookback int) (*Result, error) {
	if _, err := calculator.WindowSize(interval, lookback); err != nil {
		return nil, err
	}

	res := &Result{
		Metrics: make(map[string]model.ComputedMetric, len(records)),
		Skipped: make(map[string]error),
	}
	for ticker, rec := range records {
		m, err := ComputeMetric(rec, interval, lookback)
		if err != nil {
			if !errors.Is(err, calculator.ErrUndefinedMetric) {
				err = fmt.Errorf("%w: %v", calculator.ErrUndefinedMetric, err)
			}
			res.Skipped[ticker] = err
			continue
		}
		res.Metrics[ticker] = m
	}
	return res, nil
}
