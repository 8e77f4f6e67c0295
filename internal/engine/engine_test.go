package engine

import (
	"errors"
	"testing"
	"time"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/model"

	"github.com/guregu/null/v6"
)

var ast = time.FixedZone("AST", 3*60*60)

// seriesFrom builds consecutive daily bars ending on 2026-10-17 (Saturday).
func seriesFrom(closes ...float64) model.HistoricalSeries {
	end := time.Date(2026, 10, 17, 0, 0, 0, 0, ast)
	s := make(model.HistoricalSeries, len(closes))
	for i, c := range closes {
		s[i] = model.Bar{
			Time:  end.AddDate(0, 0, i-len(closes)+1),
			Open:  c,
			High:  c + 0.5,
			Low:   c - 0.5,
			Close: c,
		}
	}
	return s
}

func TestCompute_SkipsUndefinedTickers(t *testing.T) {
	records := map[string]model.TickerRecord{
		"2222.SR": {
			Metadata: model.TickerMetadata{
				Name:         null.StringFrom("Saudi Arabian Oil Co"),
				CurrentPrice: null.FloatFrom(27.5),
				MarketCap:    null.FloatFrom(6.6e12),
			},
			History: seriesFrom(10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23),
		},
		"1120.SR": {History: seriesFrom(5, 6)}, // Friday and Saturday only
		"4321.SR": {},
	}

	res, err := Compute(records, calculator.Weekly, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(res.Metrics))
	}
	m, ok := res.Metrics["2222.SR"]
	if !ok {
		t.Fatal("expected 2222.SR in metrics")
	}
	if m.Name.String != "Saudi Arabian Oil Co" || m.CurrentPrice.Float64 != 27.5 || m.MarketCap.Float64 != 6.6e12 {
		t.Errorf("metadata not passed through: %+v", m)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %d", len(res.Skipped))
	}
	for ticker, err := range res.Skipped {
		if !errors.Is(err, calculator.ErrUndefinedMetric) {
			t.Errorf("%s: expected ErrUndefinedMetric, got %v", ticker, err)
		}
	}
}

func TestCompute_FlatRangeExcluded(t *testing.T) {
	flat := seriesFrom(8, 8, 8, 8)
	for i := range flat {
		flat[i].High, flat[i].Low = 8, 8
	}
	res, err := Compute(map[string]model.TickerRecord{"FLAT": {History: flat}}, calculator.Daily, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := res.Metrics["FLAT"]; ok {
		t.Error("flat series must not produce a metric")
	}
	if _, ok := res.Skipped["FLAT"]; !ok {
		t.Error("flat series should be reported as skipped")
	}
}

func TestCompute_MissingMetadataStillScores(t *testing.T) {
	res, err := Compute(map[string]model.TickerRecord{"X": {History: seriesFrom(3, 2, 1, 4)}}, calculator.Daily, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := res.Metrics["X"]
	if !ok {
		t.Fatal("expected metric for X")
	}
	if m.Name.Valid || m.CurrentPrice.Valid || m.MarketCap.Valid {
		t.Errorf("expected absent metadata to stay absent: %+v", m)
	}
	// close 4, high 4.5, low 0.5
	if want := 1 - (4-0.5)/(4.5-0.5); m.Score != want {
		t.Errorf("expected %.4f, got %.4f", want, m.Score)
	}
}

func TestCompute_InvalidArguments(t *testing.T) {
	records := map[string]model.TickerRecord{"X": {History: seriesFrom(1, 2)}}
	if _, err := Compute(records, calculator.Daily, 0); !errors.Is(err, calculator.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for lookback 0, got %v", err)
	}
	if _, err := Compute(records, calculator.Interval(42), 20); !errors.Is(err, calculator.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown interval, got %v", err)
	}
}

func TestCompute_EmptyInput(t *testing.T) {
	res, err := Compute(nil, calculator.Weekly, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Metrics) != 0 || len(res.Skipped) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}
