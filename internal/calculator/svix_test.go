package calculator

import (
	"errors"
	"math"
	"testing"
	"time"

	"SVIXScreener/internal/model"
)

// dailySeries builds consecutive daily bars ending on end, one per close.
func dailySeries(end time.Time, closes []float64) model.HistoricalSeries {
	s := make(model.HistoricalSeries, len(closes))
	start := end.AddDate(0, 0, -(len(closes) - 1))
	for i, c := range closes {
		s[i] = model.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return s
}

func TestCalculateSVIX_AtWindowHighAndLow(t *testing.T) {
	end := day(2026, 10, 15)

	score, err := CalculateSVIX(dailySeries(end, []float64{10, 12, 9, 15}), Daily, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0 {
		t.Errorf("close at window high: expected 0, got %.4f", score)
	}

	score, err = CalculateSVIX(dailySeries(end, []float64{10, 12, 15, 9}), Daily, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 1 {
		t.Errorf("close at window low: expected 1, got %.4f", score)
	}
}

func TestCalculateSVIX_UsesHighLowNotClose(t *testing.T) {
	s := model.HistoricalSeries{
		{Time: day(2026, 10, 13), High: 20, Low: 10, Close: 15},
		{Time: day(2026, 10, 14), High: 18, Low: 12, Close: 14},
		{Time: day(2026, 10, 15), High: 16, Low: 13, Close: 12.5},
	}
	score, err := CalculateSVIX(s, Daily, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 1 - (12.5-10)/(20-10)
	if math.Abs(score-want) > 1e-12 {
		t.Errorf("expected %.4f, got %.4f", want, score)
	}
}

func TestCalculateSVIX_DailyTakesTrailingBars(t *testing.T) {
	// lookback 5 spans 7 bars; the early spike at 100 must fall outside the window.
	closes := []float64{100, 1, 2, 3, 4, 5, 6, 7, 8}
	score, err := CalculateSVIX(dailySeries(day(2026, 10, 15), closes), Daily, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0 {
		t.Errorf("expected 0 (close 8 is window high), got %.4f", score)
	}
}

func TestCalculateSVIX_DailyNotEnoughBars(t *testing.T) {
	_, err := CalculateSVIX(dailySeries(day(2026, 10, 15), []float64{1, 2, 3}), Daily, 5)
	if !errors.Is(err, ErrUndefinedMetric) {
		t.Errorf("expected ErrUndefinedMetric, got %v", err)
	}
}

func TestCalculateSVIX_FlatWindow(t *testing.T) {
	_, err := CalculateSVIX(dailySeries(day(2026, 10, 15), []float64{7, 7, 7, 7}), Daily, 4)
	if !errors.Is(err, ErrUndefinedMetric) {
		t.Errorf("expected ErrUndefinedMetric, got %v", err)
	}
}

func TestCalculateSVIX_NonFinitePrice(t *testing.T) {
	s := dailySeries(day(2026, 10, 15), []float64{1, 2, 3, 4})
	s[3].Close = math.NaN()
	if _, err := CalculateSVIX(s, Daily, 4); !errors.Is(err, ErrUndefinedMetric) {
		t.Errorf("expected ErrUndefinedMetric, got %v", err)
	}
}

func TestCalculateSVIX_WeeklyNoAnchorBars(t *testing.T) {
	// Sunday to Wednesday only.
	s := dailySeries(day(2026, 10, 14), []float64{5, 6, 7, 8})
	_, err := CalculateSVIX(s, Weekly, 2)
	if !errors.Is(err, ErrUndefinedMetric) {
		t.Errorf("expected ErrUndefinedMetric, got %v", err)
	}
}

func TestCalculateSVIX_WeeklyUsesAnchorBarsOnly(t *testing.T) {
	s := calendarSeries(day(2026, 9, 1), day(2026, 10, 17))
	for i := range s {
		if s[i].Time.Weekday() != AnchorWeekday {
			// Off-anchor extremes must not leak into the weekly window.
			s[i].High, s[i].Low = 1000, 0
		}
	}
	window, err := SelectWindow(s, Weekly, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(window))
	}
	for _, b := range window {
		if b.Time.Weekday() != time.Thursday {
			t.Errorf("expected Thursday bar, got %s", b.Time.Weekday())
		}
	}
	if last, _ := window.Last(); !last.Time.Equal(day(2026, 10, 15)) {
		t.Errorf("expected last anchor 2026-10-15, got %s", last.Time.Format("2006-01-02"))
	}

	score, err := CalculateSVIX(s, Weekly, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score < 0 || score > 1 {
		t.Errorf("expected score within [0,1], got %.4f", score)
	}
}

func TestCalculateSVIX_WeeklyShortSeriesStillScores(t *testing.T) {
	s := calendarSeries(day(2026, 10, 1), day(2026, 10, 17))
	window, err := SelectWindow(s, Weekly, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(window) != 3 {
		t.Errorf("expected all 3 available anchors, got %d", len(window))
	}
}

func TestCalculateSVIX_Idempotent(t *testing.T) {
	s := calendarSeries(day(2025, 10, 1), day(2026, 10, 17))
	first, err := CalculateSVIX(s, Weekly, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := CalculateSVIX(s, Weekly, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected identical scores, got %v and %v", first, second)
	}
}

func TestCalculateRange_Empty(t *testing.T) {
	if _, _, err := CalculateRange(nil); !errors.Is(err, ErrUndefinedMetric) {
		t.Errorf("expected ErrUndefinedMetric, got %v", err)
	}
}
