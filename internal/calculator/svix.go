package calculator

import (
	"fmt"
	"math"

	"SVIXScreener/internal/model"
)

// CalculateSVIX returns 1 - (close - low) / (high - low) over the window selected by
// interval and lookback, where close is the last bar's close. A score near 1 means the
// price sits at its window low, near 0 at its window high.
func CalculateSVIX(series model.HistoricalSeries, interval Interval, lookback int) (float64, error) {
	window, err := SelectWindow(series, interval, lookback)
	if err != nil {
		return 0, err
	}
	last, _ := window.Last()
	high, low, err := CalculateRange(window)
	if err != nil {
		return 0, err
	}
	return scoreInRange(last.Close, high, low)
}

func scoreInRange(latestClose, high, low float64) (float64, error) {
	for _, v := range []float64{latestClose, high, low} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: non-finite price in window", ErrUndefinedMetric)
		}
	}
	if high <= low {
		return 0, fmt.Errorf("%w: no range (high=%.4f low=%.4f)", ErrUndefinedMetric, high, low)
	}
	return 1 - (latestClose-low)/(high-low), nil
}
