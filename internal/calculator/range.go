package calculator

import (
	"fmt"
	"math"

	"SVIXScreener/internal/model"
)

// CalculateRange scans the bars and returns the highest high and lowest low.
func CalculateRange(bars model.HistoricalSeries) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, fmt.Errorf("%w: no bars provided", ErrUndefinedMetric)
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, nil
}

// SelectWindow picks the working subset of the series.
//
// Weekly keeps bars dated on AnchorWeekday and takes the last lookback of them; a series
// without anchor bars has no window. Daily takes the last DailyBars(lookback) bars and
// requires the series to hold that many.
func SelectWindow(series model.HistoricalSeries, interval Interval, lookback int) (model.HistoricalSeries, error) {
	size, err := WindowSize(interval, lookback)
	if err != nil {
		return nil, err
	}

	if interval == Weekly {
		anchors := make(model.HistoricalSeries, 0, len(series)/5+1)
		for _, b := range series {
			if b.Time.Weekday() == AnchorWeekday {
				anchors = append(anchors, b)
			}
		}
		if len(anchors) == 0 {
			return nil, fmt.Errorf("%w: no %s bars in series", ErrUndefinedMetric, AnchorWeekday)
		}
		if len(anchors) > size {
			anchors = anchors[len(anchors)-size:]
		}
		return anchors, nil
	}

	if len(series) < size {
		return nil, fmt.Errorf("%w: need %d daily bars, have %d", ErrUndefinedMetric, size, len(series))
	}
	return series[len(series)-size:], nil
}
