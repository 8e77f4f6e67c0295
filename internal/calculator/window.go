package calculator

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the sampling interval of the score window.
type Interval int

const (
	Daily Interval = iota + 1
	Weekly
)

// AnchorWeekday is the single weekday that represents a week in Weekly mode.
// Thursday closes the Tadawul trading week.
const AnchorWeekday = time.Thursday

// WeekBoundary is the first day of a trading week.
const WeekBoundary = time.Sunday

func (i Interval) String() string {
	switch i {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	default:
		return fmt.Sprintf("Interval(%d)", int(i))
	}
}

// Valid reports whether i is one of the recognised intervals.
func (i Interval) Valid() bool {
	return i == Daily || i == Weekly
}

// ParseInterval maps "Daily" or "Weekly" (any case) to an Interval.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d", "1d":
		return Daily, nil
	case "weekly", "w", "1wk":
		return Weekly, nil
	default:
		return 0, fmt.Errorf("%w: unknown interval %q", ErrInvalidArgument, s)
	}
}

func checkArgs(interval Interval, lookback int) error {
	if !interval.Valid() {
		return fmt.Errorf("%w: unknown interval %d", ErrInvalidArgument, int(interval))
	}
	if lookback <= 0 {
		return fmt.Errorf("%w: lookback must be positive, got %d", ErrInvalidArgument, lookback)
	}
	return nil
}

// DailyBars approximates the number of calendar days spanning lookback trading days,
// adding two weekend days per five-day week. Public holidays are not accounted for.
func DailyBars(lookback int) int {
	return lookback + 2*(lookback/5)
}

// WindowSize returns how many bars the score window retains: DailyBars(lookback) raw
// bars for Daily, lookback anchor-weekday bars for Weekly.
func WindowSize(interval Interval, lookback int) (int, error) {
	if err := checkArgs(interval, lookback); err != nil {
		return 0, err
	}
	if interval == Weekly {
		return lookback, nil
	}
	return DailyBars(lookback), nil
}

// StartDate returns the first calendar date of the window ending at reference (inclusive).
//
// Daily spans DailyBars(lookback) calendar days including reference. Weekly walks back to
// the most recent week boundary strictly before reference and then lookback-1 more weeks,
// so a reference on or after the anchor weekday covers exactly lookback anchor days.
func StartDate(reference time.Time, interval Interval, lookback int) (time.Time, error) {
	return startDate(reference, interval, lookback, lookback-1)
}

// FetchStartDate is StartDate widened by one week in Weekly mode, so the window always
// holds at least lookback anchor days regardless of the reference weekday.
func FetchStartDate(reference time.Time, interval Interval, lookback int) (time.Time, error) {
	return startDate(reference, interval, lookback, lookback)
}

func startDate(reference time.Time, interval Interval, lookback, weeks int) (time.Time, error) {
	if err := checkArgs(interval, lookback); err != nil {
		return time.Time{}, err
	}
	day := truncateDay(reference)
	if interval == Daily {
		return day.AddDate(0, 0, -(DailyBars(lookback) - 1)), nil
	}
	return day.AddDate(0, 0, -(daysSinceBoundary(day) + 7*weeks)), nil
}

// daysSinceBoundary counts back to the previous week boundary, never zero.
func daysSinceBoundary(day time.Time) int {
	d := (int(day.Weekday()) - int(WeekBoundary) + 7) % 7
	if d == 0 {
		d = 7
	}
	return d
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
