package services

import (
	"fmt"
	"time"

	"storefront-backend/models"
)

// Window is an inclusive billing period.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeeklyWindow spans today through the end of the sixth day after today.
func WeeklyWindow(now time.Time) Window {
	start := startOfDay(now)
	return Window{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Millisecond)}
}

// MonthlyWindow spans the calendar month containing now.
func MonthlyWindow(now time.Time) Window {
	y, m, _ := now.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Millisecond)}
}

// WindowFor returns the fresh window for a user's payment period.
func WindowFor(period string, now time.Time) (Window, error) {
	switch period {
	case models.PaymentPeriodWeekly:
		return WeeklyWindow(now), nil
	case models.PaymentPeriodMonthly:
		return MonthlyWindow(now), nil
	default:
		return Window{}, fmt.Errorf("unknown payment period %q", period)
	}
}
