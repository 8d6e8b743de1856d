package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyWindow(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)
	w := WeeklyWindow(now)

	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 10, 25, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.End)
	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(time.Date(2026, 10, 25, 23, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)))
}

func TestMonthlyWindow(t *testing.T) {
	w := MonthlyWindow(time.Date(2028, 2, 10, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, 29, w.End.Day())
	assert.Equal(t, time.February, w.End.Month())

	dec := MonthlyWindow(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 12, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC), dec.End)
}

func TestWindowFor(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	w, err := WindowFor("weekly", now)
	require.NoError(t, err)
	assert.Equal(t, WeeklyWindow(now), w)

	_, err = WindowFor("yearly", now)
	assert.Error(t, err)
}
