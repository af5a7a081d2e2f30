package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func TestClassifyNilIsComplete(t *testing.T) {
	for _, now := range []time.Time{day("2024-01-01"), day("1999-12-31"), time.Now()} {
		assert.Equal(t, Complete, Classify(nil, now))
	}
}

func TestClassifyBoundaries(t *testing.T) {
	today := day("2024-03-10")

	cases := []struct {
		name string
		due  time.Time
		want Status
	}{
		{"yesterday", day("2024-03-09"), Overdue},
		{"long ago", day("2020-01-01"), Overdue},
		{"today", day("2024-03-10"), DueSoon},
		{"tomorrow", day("2024-03-11"), DueSoon},
		{"window end", day("2024-04-09"), DueSoon},
		{"window end plus one", day("2024-04-10"), UpToDate},
		{"next year", day("2025-03-10"), UpToDate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(ptr(tc.due), today))
		})
	}
}

func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	due := day("2024-03-10")
	lateEvening := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, DueSoon, Classify(ptr(due), lateEvening))

	earlyDue := time.Date(2024, 4, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, DueSoon, Classify(ptr(earlyDue), day("2024-03-10")))
}

func TestTodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, day("2024-03-10"), Today(now, loc))
	assert.Equal(t, day("2024-03-11"), Today(now, nil))
}

func TestWindowHelpers(t *testing.T) {
	today := day("2024-03-10")

	assert.True(t, IsOverdue(day("2024-03-09"), today))
	assert.False(t, IsOverdue(today, today))
	assert.True(t, InWindow(today, today))
	assert.True(t, InWindow(day("2024-04-09"), today))
	assert.False(t, InWindow(day("2024-04-10"), today))
	assert.False(t, InWindow(day("2024-03-09"), today))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "due-soon", DueSoon.String())
	assert.Equal(t, "Up to Date", UpToDate.Label())
}
