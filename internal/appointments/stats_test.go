package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekOf(t *testing.T) {
	wantStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 8, 23, 59, 59, 999_000_000, time.UTC)

	for name, ts := range map[string]time.Time{
		"monday midnight": at(0, 0, 0),
		"wednesday":       at(2, 15, 0),
		"sunday evening":  at(6, 22, 0),
	} {
		t.Run(name, func(t *testing.T) {
			week := WeekOf(ts, time.UTC)
			assert.Equal(t, wantStart, week.Start)
			assert.Equal(t, wantEnd, week.End)
		})
	}
}

func TestCancellationRate(t *testing.T) {
	assert.Equal(t, 0.0, CancellationRate(0, 0))
	assert.Equal(t, 30.0, CancellationRate(3, 10))
	assert.Equal(t, 33.33, CancellationRate(1, 3))
	assert.Equal(t, 66.67, CancellationRate(2, 3))
	assert.Equal(t, 100.0, CancellationRate(4, 4))
}

func TestWeeklyStatsTenWithThreeCancelled(t *testing.T) {
	f := newFixture(t, at(3, 12, 0))
	statuses := []Status{
		StatusCancelled, StatusCancelled, StatusCancelled,
		StatusPending, StatusPending, StatusConfirmed, StatusConfirmed,
		StatusCompleted, StatusNoShow, StatusPending,
	}
	for i, st := range statuses {
		f.seed(t, 1, 10, at(i%5, 9+i, 0), st)
	}
	f.seed(t, 1, 10, at(-1, 10, 0), StatusCancelled) // previous Sunday
	f.seed(t, 1, 10, at(7, 10, 0), StatusPending)    // next Monday
	f.seed(t, 1, 11, at(1, 10, 0), StatusCancelled)  // other professional

	stats, err := f.svc.WeeklyStats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Total)
	assert.Equal(t, int64(3), stats.Cancelled)
	assert.Equal(t, 30.0, stats.CancellationRate)
	assert.Equal(t, at(0, 0, 0), stats.Period.Start)
}

func TestWeeklyStatsEmptyWeek(t *testing.T) {
	f := newFixture(t, at(3, 12, 0))
	stats, err := f.svc.WeeklyStats(context.Background(), 12)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.CancellationRate)
}

func TestPatientMap(t *testing.T) {
	f := newFixture(t, at(0, 12, 0))
	f.seed(t, 1, 10, at(0, 9, 0), StatusPending) // past, excluded
	f.seed(t, 1, 10, at(1, 9, 0), StatusConfirmed)
	f.seed(t, 2, 10, at(1, 10, 0), StatusCancelled)

	entries, err := f.svc.PatientMap(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "Diop Awa", first.PatientName)
	require.NotNil(t, first.Latitude)
	assert.Equal(t, dakarPlateau.Lat, *first.Latitude)
	assert.Equal(t, dakarPlateau.Lon, *first.Longitude)
	assert.Equal(t, "Rue 10, Plateau", first.Address)
	assert.Equal(t, "+221770000001", first.Phone)
	assert.Equal(t, StatusConfirmed, first.Status)

	second := entries[1]
	assert.Equal(t, "Fall Modou", second.PatientName)
	assert.Nil(t, second.Latitude)
	assert.Equal(t, StatusCancelled, second.Status)
}
