package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailyRows(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC))
	SetClock(fakeClock)
	t.Cleanup(func() { SetClock(nil) })

	m := NewMatrix()
	require.NoError(t, m.Record("A", "2020-01-01", 1))
	require.NoError(t, m.Record("B", "2020-01-01", 2))
	require.NoError(t, m.Record("C", "2020-01-02", 3))

	rows := BuildDailyRows("run-1", "19", m.Keys(), m)
	require.Len(t, rows, 2)

	assert.Equal(t, DateKey("2020-01-01"), rows[0].Date)
	assert.Equal(t, map[StationKey]float64{"A": 1, "B": 2}, rows[0].Readings)
	assert.Equal(t, DateKey("2020-01-02"), rows[1].Date)
	assert.Equal(t, map[StationKey]float64{"C": 3}, rows[1].Readings)
	for _, r := range rows {
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, "19", r.Parameter)
		assert.Equal(t, fakeClock.Now(), r.HarvestedAt)
	}
}

func TestBuildDailyRows_Empty(t *testing.T) {
	rows := BuildDailyRows("run-1", "19", NewMatrix().Keys(), NewMatrix())
	assert.Empty(t, rows)
}
