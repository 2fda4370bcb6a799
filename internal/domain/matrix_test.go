package domain

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insertion struct {
	station StationKey
	date    DateKey
	value   float64
}

func TestMatrix_ValueAt(t *testing.T) {
	m := NewMatrix()
	require.NoError(t, m.Record("A", "2020-01-01", 1.5))

	v, ok := m.ValueAt("2020-01-01", "A")
	assert.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)

	_, ok = m.ValueAt("2020-01-01", "B")
	assert.False(t, ok)
	_, ok = m.ValueAt("2020-01-02", "A")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMatrix_LastWriteWins(t *testing.T) {
	m := NewMatrix()
	require.NoError(t, m.Record("A", "2020-01-01", 1))
	require.NoError(t, m.Record("A", "2020-01-01", 2))

	v, ok := m.ValueAt("2020-01-01", "A")
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)
	assert.Equal(t, 1, m.Len())
}

// Distinct pairs recorded in any order give the same matrix, and for each
// pair the final value is the last one recorded for it.
func TestMatrix_InsertionOrderIndependence(t *testing.T) {
	var base []insertion
	for s := 0; s < 5; s++ {
		for d := 0; d < 7; d++ {
			if (s+d)%3 == 0 {
				continue
			}
			base = append(base, insertion{
				station: StationKey(fmt.Sprintf("S%d", s)),
				date:    DateKey(fmt.Sprintf("2020-01-%02d", d+1)),
				value:   float64(s*100 + d),
			})
		}
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]insertion(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		m := NewMatrix()
		for _, in := range shuffled {
			require.NoError(t, m.Record(in.station, in.date, -1))
		}
		for _, in := range shuffled {
			require.NoError(t, m.Record(in.station, in.date, in.value))
		}

		for _, in := range base {
			v, ok := m.ValueAt(in.date, in.station)
			require.True(t, ok)
			assert.InDelta(t, in.value, v, 1e-9)
		}
		assert.Equal(t, len(base), m.Len())
	}
}

func TestMatrix_Keys(t *testing.T) {
	m := NewMatrix()
	require.NoError(t, m.Record("C", "2020-01-02", 3))
	require.NoError(t, m.Record("A", "2020-01-01", 1))
	require.NoError(t, m.Record("B", "2020-01-02", 2))
	require.NoError(t, m.Record("B", "2020-01-01", 2))

	keys := m.Keys()
	assert.Equal(t, []DateKey{"2020-01-01", "2020-01-02"}, keys.Dates)
	assert.Equal(t, []StationKey{"A", "B", "C"}, keys.Stations)
}

func TestMatrix_KeysStrictlyIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewMatrix()
	for i := 0; i < 500; i++ {
		station := StationKey(fmt.Sprintf("%06d", rng.Intn(60)))
		date := DateKey(fmt.Sprintf("19%02d-%02d-%02d", rng.Intn(100), rng.Intn(12)+1, rng.Intn(28)+1))
		require.NoError(t, m.Record(station, date, rng.Float64()))
	}

	keys := m.Keys()
	require.NotEmpty(t, keys.Dates)
	require.NotEmpty(t, keys.Stations)
	for i := 1; i < len(keys.Dates); i++ {
		assert.Less(t, keys.Dates[i-1], keys.Dates[i])
	}
	for i := 1; i < len(keys.Stations); i++ {
		assert.Less(t, keys.Stations[i-1], keys.Stations[i])
	}
}

func TestMatrix_KeysEmpty(t *testing.T) {
	keys := NewMatrix().Keys()
	assert.Empty(t, keys.Dates)
	assert.Empty(t, keys.Stations)
}

func TestMatrix_RecordSeries(t *testing.T) {
	m := NewMatrix()
	require.NoError(t, m.RecordSeries(StationSeries{
		Station: "A",
		Readings: []Reading{
			{Date: "2020-01-01", Value: 1},
			{Date: "2020-01-02", Value: 2},
			{Date: "2020-01-01", Value: 3},
		},
	}))

	v, ok := m.ValueAt("2020-01-01", "A")
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)
	assert.Equal(t, 2, m.Len())
}

func TestMatrix_Freeze(t *testing.T) {
	m := NewMatrix()
	require.NoError(t, m.Record("A", "2020-01-01", 1))
	m.Freeze()

	assert.ErrorIs(t, m.Record("A", "2020-01-01", 2), ErrMatrixFrozen)
	assert.ErrorIs(t, m.RecordSeries(StationSeries{Station: "B", Readings: []Reading{{Date: "2020-01-01"}}}), ErrMatrixFrozen)

	v, _ := m.ValueAt("2020-01-01", "A")
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestMatrix_ConcurrentSeries(t *testing.T) {
	m := NewMatrix()
	var wg sync.WaitGroup
	for s := 0; s < 16; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			series := StationSeries{Station: StationKey(fmt.Sprintf("S%02d", s))}
			for d := 0; d < 50; d++ {
				series.Readings = append(series.Readings, Reading{Date: DateKey(fmt.Sprintf("D%03d", d)), Value: float64(d)})
			}
			assert.NoError(t, m.RecordSeries(series))
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 16*50, m.Len())
	keys := m.Keys()
	assert.Len(t, keys.Stations, 16)
	assert.Len(t, keys.Dates, 50)
}
