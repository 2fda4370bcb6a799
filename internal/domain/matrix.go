package domain

import (
	"sort"
	"sync"
)

// Matrix is a sparse date-by-station table of readings. It is safe for
// concurrent recording; a single lock is enough given one write burst per
// station.
type Matrix struct {
	mu     sync.RWMutex
	rows   map[DateKey]map[StationKey]float64
	cells  int
	frozen bool
}

// NewMatrix returns an empty matrix for one aggregation run.
func NewMatrix() *Matrix {
	return &Matrix{rows: make(map[DateKey]map[StationKey]float64)}
}

// Record stores value for (date, station), overwriting any earlier value.
func (m *Matrix) Record(station StationKey, date DateKey, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return ErrMatrixFrozen
	}
	m.put(station, date, value)
	return nil
}

// RecordSeries stores every reading of a parsed station series under one
// lock, so other writers never observe half a station.
func (m *Matrix) RecordSeries(series StationSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return ErrMatrixFrozen
	}
	for _, r := range series.Readings {
		m.put(series.Station, r.Date, r.Value)
	}
	return nil
}

func (m *Matrix) put(station StationKey, date DateKey, value float64) {
	row, ok := m.rows[date]
	if !ok {
		row = make(map[StationKey]float64)
		m.rows[date] = row
	}
	if _, exists := row[station]; !exists {
		m.cells++
	}
	row[station] = value
}

// ValueAt returns the reading for (date, station). Absence is reported with
// ok == false and is not an error.
func (m *Matrix) ValueAt(date DateKey, station StationKey) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.rows[date][station]
	return v, ok
}

// Len returns the number of populated cells.
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cells
}

// Freeze rejects every later Record call.
func (m *Matrix) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

// Keys returns the sorted dates that have at least one reading and the sorted
// union of stations across all dates.
func (m *Matrix) Keys() OrderedKeys {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dates := make([]DateKey, 0, len(m.rows))
	seen := make(map[StationKey]struct{})
	for date, row := range m.rows {
		if len(row) == 0 {
			continue
		}
		dates = append(dates, date)
		for station := range row {
			seen[station] = struct{}{}
		}
	}
	stations := make([]StationKey, 0, len(seen))
	for station := range seen {
		stations = append(stations, station)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	sort.Slice(stations, func(i, j int) bool { return stations[i] < stations[j] })

	return OrderedKeys{Dates: dates, Stations: stations}
}
