package domain

import "time"

// DateKey identifies one observation day, e.g. "2020-01-01". Ordered as text.
type DateKey string

// StationKey identifies one observation station, e.g. "188790". Ordered as text.
type StationKey string

// Station is a catalog entry for a parameter.
type Station struct {
	Key  StationKey
	Name string
}

// Reading is one (date, value) pair from a station's series.
type Reading struct {
	Date  DateKey
	Value float64
}

// StationSeries is the parsed content of one station's data export.
type StationSeries struct {
	Station  StationKey
	Name     string
	Readings []Reading
}

// OrderedKeys holds the strictly increasing, duplicate-free date and station
// sequences derived from a frozen Matrix.
type OrderedKeys struct {
	Dates    []DateKey
	Stations []StationKey
}

// DailyRow is one matrix row prepared for publishing downstream.
type DailyRow struct {
	RunID       string                 `json:"run_id"`
	Date        DateKey                `json:"date"`
	Parameter   string                 `json:"parameter"`
	Readings    map[StationKey]float64 `json:"readings"`
	HarvestedAt time.Time              `json:"harvested_at"`
}
