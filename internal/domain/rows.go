package domain

// ValueSource looks up one cell of a matrix.
type ValueSource interface {
	ValueAt(date DateKey, station StationKey) (float64, bool)
}

// BuildDailyRows turns the matrix into one DailyRow per date in key order.
// Every row carries the same run ID and HarvestedAt stamp.
func BuildDailyRows(runID, parameter string, keys OrderedKeys, values ValueSource) []DailyRow {
	now := clock.Now().UTC()
	rows := make([]DailyRow, 0, len(keys.Dates))
	for _, date := range keys.Dates {
		readings := make(map[StationKey]float64)
		for _, station := range keys.Stations {
			if v, ok := values.ValueAt(date, station); ok {
				readings[station] = v
			}
		}
		rows = append(rows, DailyRow{
			RunID:       runID,
			Date:        date,
			Parameter:   parameter,
			Readings:    readings,
			HarvestedAt: now,
		})
	}
	return rows
}
