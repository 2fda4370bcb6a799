package domain

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// DataSectionMarker prefixes the column caption line of the data table.
	DataSectionMarker = "Från Datum Tid"

	fieldDelimiter = ";"

	// minDataFields is from, to, date and value.
	minDataFields = 4
	dateField     = 2
	valueField    = 3

	maxLineBytes = 1 << 20
)

// ParseStationSeries reads one station's CSV export and returns its readings
// in file order. It does not touch any shared state, so callers may parse
// several stations concurrently.
func ParseStationSeries(station StationKey, r io.Reader) (StationSeries, error) {
	series := StationSeries{Station: station}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line++
		return strings.TrimRight(sc.Text(), "\r"), true
	}

	// Caption line.
	if _, ok := next(); !ok {
		return series, scanOrMalformed(sc, station, line, "empty export")
	}

	nameLine, ok := next()
	if !ok {
		return series, scanOrMalformed(sc, station, line, "missing station line")
	}
	series.Name = strings.TrimSpace(strings.Split(nameLine, fieldDelimiter)[0])

	for {
		text, ok := next()
		if !ok {
			return series, scanOrMalformed(sc, station, line, "data section marker not found")
		}
		if strings.HasPrefix(text, DataSectionMarker) {
			break
		}
	}

	for {
		text, ok := next()
		if !ok {
			break
		}
		fields := strings.Split(text, fieldDelimiter)
		if len(fields) < minDataFields {
			break
		}

		date := strings.TrimSpace(fields[dateField])
		if date == "" {
			return series, malformed(station, line, "empty date field")
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[valueField]), 64)
		if err != nil {
			return series, malformed(station, line, fmt.Sprintf("parse value %q: %v", fields[valueField], err))
		}
		series.Readings = append(series.Readings, Reading{Date: DateKey(date), Value: value})
	}

	if err := sc.Err(); err != nil {
		return series, fmt.Errorf("read station %s: %w", station, err)
	}
	return series, nil
}

func malformed(station StationKey, line int, reason string) error {
	return fmt.Errorf("%w: station %s line %d: %s", ErrMalformedRecord, station, line, reason)
}

// scanOrMalformed prefers the scanner's I/O error over a shape complaint.
func scanOrMalformed(sc *bufio.Scanner, station StationKey, line int, reason string) error {
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read station %s: %w", station, err)
	}
	return malformed(station, line, reason)
}
