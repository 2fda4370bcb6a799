// Package domain models SMHI meteorological observation (metobs) data and the
// in-memory aggregation of many stations into one date-by-station matrix.
//
// # Data Source
//
// Readings come from the SMHI Open Data metobs API at
// https://opendata-download-metobs.smhi.se/api. Each parameter (for example
// 19 = daily minimum air temperature) has a list of stations, and each
// station has one or more periods. Only the "corrected-archive" period holds
// quality-controlled historical data; the other periods (latest-day,
// latest-months and so on) are preliminary and are never ingested.
//
// # Station CSV Layout
//
// The corrected-archive export for one station is a semicolon-separated text
// file with a preamble before the data table:
//
//	Stationsnamn;Stationsnummer;Stationsnät;Mäthöjd (meter över marken)
//	Abisko Aut;188790;SMHIs stationsnät;2.0
//	<blank line>
//	Parameternamn;Beskrivning;Enhet
//	...
//	Från Datum Tid (UTC);Till Datum Tid (UTC);Representativt dygn;Lufttemperatur;Kvalitet;;Tidsutsnitt:
//	1913-01-01 06:00:01;1913-01-01 18:00:00;1913-01-01;-6.1;G;;Kvalitetskontrollerade historiska data
//
// The first line is a caption and is discarded. The first field of the
// second line is the station display name. Everything up to the line that
// starts with [DataSectionMarker] is preamble. Each data line carries at
// least four fields: from, to, representative day, value. The representative
// day ("1913-01-01") is the [DateKey]; it is fixed width and sorts correctly
// as text, so no calendar parsing is done.
//
// A line with fewer than four fields ends the table. A value that does not
// parse as a float is a [ErrMalformedRecord] and rejects the whole station.
//
// # Aggregation
//
// [Matrix] is keyed by (DateKey, StationKey) and is sparse: stations start
// and stop reporting at different dates. When the same pair is recorded
// twice the last write wins. Once harvesting is done the matrix is frozen and
// [Matrix.Keys] derives the sorted date and station sequences that every
// downstream consumer (spreadsheet export, row publishing) iterates over.
package domain
