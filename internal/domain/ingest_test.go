package domain

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStation StationKey = "188790"

const testExport = `Stationsnamn;Stationsnummer;Stationsnät;Mäthöjd (meter över marken)
Abisko Aut;188790;SMHIs stationsnät;2.0

Parameternamn;Beskrivning;Enhet
Lufttemperatur;min, 1 gång per dygn, kl 18;degree celsius

Tidsperiod (fr.o.m);Tidsperiod (t.o.m);Höjd (meter över havet);Latitud (decimalgrader);Longitud (decimalgrader)
1913-01-01 00:00:00;2023-06-30 23:59:59;388.0;68.3538;18.8164

Från Datum Tid (UTC);Till Datum Tid (UTC);Representativt dygn;Lufttemperatur;Kvalitet;;Tidsutsnitt:
1913-01-01 06:00:01;1913-01-01 18:00:00;1913-01-01;-6.1;G;;Kvalitetskontrollerade historiska data (utom de senaste 3 mån)
1913-01-01 18:00:01;1913-01-02 18:00:00;1913-01-02;-12.4;G
1913-01-02 18:00:01;1913-01-03 18:00:00;1913-01-03;0.5;Y
`

func TestParseStationSeries(t *testing.T) {
	t.Run("corrected archive export", func(t *testing.T) {
		series, err := ParseStationSeries(testStation, strings.NewReader(testExport))
		require.NoError(t, err)

		assert.Equal(t, testStation, series.Station)
		assert.Equal(t, "Abisko Aut", series.Name)
		assert.Equal(t, []Reading{
			{Date: "1913-01-01", Value: -6.1},
			{Date: "1913-01-02", Value: -12.4},
			{Date: "1913-01-03", Value: 0.5},
		}, series.Readings)
	})

	t.Run("CRLF line endings", func(t *testing.T) {
		crlf := strings.ReplaceAll(testExport, "\n", "\r\n")
		series, err := ParseStationSeries(testStation, strings.NewReader(crlf))
		require.NoError(t, err)
		assert.Len(t, series.Readings, 3)
	})

	t.Run("short line ends the table", func(t *testing.T) {
		data := testExport + "\n1913-01-04 06:00:01;1913-01-04 18:00:00;1913-01-04;3.3;G\n"
		series, err := ParseStationSeries(testStation, strings.NewReader(data))
		require.NoError(t, err)
		assert.Len(t, series.Readings, 3)
	})

	t.Run("marker without rows", func(t *testing.T) {
		data := "caption\nAbisko Aut;188790\n" + DataSectionMarker + " (UTC);Till Datum Tid (UTC)\n"
		series, err := ParseStationSeries(testStation, strings.NewReader(data))
		require.NoError(t, err)
		assert.Empty(t, series.Readings)
	})

	t.Run("missing marker", func(t *testing.T) {
		data := "caption\nAbisko Aut;188790\nParameternamn;Beskrivning\n1;2;3;4\n"
		_, err := ParseStationSeries(testStation, strings.NewReader(data))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedRecord)
		assert.Contains(t, err.Error(), "marker not found")
	})

	t.Run("empty export", func(t *testing.T) {
		_, err := ParseStationSeries(testStation, strings.NewReader(""))
		assert.ErrorIs(t, err, ErrMalformedRecord)
	})

	t.Run("unparsable value", func(t *testing.T) {
		data := strings.Replace(testExport, ";-12.4;", ";n/a;", 1)
		_, err := ParseStationSeries(testStation, strings.NewReader(data))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedRecord)
		assert.Contains(t, err.Error(), "line 12")
	})

	t.Run("empty date", func(t *testing.T) {
		data := strings.Replace(testExport, ";1913-01-02;", ";;", 1)
		_, err := ParseStationSeries(testStation, strings.NewReader(data))
		assert.ErrorIs(t, err, ErrMalformedRecord)
	})

	t.Run("read error is not malformed", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := ParseStationSeries(testStation, iotest.ErrReader(boom))
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrMalformedRecord)
	})
}
