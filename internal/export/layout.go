// Package export lays a frozen observation matrix out over width-bounded
// sheets and drives the cell writes through a SheetWriter.
package export

import (
	"errors"
	"fmt"
)

const (
	// MaxSheetColumns is the per-sheet column ceiling of the destination
	// format, label column included.
	MaxSheetColumns = 256

	// DefaultSheetWidth leaves headroom under MaxSheetColumns.
	DefaultSheetWidth = 195

	labelColumn = 0
	headerRow   = 0
)

// ErrSheetColumnOverflow is returned for a sheet width that does not fit the
// destination format once the label column is added.
var ErrSheetColumnOverflow = errors.New("sheet column overflow")

// Address is a physical cell position. Row 0 is the header row and column 0
// holds the date label on every sheet.
type Address struct {
	Sheet  int
	Row    int
	Column int
}

// Layout maps matrix positions to sheet addresses for a fixed number of
// stations and a fixed station-column budget per sheet.
type Layout struct {
	stations int
	width    int
}

// ValidateWidth reports whether width station columns plus the label column
// fit a sheet.
func ValidateWidth(width int) error {
	if width < 1 || width+1 > MaxSheetColumns {
		return fmt.Errorf("%w: width %d must be between 1 and %d", ErrSheetColumnOverflow, width, MaxSheetColumns-1)
	}
	return nil
}

// NewLayout computes the layout for stations columns of width per sheet.
func NewLayout(stations, width int) (Layout, error) {
	if err := ValidateWidth(width); err != nil {
		return Layout{}, err
	}
	if stations < 0 {
		return Layout{}, fmt.Errorf("negative station count %d", stations)
	}
	return Layout{stations: stations, width: width}, nil
}

// SheetCount is ceil(stations/width), never less than one.
func (l Layout) SheetCount() int {
	if l.stations == 0 {
		return 1
	}
	return (l.stations + l.width - 1) / l.width
}

// Stations returns the number of station columns laid out.
func (l Layout) Stations() int { return l.stations }

// Width returns the station-column budget per sheet.
func (l Layout) Width() int { return l.width }

// Header addresses the label cell of station i in the header row.
func (l Layout) Header(station int) Address {
	return Address{Sheet: l.sheetOf(station), Row: headerRow, Column: l.columnOf(station)}
}

// Cell addresses the reading of station i on the date at position row of the
// sorted date sequence. The physical row is shared by every sheet.
func (l Layout) Cell(row, station int) Address {
	return Address{Sheet: l.sheetOf(station), Row: dataRow(row), Column: l.columnOf(station)}
}

// Label addresses the date label of the given date position on a sheet.
func (l Layout) Label(sheet, row int) Address {
	return Address{Sheet: sheet, Row: dataRow(row), Column: labelColumn}
}

func (l Layout) sheetOf(station int) int  { return station / l.width }
func (l Layout) columnOf(station int) int { return 1 + station%l.width }

func dataRow(row int) int { return row + 1 }
