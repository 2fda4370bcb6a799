package export

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/metobs-export/internal/domain"
)

// CellKind tells labels from readings.
type CellKind int

const (
	// KindLabel is a text cell: a station header or a date label.
	KindLabel CellKind = iota
	// KindNumber is a numeric reading.
	KindNumber
)

// Cell is a value to write: a text label or a numeric reading.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// Label builds a text cell.
func Label(s string) Cell { return Cell{Kind: KindLabel, Text: s} }

// Number builds a numeric cell.
func Number(v float64) Cell { return Cell{Kind: KindNumber, Number: v} }

func (c Cell) String() string {
	if c.Kind == KindNumber {
		return fmt.Sprintf("%g", c.Number)
	}
	return c.Text
}

// Instruction is one write request.
type Instruction struct {
	Address
	Cell Cell
}

// SheetWriter is the destination container. Prepare is called once with the
// number of sheets before any Write.
type SheetWriter interface {
	Prepare(sheets int) error
	Write(ins Instruction) error
}

// Stats summarizes one export.
type Stats struct {
	Sheets  int
	Headers int
	Rows    int
	Cells   int
}

// Emitter writes a frozen matrix in a fixed order: header row first, then one
// row per date with its label on every sheet followed by the readings.
type Emitter struct {
	width  int
	logger *slog.Logger
}

// NewEmitter validates the sheet width up front so a bad configuration fails
// before anything is fetched or written.
func NewEmitter(width int, logger *slog.Logger) (*Emitter, error) {
	if err := ValidateWidth(width); err != nil {
		return nil, err
	}
	return &Emitter{width: width, logger: logger}, nil
}

// Emit lays out keys and writes every header, label and present reading to w.
// Absent readings leave their cell untouched. Errors returned by w are passed
// back as-is.
func (e *Emitter) Emit(w SheetWriter, keys domain.OrderedKeys, values domain.ValueSource) (Stats, error) {
	layout, err := NewLayout(len(keys.Stations), e.width)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Sheets: layout.SheetCount()}
	if err := w.Prepare(stats.Sheets); err != nil {
		return stats, err
	}

	for i, station := range keys.Stations {
		if err := w.Write(Instruction{Address: layout.Header(i), Cell: Label(string(station))}); err != nil {
			return stats, err
		}
		stats.Headers++
	}

	for row, date := range keys.Dates {
		for sheet := 0; sheet < stats.Sheets; sheet++ {
			if err := w.Write(Instruction{Address: layout.Label(sheet, row), Cell: Label(string(date))}); err != nil {
				return stats, err
			}
		}
		for i, station := range keys.Stations {
			v, ok := values.ValueAt(date, station)
			if !ok {
				continue
			}
			if err := w.Write(Instruction{Address: layout.Cell(row, i), Cell: Number(v)}); err != nil {
				return stats, err
			}
			stats.Cells++
		}
		stats.Rows++
	}

	e.logger.Debug("matrix emitted",
		"sheets", stats.Sheets,
		"stations", layout.Stations(),
		"width", layout.Width(),
		"rows", stats.Rows,
		"cells", stats.Cells,
	)
	return stats, nil
}
