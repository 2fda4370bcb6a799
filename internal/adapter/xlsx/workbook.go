// Package xlsx writes exported sheets into an Excel workbook using excelize.
package xlsx

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/metobs-export/internal/export"
)

// Workbook implements export.SheetWriter on top of an excelize file.
type Workbook struct {
	file   *excelize.File
	path   string
	prefix string
	sheets []string
	logger *slog.Logger
}

// NewWorkbook creates an empty workbook that Save writes to path. Sheets are
// named prefix followed by their 1-based position.
func NewWorkbook(path, prefix string, logger *slog.Logger) *Workbook {
	return &Workbook{
		file:   excelize.NewFile(),
		path:   path,
		prefix: prefix,
		logger: logger,
	}
}

// SheetName returns the name of the sheet at zero-based index i.
func (w *Workbook) SheetName(i int) string {
	return fmt.Sprintf("%s%d", w.prefix, i+1)
}

// Prepare renames the default sheet and adds the rest, each with a bold
// header row and frozen label row and column.
func (w *Workbook) Prepare(sheets int) error {
	if sheets < 1 {
		return fmt.Errorf("workbook needs at least one sheet, got %d", sheets)
	}
	if len(w.sheets) > 0 {
		return errors.New("workbook already prepared")
	}

	headerStyle, err := w.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	names := make([]string, sheets)
	for i := range names {
		names[i] = w.SheetName(i)
		if i == 0 {
			if err := w.file.SetSheetName(w.file.GetSheetName(0), names[0]); err != nil {
				return fmt.Errorf("rename sheet %q: %w", names[0], err)
			}
		} else if _, err := w.file.NewSheet(names[i]); err != nil {
			return fmt.Errorf("create sheet %q: %w", names[i], err)
		}

		if err := w.file.SetRowStyle(names[i], 1, 1, headerStyle); err != nil {
			return fmt.Errorf("style header of %q: %w", names[i], err)
		}
		if err := w.file.SetPanes(names[i], &excelize.Panes{
			Freeze:      true,
			XSplit:      1,
			YSplit:      1,
			TopLeftCell: "B2",
			ActivePane:  "bottomRight",
		}); err != nil {
			return fmt.Errorf("freeze panes of %q: %w", names[i], err)
		}
	}
	w.sheets = names
	return nil
}

// Write sets one cell. Export addresses are zero-based, excelize is one-based.
func (w *Workbook) Write(ins export.Instruction) error {
	if ins.Sheet < 0 || ins.Sheet >= len(w.sheets) {
		return fmt.Errorf("sheet %d out of range (%d sheets)", ins.Sheet, len(w.sheets))
	}
	sheet := w.sheets[ins.Sheet]

	cell, err := excelize.CoordinatesToCellName(ins.Column+1, ins.Row+1)
	if err != nil {
		return fmt.Errorf("cell address %d,%d: %w", ins.Row, ins.Column, err)
	}

	switch ins.Cell.Kind {
	case export.KindNumber:
		return w.file.SetCellFloat(sheet, cell, ins.Cell.Number, -1, 64)
	default:
		return w.file.SetCellStr(sheet, cell, ins.Cell.Text)
	}
}

// Save writes the workbook to its path, creating parent directories.
func (w *Workbook) Save() error {
	if dir := filepath.Dir(w.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s (is it open in another program?): %w", w.path, err)
	}
	w.logger.Info("workbook saved", "path", w.path, "sheets", len(w.sheets))
	return nil
}

// WriteTo streams the workbook to out instead of the configured path.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	return w.file.WriteTo(out)
}

// Path returns the destination file.
func (w *Workbook) Path() string { return w.path }

// Close releases the workbook's temporary files.
func (w *Workbook) Close() error {
	return w.file.Close()
}
