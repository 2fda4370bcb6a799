package export

import "fmt"

// Recorder is an in-memory SheetWriter. It keeps the instruction sequence
// and is used for dry runs.
type Recorder struct {
	Sheets       int
	Instructions []Instruction
}

// Prepare records the sheet count that later writes are checked against.
func (r *Recorder) Prepare(sheets int) error {
	r.Sheets = sheets
	return nil
}

// Write appends ins, rejecting sheets outside the prepared range.
func (r *Recorder) Write(ins Instruction) error {
	if ins.Sheet < 0 || ins.Sheet >= r.Sheets {
		return fmt.Errorf("write to sheet %d of %d", ins.Sheet, r.Sheets)
	}
	r.Instructions = append(r.Instructions, ins)
	return nil
}

// Grid returns the cells of one sheet keyed by [row][column].
func (r *Recorder) Grid(sheet int) map[int]map[int]Cell {
	grid := make(map[int]map[int]Cell)
	for _, ins := range r.Instructions {
		if ins.Sheet != sheet {
			continue
		}
		row, ok := grid[ins.Row]
		if !ok {
			row = make(map[int]Cell)
			grid[ins.Row] = row
		}
		row[ins.Column] = ins.Cell
	}
	return grid
}
