package datatable

import "fmt"

// Row is an ordered sequence of cells, one per column.
type Row struct {
	cells []*Cell
}

// Cell returns the cell at index.
func (r *Row) Cell(index int) (*Cell, error) {
	if index < 0 || index >= len(r.cells) {
		return nil, fmt.Errorf("%w: %d (row has %d cells)", ErrInvalidColumnIndex, index, len(r.cells))
	}
	return r.cells[index], nil
}

// Cells returns a copy of the row's cells.
func (r *Row) Cells() []*Cell {
	out := make([]*Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// Len returns the number of cells.
func (r *Row) Len() int {
	return len(r.cells)
}

// Values returns the stored value of every cell.
func (r *Row) Values() []interface{} {
	out := make([]interface{}, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.value
	}
	return out
}

func (r *Row) dropCell(index int) {
	r.cells = append(r.cells[:index], r.cells[index+1:]...)
}
