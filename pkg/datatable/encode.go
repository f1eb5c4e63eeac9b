package datatable

import (
	json "github.com/goccy/go-json"
)

// WireColumn is a column descriptor in the engine's JSON format.
type WireColumn struct {
	ID    string            `json:"id"`
	Label string            `json:"label"`
	Type  string            `json:"type"`
	P     map[string]string `json:"p,omitempty"`
}

// WireCell is a cell descriptor. V is always emitted, null for no data.
type WireCell struct {
	V interface{} `json:"v"`
	F *string     `json:"f,omitempty"`
}

// WireRow is a row descriptor.
type WireRow struct {
	C []WireCell `json:"c"`
}

// Wire is the complete serialized table.
type Wire struct {
	Cols []WireColumn `json:"cols"`
	Rows []WireRow    `json:"rows"`
}

// FormatDescriptor describes the format attached to a column.
type FormatDescriptor struct {
	Index   int                    `json:"index"`
	Type    string                 `json:"type"`
	Options map[string]interface{} `json:"options"`
}

// Encode walks the columns, then the rows, and returns the wire structure.
func (t *DataTable) Encode() Wire {
	w := Wire{
		Cols: make([]WireColumn, len(t.cols)),
		Rows: make([]WireRow, len(t.rows)),
	}

	for i, col := range t.cols {
		wc := WireColumn{ID: col.id, Label: col.label, Type: col.typ.String()}
		if col.role != "" {
			wc.P = map[string]string{"role": col.role.String()}
		}
		w.Cols[i] = wc
	}

	for i, row := range t.rows {
		cells := make([]WireCell, len(row.cells))
		for j, cell := range row.cells {
			cells[j] = t.encodeCell(t.cols[j], cell)
		}
		w.Rows[i] = WireRow{C: cells}
	}
	return w
}

func (t *DataTable) encodeCell(col *Column, cell *Cell) WireCell {
	wc := WireCell{V: cell.Encode()}
	if f, ok := cell.Formatted(); ok {
		wc.F = &f
		return wc
	}
	if col.format != nil && !cell.IsNull() {
		if f, ok := col.format.FormatValue(cell.value); ok {
			wc.F = &f
		}
	}
	return wc
}

// ToJSON serializes the table into the engine's DataTable JSON.
func (t *DataTable) ToJSON() ([]byte, error) {
	return json.Marshal(t.Encode())
}

// MarshalJSON implements json.Marshaler.
func (t *DataTable) MarshalJSON() ([]byte, error) {
	return t.ToJSON()
}

// FormatDescriptors lists the attached formats in column order.
func (t *DataTable) FormatDescriptors() []FormatDescriptor {
	out := make([]FormatDescriptor, 0)
	for _, i := range t.FormattedIndices() {
		f := t.cols[i].format
		out = append(out, FormatDescriptor{Index: i, Type: f.Type(), Options: f.Options()})
	}
	return out
}
