// Package tableexport renders DataTables as spreadsheet files.
package tableexport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/xuri/excelize/v2"
)

// Built-in Excel number formats.
const (
	numFmtDate      = 14 // m/d/yyyy
	numFmtTimeOfDay = 21 // h:mm:ss
	numFmtDateTime  = 22 // m/d/yy h:mm
)

// StyleTemplate defines basic cell styling.
type StyleTemplate struct {
	Font      *FontTemplate      `yaml:"font"`
	Fill      *FillTemplate      `yaml:"fill"`
	Alignment *AlignmentTemplate `yaml:"alignment"`
}

type FontTemplate struct {
	Bold  bool   `yaml:"bold"`
	Color string `yaml:"color"` // Hex color
}

type FillTemplate struct {
	Color string `yaml:"color"` // Hex color
}

type AlignmentTemplate struct {
	Horizontal string `yaml:"horizontal"`
	Vertical   string `yaml:"vertical"`
}

// DefaultHeaderStyle is used when XLSXOptions.HeaderStyle is nil.
var DefaultHeaderStyle = &StyleTemplate{
	Font:      &FontTemplate{Bold: true, Color: "#FFFFFF"},
	Fill:      &FillTemplate{Color: "#1565C0"},
	Alignment: &AlignmentTemplate{Horizontal: "center", Vertical: "center"},
}

// XLSXOptions controls workbook rendering. The zero value is usable.
type XLSXOptions struct {
	SheetName   string
	HeaderStyle *StyleTemplate
	// Widths overrides the computed width per column index.
	Widths map[int]float64
	// MinWidth is the lower bound for computed widths.
	MinWidth float64
}

func (o *XLSXOptions) withDefaults() XLSXOptions {
	out := XLSXOptions{}
	if o != nil {
		out = *o
	}
	if out.SheetName == "" {
		out.SheetName = "Sheet1"
	}
	if out.HeaderStyle == nil {
		out.HeaderStyle = DefaultHeaderStyle
	}
	if out.MinWidth <= 0 {
		out.MinWidth = 12
	}
	return out
}

type workbook struct {
	file       *excelize.File
	styleCache map[string]int
}

// NewXLSX renders t into a new workbook with one sheet: a styled header row of
// column labels followed by one row per table row. The caller closes the file.
func NewXLSX(t *datatable.DataTable, opts *XLSXOptions) (*excelize.File, error) {
	o := opts.withDefaults()
	wb := &workbook{file: excelize.NewFile(), styleCache: make(map[string]int)}
	f := wb.file

	if o.SheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", o.SheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}
	if err := wb.render(o, t); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ToXLSX writes t as an .xlsx workbook to w.
func ToXLSX(w io.Writer, t *datatable.DataTable, opts *XLSXOptions) error {
	f, err := NewXLSX(t, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func (wb *workbook) render(o XLSXOptions, t *datatable.DataTable) error {
	sw, err := wb.file.NewStreamWriter(o.SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer for sheet %s: %w", o.SheetName, err)
	}

	cols := t.Columns()
	wire := t.Encode()

	// widths must be set before the first row
	for i, col := range cols {
		width, ok := o.Widths[i]
		if !ok {
			width = columnWidth(col, wire, i, o.MinWidth)
		}
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}

	headerStyle, err := wb.createStyle(o.HeaderStyle, 0)
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	header := make([]interface{}, len(cols))
	for i, col := range cols {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: col.Label()}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	colStyles := make([]int, len(cols))
	for i, col := range cols {
		if colStyles[i], err = wb.createStyle(nil, numFmtFor(col.Type())); err != nil {
			return err
		}
	}

	for r, row := range t.Rows() {
		values := make([]interface{}, len(cols))
		for i, cell := range row.Cells() {
			if wc := wire.Rows[r].C[i]; wc.F != nil {
				values[i] = *wc.F
				continue
			}
			if cell.IsNull() {
				values[i] = nil
				continue
			}
			values[i] = excelize.Cell{StyleID: colStyles[i], Value: excelValue(cell)}
		}
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(addr, values); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}
	return sw.Flush()
}

// excelValue converts a stored cell value into what excelize expects. Temporal
// values keep their wall clock; time of day becomes a fraction of a day.
func excelValue(cell *datatable.Cell) interface{} {
	v := cell.Value()
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if cell.Type() == datatable.TypeTimeOfDay {
		secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
		return (float64(secs) + float64(t.Nanosecond())/1e9) / 86400
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func numFmtFor(typ datatable.ColumnType) int {
	switch typ {
	case datatable.TypeDate:
		return numFmtDate
	case datatable.TypeDateTime:
		return numFmtDateTime
	case datatable.TypeTimeOfDay:
		return numFmtTimeOfDay
	}
	return 0
}

// columnWidth fits the label and the longest display string, within [min, 60].
func columnWidth(col *datatable.Column, wire datatable.Wire, index int, min float64) float64 {
	longest := len(col.Label())
	for _, row := range wire.Rows {
		c := row.C[index]
		n := 0
		switch {
		case c.F != nil:
			n = len(*c.F)
		case c.V != nil:
			n = len(fmt.Sprint(c.V))
		}
		if n > longest {
			longest = n
		}
	}
	width := float64(longest) + 2
	if width < min {
		width = min
	}
	if width > 60 {
		width = 60
	}
	return width
}

func (wb *workbook) createStyle(tmpl *StyleTemplate, numFmt int) (int, error) {
	if tmpl == nil && numFmt == 0 {
		return 0, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "n:%d|", numFmt)
	style := &excelize.Style{NumFmt: numFmt}
	if tmpl != nil {
		if tmpl.Font != nil {
			fmt.Fprintf(&sb, "f:%v:%s|", tmpl.Font.Bold, tmpl.Font.Color)
			style.Font = &excelize.Font{
				Bold:  tmpl.Font.Bold,
				Color: strings.TrimPrefix(tmpl.Font.Color, "#"),
			}
		}
		if tmpl.Fill != nil {
			fmt.Fprintf(&sb, "i:%s|", tmpl.Fill.Color)
			style.Fill = excelize.Fill{
				Type:    "pattern",
				Color:   []string{strings.TrimPrefix(tmpl.Fill.Color, "#")},
				Pattern: 1,
			}
		}
		if tmpl.Alignment != nil {
			fmt.Fprintf(&sb, "a:%s:%s|", tmpl.Alignment.Horizontal, tmpl.Alignment.Vertical)
			style.Alignment = &excelize.Alignment{
				Horizontal: tmpl.Alignment.Horizontal,
				Vertical:   tmpl.Alignment.Vertical,
			}
		}
	}
	key := sb.String()

	if id, ok := wb.styleCache[key]; ok {
		return id, nil
	}
	id, err := wb.file.NewStyle(style)
	if err == nil {
		wb.styleCache[key] = id
	}
	return id, err
}
