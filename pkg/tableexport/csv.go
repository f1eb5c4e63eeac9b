package tableexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/locvowork/chartdata/pkg/datatable"
)

// ToCSV writes a header of column labels, then one record per row. A cell's
// display string is preferred over its raw value; dates use RFC 3339 and times
// of day use 15:04:05.
func ToCSV(w io.Writer, t *datatable.DataTable) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(t.ColumnLabels()); err != nil {
		return err
	}

	wire := t.Encode()
	for r, row := range t.Rows() {
		record := make([]string, row.Len())
		for i, cell := range row.Cells() {
			if f := wire.Rows[r].C[i].F; f != nil {
				record[i] = *f
				continue
			}
			record[i] = csvValue(cell)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func csvValue(cell *datatable.Cell) string {
	switch v := cell.Value().(type) {
	case nil:
		return ""
	case time.Time:
		if cell.Type() == datatable.TypeTimeOfDay {
			return v.Format("15:04:05")
		}
		return v.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
