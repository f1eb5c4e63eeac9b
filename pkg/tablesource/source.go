// Package tablesource builds DataTables from external data: SQL result sets,
// Arrow records, Go slices and Elasticsearch date histograms.
//
// Every source takes datatable options so the caller controls the time zone
// used to interpret zone-less values.
package tablesource

import (
	"errors"
	"time"

	"github.com/locvowork/chartdata/pkg/datatable"
)

// ErrUnsupportedType is returned when a source column cannot be mapped to a
// DataTable column type.
var ErrUnsupportedType = errors.New("unsupported source type")

// wallDate keeps the calendar date of t and places it at midnight in loc.
// Sources use it for zone-less DATE values.
func wallDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// wallClock keeps the date and clock reading of t and places it in loc.
func wallClock(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// wallTimeOfDay keeps the clock reading of t on day zero in loc.
func wallTimeOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// addColumns appends typed, labelled columns in order.
func addColumns(dt *datatable.DataTable, types []datatable.ColumnType, labels []string) error {
	defs := make([]interface{}, len(types))
	for i, typ := range types {
		defs[i] = []string{string(typ), labels[i]}
	}
	return dt.AddColumns(defs)
}
