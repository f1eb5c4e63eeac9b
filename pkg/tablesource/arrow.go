package tablesource

import (
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/locvowork/chartdata/pkg/datatable"
)

// FromArrow builds a table from a single record. Field names become labels.
func FromArrow(rec arrow.Record, opts ...datatable.Option) (*datatable.DataTable, error) {
	dt := datatable.New(opts...)
	if err := addArrowColumns(dt, rec.Schema()); err != nil {
		return nil, err
	}
	if err := appendRecord(dt, rec); err != nil {
		return nil, err
	}
	return dt, nil
}

// FromArrowStream reads an Arrow IPC stream and appends every record batch to one table.
func FromArrowStream(r io.Reader, mem memory.Allocator, opts ...datatable.Option) (*datatable.DataTable, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("open arrow stream: %w", err)
	}
	defer rdr.Release()

	dt := datatable.New(opts...)
	if err := addArrowColumns(dt, rdr.Schema()); err != nil {
		return nil, err
	}
	for rdr.Next() {
		if err := appendRecord(dt, rdr.Record()); err != nil {
			return nil, err
		}
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read arrow stream: %w", err)
	}
	return dt, nil
}

func addArrowColumns(dt *datatable.DataTable, schema *arrow.Schema) error {
	fields := schema.Fields()
	types := make([]datatable.ColumnType, len(fields))
	labels := make([]string, len(fields))
	for i, f := range fields {
		typ, err := arrowColumnType(f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		types[i], labels[i] = typ, f.Name
	}
	return addColumns(dt, types, labels)
}

func arrowColumnType(dt arrow.DataType) (datatable.ColumnType, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return datatable.TypeBoolean, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return datatable.TypeNumber, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return datatable.TypeString, nil
	case arrow.DATE32, arrow.DATE64:
		return datatable.TypeDate, nil
	case arrow.TIMESTAMP:
		return datatable.TypeDateTime, nil
	case arrow.TIME32, arrow.TIME64:
		return datatable.TypeTimeOfDay, nil
	}
	return "", fmt.Errorf("%w: arrow %s", ErrUnsupportedType, dt)
}

func appendRecord(dt *datatable.DataTable, rec arrow.Record) error {
	loc := dt.Timezone()
	ncols := int(rec.NumCols())
	rows := make([][]interface{}, rec.NumRows())
	for r := range rows {
		rows[r] = make([]interface{}, ncols)
	}

	for c := 0; c < ncols; c++ {
		col := rec.Column(c)
		for r := range rows {
			if col.IsNull(r) {
				continue
			}
			v, err := arrowValue(col, r, loc)
			if err != nil {
				return fmt.Errorf("column %s: %w", rec.ColumnName(c), err)
			}
			rows[r][c] = v
		}
	}
	return dt.AddRows(rows)
}

// arrowValue reads row i of arr. Dates, zone-less timestamps and times of day
// keep their wall clock in loc; zoned timestamps are instants.
func arrowValue(arr arrow.Array, i int, loc *time.Location) (interface{}, error) {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Int8:
		return a.Value(i), nil
	case *array.Int16:
		return a.Value(i), nil
	case *array.Int32:
		return a.Value(i), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return a.Value(i), nil
	case *array.Uint16:
		return a.Value(i), nil
	case *array.Uint32:
		return a.Value(i), nil
	case *array.Uint64:
		return a.Value(i), nil
	case *array.Float32:
		return a.Value(i), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Date32:
		return wallDate(a.Value(i).ToTime(), loc), nil
	case *array.Date64:
		return wallDate(a.Value(i).ToTime(), loc), nil
	case *array.Timestamp:
		ts := a.DataType().(*arrow.TimestampType)
		t := a.Value(i).ToTime(ts.Unit)
		if ts.TimeZone == "" {
			return wallClock(t, loc), nil
		}
		return t, nil
	case *array.Time32:
		unit := a.DataType().(*arrow.Time32Type).Unit
		return wallTimeOfDay(a.Value(i).ToTime(unit), loc), nil
	case *array.Time64:
		unit := a.DataType().(*arrow.Time64Type).Unit
		return wallTimeOfDay(a.Value(i).ToTime(unit), loc), nil
	}
	return nil, fmt.Errorf("%w: arrow %s", ErrUnsupportedType, arr.DataType())
}
