package tablesource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/locvowork/chartdata/pkg/datatable"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// sqlTypeNames maps DatabaseTypeName values (without length or precision) to column types.
var sqlTypeNames = map[string]datatable.ColumnType{
	"BOOL":    datatable.TypeBoolean,
	"BOOLEAN": datatable.TypeBoolean,

	"INT":              datatable.TypeNumber,
	"INT2":             datatable.TypeNumber,
	"INT4":             datatable.TypeNumber,
	"INT8":             datatable.TypeNumber,
	"INTEGER":          datatable.TypeNumber,
	"SMALLINT":         datatable.TypeNumber,
	"BIGINT":           datatable.TypeNumber,
	"TINYINT":          datatable.TypeNumber,
	"FLOAT":            datatable.TypeNumber,
	"FLOAT4":           datatable.TypeNumber,
	"FLOAT8":           datatable.TypeNumber,
	"REAL":             datatable.TypeNumber,
	"DOUBLE":           datatable.TypeNumber,
	"DOUBLE PRECISION": datatable.TypeNumber,
	"NUMERIC":          datatable.TypeNumber,
	"DECIMAL":          datatable.TypeNumber,

	"TEXT":              datatable.TypeString,
	"VARCHAR":           datatable.TypeString,
	"CHAR":              datatable.TypeString,
	"BPCHAR":            datatable.TypeString,
	"CHARACTER VARYING": datatable.TypeString,
	"NAME":              datatable.TypeString,
	"UUID":              datatable.TypeString,

	"DATE":        datatable.TypeDate,
	"DATETIME":    datatable.TypeDateTime,
	"TIMESTAMP":   datatable.TypeDateTime,
	"TIMESTAMPTZ": datatable.TypeDateTime,
	"TIME":        datatable.TypeTimeOfDay,
	"TIMETZ":      datatable.TypeTimeOfDay,
}

// Query is a named SQL query with optional column type hints, keyed by result column name.
type Query struct {
	SQL   string            `yaml:"sql"`
	Types map[string]string `yaml:"types"`
}

// FromSQL runs query and builds a table from the result set. Column labels are
// the result column names; types come from the driver's type names, or from
// the first non-null value when the driver reports none.
func FromSQL(ctx context.Context, db Querier, query string, args []interface{}, opts ...datatable.Option) (*datatable.DataTable, error) {
	return FromQuery(ctx, db, Query{SQL: query}, args, opts...)
}

// FromQuery is FromSQL with the type hints of q taking precedence.
func FromQuery(ctx context.Context, db Querier, q Query, args []interface{}, opts ...datatable.Option) (*datatable.DataTable, error) {
	hints := make(map[string]datatable.ColumnType, len(q.Types))
	for col, name := range q.Types {
		typ, err := datatable.ParseColumnType(name)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		hints[col] = typ
	}

	rows, err := db.QueryContext(ctx, q.SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return FromRows(rows, hints, opts...)
}

// FromRows builds a table from an open result set. It does not close rows.
func FromRows(rows *sql.Rows, hints map[string]datatable.ColumnType, opts ...datatable.Option) (*datatable.DataTable, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	n := len(colTypes)
	types := make([]datatable.ColumnType, n)
	labels := make([]string, n)
	known := make([]bool, n)
	zoneless := make([]bool, n)
	for i, ct := range colTypes {
		labels[i] = ct.Name()
		name := normalizeTypeName(ct.DatabaseTypeName())
		types[i], known[i] = sqlTypeNames[name]
		if typ, ok := hints[labels[i]]; ok {
			types[i], known[i] = typ, true
		}
		zoneless[i] = name != "TIMESTAMPTZ"
	}

	var raw [][]interface{}
	for rows.Next() {
		values := make([]interface{}, n)
		ptrs := make([]interface{}, n)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			if !known[i] && v != nil {
				types[i], known[i] = inferType(v), true
			}
		}
		raw = append(raw, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	for i := range types {
		if !known[i] {
			types[i] = datatable.TypeString
		}
	}

	dt := datatable.New(opts...)
	if err := addColumns(dt, types, labels); err != nil {
		return nil, err
	}

	loc := dt.Timezone()
	cells := make([][]interface{}, len(raw))
	for r, values := range raw {
		row := make([]interface{}, n)
		for i, v := range values {
			if row[i], err = sqlValue(v, types[i], zoneless[i], loc); err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", r, labels[i], err)
			}
		}
		cells[r] = row
	}
	if err := dt.AddRows(cells); err != nil {
		return nil, err
	}
	return dt, nil
}

// normalizeTypeName strips length, precision, signedness and the array prefix.
func normalizeTypeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	name = strings.TrimPrefix(name, "UNSIGNED ")
	name = strings.TrimSuffix(name, " UNSIGNED")
	return strings.TrimPrefix(name, "_")
}

func inferType(v interface{}) datatable.ColumnType {
	switch v.(type) {
	case bool:
		return datatable.TypeBoolean
	case int64, int32, int, float64, float32:
		return datatable.TypeNumber
	case time.Time:
		return datatable.TypeDateTime
	}
	return datatable.TypeString
}

// sqlValue adapts a scanned driver value to the column type. Zone-less
// temporal values keep their wall clock and are placed in loc.
func sqlValue(v interface{}, typ datatable.ColumnType, zoneless bool, loc *time.Location) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch typ {
	case datatable.TypeBoolean:
		switch b := v.(type) {
		case int64:
			return b != 0, nil
		case string:
			return strconv.ParseBool(b)
		}
	case datatable.TypeNumber:
		if s, ok := v.(string); ok {
			return strconv.ParseFloat(s, 64)
		}
	case datatable.TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Sprint(v), nil
		}
	case datatable.TypeDate:
		if t, ok := v.(time.Time); ok {
			return wallDate(t, loc), nil
		}
	case datatable.TypeDateTime:
		if t, ok := v.(time.Time); ok && zoneless {
			return wallClock(t, loc), nil
		}
	case datatable.TypeTimeOfDay:
		if t, ok := v.(time.Time); ok {
			return wallTimeOfDay(t, loc), nil
		}
	}
	return v, nil
}

// Transient reports whether err is a database failure worth retrying:
// connection exceptions, serialization failures, deadlocks and resource exhaustion.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
	}
	return false
}
