package datatable

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// typeSpec holds the per-type behaviour used by rows and serialization.
type typeSpec struct {
	// coerce validates a non-nil input and converts it into the stored representation.
	coerce func(t *DataTable, v interface{}) (interface{}, error)
	// encode converts a non-nil stored value into its wire representation.
	encode func(v interface{}) interface{}
}

var typeSpecs = map[ColumnType]typeSpec{
	TypeBoolean:   {coerce: coerceBoolean, encode: encodeScalar},
	TypeNumber:    {coerce: coerceNumber, encode: encodeScalar},
	TypeString:    {coerce: coerceString, encode: encodeScalar},
	TypeDate:      {coerce: coerceDate, encode: encodeDate},
	TypeDateTime:  {coerce: coerceDate, encode: encodeDate},
	TypeTimeOfDay: {coerce: coerceTimeOfDay, encode: encodeTimeOfDay},
}

// timeOfDayLayouts are tried, in order, for timeofday strings when no layout is configured.
var timeOfDayLayouts = []string{
	"15:04:05.000",
	"15:04:05",
	"15:04",
	"3:04:05PM",
	"3:04PM",
}

func coerceBoolean(_ *DataTable, v interface{}) (interface{}, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: boolean column expects a bool, got %T", ErrInvalidCellValue, v)
	}
	return b, nil
}

func coerceNumber(_ *DataTable, v interface{}) (interface{}, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: number column cannot hold %v", ErrInvalidCellValue, f)
	}
	return f, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidCellValue, err)
		}
		return f, nil
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("%w: number column expects an int or float, got %T", ErrInvalidCellValue, v)
}

func coerceString(_ *DataTable, v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: string column expects a string, got %T", ErrInvalidCellValue, v)
	}
	return s, nil
}

func coerceDate(t *DataTable, v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case time.Time:
		return d.In(t.location), nil
	case *time.Time:
		return d.In(t.location), nil
	case string:
		return t.parseDateString(d, nil)
	}
	return nil, fmt.Errorf("%w: expected a time.Time or a date string, got %T", ErrInvalidDate, v)
}

func coerceTimeOfDay(t *DataTable, v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case time.Time:
		return d.In(t.location), nil
	case *time.Time:
		return d.In(t.location), nil
	case string:
		return t.parseDateString(d, timeOfDayLayouts)
	}
	return nil, fmt.Errorf("%w: expected a time.Time or a time string, got %T", ErrInvalidDate, v)
}

// parseDateString parses s in the table's zone. The configured layout wins;
// otherwise the fallback layouts are tried before permissive parsing.
func (t *DataTable) parseDateString(s string, fallbacks []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrInvalidDate)
	}

	if t.layoutErr != nil {
		return time.Time{}, t.layoutErr
	}
	if t.dateTimeFormat != "" {
		parsed, err := time.ParseInLocation(t.dateTimeFormat, s, t.location)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q does not match layout %q", ErrInvalidDate, s, t.dateTimeFormat)
		}
		return parsed, nil
	}

	for _, layout := range fallbacks {
		if parsed, err := time.ParseInLocation(layout, s, t.location); err == nil {
			return parsed, nil
		}
	}

	parsed, err := dateparse.ParseIn(s, t.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return parsed.In(t.location), nil
}

func encodeScalar(v interface{}) interface{} {
	return v
}

func encodeDate(v interface{}) interface{} {
	return DateLiteral(v.(time.Time))
}

func encodeTimeOfDay(v interface{}) interface{} {
	d := v.(time.Time)
	parts := []int{d.Hour(), d.Minute(), d.Second()}
	if ms := d.Nanosecond() / int(time.Millisecond); ms != 0 {
		parts = append(parts, ms)
	}
	return parts
}

// DateLiteral renders d as the engine's Date(Y,M,D,H,Mi,S) literal.
// The month is zero-based.
func DateLiteral(d time.Time) string {
	return fmt.Sprintf("Date(%d,%d,%d,%d,%d,%d)",
		d.Year(), int(d.Month())-1, d.Day(), d.Hour(), d.Minute(), d.Second())
}

// validLayout reports whether layout contains at least one reference-time element.
func validLayout(layout string) bool {
	probe := time.Date(2001, time.February, 3, 4, 5, 6, 7, time.UTC)
	return probe.Format(layout) != layout
}
