package datatable

import (
	"fmt"
	"reflect"
)

// FormattedValue is a row input carrying an explicit display string next to the raw value.
// It mirrors the engine's {v, f} cell object.
type FormattedValue struct {
	Value     interface{}
	Formatted string
}

// Cell holds one typed value, or null, plus an optional display string.
type Cell struct {
	typ          ColumnType
	value        interface{}
	formatted    string
	hasFormatted bool
}

// Type returns the column type the cell was validated against.
func (c *Cell) Type() ColumnType {
	return c.typ
}

// Value returns the stored value: bool, float64, string or time.Time. Nil means no data.
func (c *Cell) Value() interface{} {
	return c.value
}

// IsNull reports whether the cell has no value.
func (c *Cell) IsNull() bool {
	return c.value == nil
}

// Formatted returns the explicit display string given at insertion time, if any.
func (c *Cell) Formatted() (string, bool) {
	return c.formatted, c.hasFormatted
}

// Encode returns the wire representation of the value.
func (c *Cell) Encode() interface{} {
	if c.value == nil {
		return nil
	}
	return typeSpecs[c.typ].encode(c.value)
}

// String renders the encoded value as text; date cells render their Date(...) literal.
func (c *Cell) String() string {
	if c.value == nil {
		return ""
	}
	switch enc := c.Encode().(type) {
	case string:
		return enc
	default:
		return fmt.Sprint(enc)
	}
}

func newCell(t *DataTable, typ ColumnType, raw interface{}) (*Cell, error) {
	c := &Cell{typ: typ}

	if fv, ok := raw.(FormattedValue); ok {
		c.formatted, c.hasFormatted = fv.Formatted, true
		raw = fv.Value
	}

	if isNull(raw) {
		return c, nil
	}

	v, err := typeSpecs[typ].coerce(t, raw)
	if err != nil {
		return nil, err
	}
	c.value = v
	return c, nil
}

func isNull(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
