package tablesource

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/shopspring/decimal"
)

// TagName is the struct tag read by FromStructs: `chart:"Label,type"`.
// A tag of "-" skips the field; the type part is optional.
const TagName = "chart"

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

type structField struct {
	index int
	name  string
	label string
	typ   datatable.ColumnType
}

// FromStructs builds a table from a slice of structs or maps.
//
// For structs, exported fields become columns in declaration order; fields
// narrows and orders them. For maps, fields names the keys to read; when it is
// empty the sorted union of keys of the first rows is used.
func FromStructs(data interface{}, fields []string, opts ...datatable.Option) (*datatable.DataTable, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("data must be a slice, got %T", data)
	}

	elem := v.Type().Elem()
	for elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	switch elem.Kind() {
	case reflect.Struct:
		return fromStructSlice(v, elem, fields, opts)
	case reflect.Map:
		if elem.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map rows must have string keys, got %s", elem.Key())
		}
		return fromMapSlice(v, fields, opts)
	}
	return nil, fmt.Errorf("slice element must be a struct or a map, got %s", elem)
}

func fromStructSlice(v reflect.Value, elem reflect.Type, fields []string, opts []datatable.Option) (*datatable.DataTable, error) {
	all, err := getStructFields(elem)
	if err != nil {
		return nil, err
	}
	cols := all
	if len(fields) > 0 {
		byName := make(map[string]structField, len(all))
		for _, f := range all {
			byName[f.name] = f
		}
		cols = make([]structField, 0, len(fields))
		for _, name := range fields {
			f, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("field %s not found in %s", name, elem)
			}
			cols = append(cols, f)
		}
	}

	dt := datatable.New(opts...)
	types := make([]datatable.ColumnType, len(cols))
	labels := make([]string, len(cols))
	for i, c := range cols {
		types[i], labels[i] = c.typ, c.label
	}
	if err := addColumns(dt, types, labels); err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		row := make([]interface{}, len(cols))
		if item, ok := deref(v.Index(i)); ok && item.Kind() == reflect.Struct {
			for j, c := range cols {
				row[j] = extractValue(item.Field(c.index), c.typ, dt.Timezone())
			}
		}
		rows = append(rows, row)
	}
	if err := dt.AddRows(rows); err != nil {
		return nil, err
	}
	return dt, nil
}

// getStructFields lists the exported fields of t that map to a column type.
func getStructFields(t reflect.Type) ([]structField, error) {
	var fields []structField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		label, typeName := field.Name, ""
		if tag, ok := field.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			parts := strings.SplitN(tag, ",", 2)
			if parts[0] != "" {
				label = parts[0]
			}
			if len(parts) == 2 {
				typeName = strings.TrimSpace(parts[1])
			}
		}

		var (
			typ datatable.ColumnType
			err error
		)
		if typeName != "" {
			if typ, err = datatable.ParseColumnType(typeName); err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
		} else if typ, err = columnTypeOf(field.Type); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		fields = append(fields, structField{index: i, name: field.Name, label: label, typ: typ})
	}
	return fields, nil
}

func columnTypeOf(t reflect.Type) (datatable.ColumnType, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return datatable.TypeDateTime, nil
	case t == decimalType:
		return datatable.TypeNumber, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return datatable.TypeBoolean, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return datatable.TypeNumber, nil
	case reflect.String:
		return datatable.TypeString, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// extractValue dereferences v and adapts it to the column type.
func extractValue(v reflect.Value, typ datatable.ColumnType, loc *time.Location) interface{} {
	v, ok := deref(v)
	if !ok {
		return nil
	}

	out := v.Interface()
	if t, ok := out.(time.Time); ok {
		if t.IsZero() {
			return nil
		}
		switch typ {
		case datatable.TypeDate:
			return wallDate(t.In(loc), loc)
		case datatable.TypeTimeOfDay:
			return wallTimeOfDay(t.In(loc), loc)
		}
		return t
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	}
	return out
}

// deref follows pointers and interfaces; ok is false for nil or invalid values.
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

func fromMapSlice(v reflect.Value, fields []string, opts []datatable.Option) (*datatable.DataTable, error) {
	if len(fields) == 0 {
		fields = mapKeys(v)
	}

	// type each column from its first non-nil value
	types := make([]datatable.ColumnType, len(fields))
	for j, name := range fields {
		types[j] = datatable.TypeString
		for i := 0; i < v.Len(); i++ {
			val, ok := deref(mapValue(v.Index(i), name))
			if !ok {
				continue
			}
			typ, err := columnTypeOf(val.Type())
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", name, err)
			}
			types[j] = typ
			break
		}
	}

	dt := datatable.New(opts...)
	if err := addColumns(dt, types, fields); err != nil {
		return nil, err
	}

	rows := make([][]interface{}, v.Len())
	for i := range rows {
		row := make([]interface{}, len(fields))
		for j, name := range fields {
			if val := mapValue(v.Index(i), name); val.IsValid() {
				row[j] = extractValue(val, types[j], dt.Timezone())
			}
		}
		rows[i] = row
	}
	if err := dt.AddRows(rows); err != nil {
		return nil, err
	}
	return dt, nil
}

func mapValue(row reflect.Value, key string) reflect.Value {
	row, ok := deref(row)
	if !ok || row.Kind() != reflect.Map {
		return reflect.Value{}
	}
	return row.MapIndex(reflect.ValueOf(key).Convert(row.Type().Key()))
}

// mapKeys returns the sorted union of keys of the first 50 rows.
func mapKeys(v reflect.Value) []string {
	limit := v.Len()
	if limit > 50 {
		limit = 50
	}
	seen := make(map[string]bool)
	var keys []string
	for i := 0; i < limit; i++ {
		row, ok := deref(v.Index(i))
		if !ok || row.Kind() != reflect.Map {
			continue
		}
		for _, key := range row.MapKeys() {
			if k := key.String(); !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
