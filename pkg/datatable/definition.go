package datatable

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// Definition is a declarative table description, decoded from YAML or JSON.
//
// Fields are decoded loosely so that shape errors surface as the same typed
// errors the table methods return.
//
//	name: visitors
//	timezone: America/New_York
//	date_time_format: "2006-01-02"
//	columns:
//	  - date
//	  - [number, Visitors]
//	  - {type: number, role: interval}
//	  - {type: number, label: Revenue, format: {type: NumberFormat, options: {prefix: "$"}}}
//	rows:
//	  - ["2024-01-01", 10, 8, 99.5]
type Definition struct {
	Name           string          `yaml:"name"`
	Timezone       interface{}     `yaml:"timezone"`
	DateTimeFormat interface{}     `yaml:"date_time_format"`
	Columns        []interface{}   `yaml:"columns"`
	Rows           [][]interface{} `yaml:"rows"`
}

// ParseDefinition decodes a YAML (or JSON) table definition.
func ParseDefinition(data []byte) (*Definition, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: definition is empty", ErrInvalidConfigValue)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: decode definition: %v", ErrInvalidConfigValue, err)
	}
	return &def, nil
}

// LoadDefinition decodes data and builds the table it describes.
func LoadDefinition(data []byte, registry *FormatRegistry, opts ...Option) (*DataTable, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return def.Build(registry, opts...)
}

// Build creates a new table from the definition. A nil registry uses the built-in formats.
func (d *Definition) Build(registry *FormatRegistry, opts ...Option) (*DataTable, error) {
	if registry == nil {
		registry = NewFormatRegistry()
	}
	t := New(opts...)

	if d.Timezone != nil {
		name, ok := d.Timezone.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected a string, got %T", ErrInvalidTimeZone, d.Timezone)
		}
		if err := t.SetTimezone(name); err != nil {
			return nil, err
		}
	}

	if d.DateTimeFormat != nil {
		layout, ok := d.DateTimeFormat.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected a string, got %T", ErrInvalidDateTimeFormat, d.DateTimeFormat)
		}
		if err := t.SetDateTimeFormat(layout); err != nil {
			return nil, err
		}
	}

	for i, raw := range d.Columns {
		col, err := columnFromDefinition(raw, registry)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		t.appendColumn(col)
	}

	rows := make([][]interface{}, len(d.Rows))
	for i, values := range d.Rows {
		rows[i] = make([]interface{}, len(values))
		for j, v := range values {
			rows[i][j] = cellFromDefinition(v)
		}
	}
	if err := t.AddRows(rows); err != nil {
		return nil, err
	}
	return t, nil
}

func columnFromDefinition(raw interface{}, registry *FormatRegistry) (*Column, error) {
	switch v := raw.(type) {
	case string, []interface{}:
		return resolveColumn(v)
	case map[interface{}]interface{}, map[string]interface{}:
		m, err := toStringMap(v)
		if err != nil {
			return nil, err
		}
		return columnFromMap(m, registry)
	}
	return nil, fmt.Errorf("%w: got %T", ErrInvalidColumnDefinition, raw)
}

func columnFromMap(m map[string]interface{}, registry *FormatRegistry) (*Column, error) {
	typ, err := ParseColumnType(m["type"])
	if err != nil {
		return nil, err
	}
	col := &Column{typ: typ}

	if col.label, err = optString(m, "label", ""); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigValue, err)
	}
	if col.id, err = optString(m, "id", ""); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigValue, err)
	}
	if raw, ok := m["role"]; ok && raw != nil {
		if col.role, err = ParseRole(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := m["format"]; ok && raw != nil {
		if col.format, err = formatFromDefinition(raw, registry); err != nil {
			return nil, err
		}
	}
	return col, nil
}

func formatFromDefinition(raw interface{}, registry *FormatRegistry) (Format, error) {
	if name, ok := raw.(string); ok {
		return registry.Build(name, nil)
	}
	m, err := toStringMap(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	name, ok := m["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: format type must be a string, got %T", ErrInvalidFormat, m["type"])
	}
	var options map[string]interface{}
	if rawOpts, ok := m["options"]; ok && rawOpts != nil {
		if options, err = toStringMap(rawOpts); err != nil {
			return nil, fmt.Errorf("%w: options: %v", ErrInvalidFormat, err)
		}
	}
	return registry.Build(name, options)
}

// cellFromDefinition turns a {v, f} object into a FormattedValue.
func cellFromDefinition(v interface{}) interface{} {
	switch v.(type) {
	case map[interface{}]interface{}, map[string]interface{}:
	default:
		return v
	}
	m, err := toStringMap(v)
	if err != nil {
		return v
	}
	f, hasF := m["f"].(string)
	if !hasF {
		return m["v"]
	}
	return FormattedValue{Value: m["v"], Formatted: f}
}

// toStringMap normalizes the map types produced by the YAML and JSON decoders.
func toStringMap(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("map key must be a string, got %T", k)
			}
			out[key] = normalizeYAML(val)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a map, got %T", v)
}

func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		if m, err := toStringMap(t); err == nil {
			return m
		}
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalizeYAML(item)
		}
		return out
	}
	return v
}
