package datatable

import (
	"fmt"
	"sort"
)

// FormatFactory builds a Format from definition options.
type FormatFactory func(options map[string]interface{}) (Format, error)

// FormatRegistry resolves format definitions by type name.
type FormatRegistry struct {
	factories map[string]FormatFactory
}

// NewFormatRegistry returns a registry holding the built-in engine formats.
func NewFormatRegistry() *FormatRegistry {
	r := &FormatRegistry{factories: make(map[string]FormatFactory)}
	r.Register("NumberFormat", numberFormatFromOptions)
	r.Register("DateFormat", dateFormatFromOptions)
	r.Register("ArrowFormat", arrowFormatFromOptions)
	r.Register("BarFormat", barFormatFromOptions)
	r.Register("ColorFormat", colorFormatFromOptions)
	return r
}

// Register adds or replaces the factory for name.
func (r *FormatRegistry) Register(name string, factory FormatFactory) *FormatRegistry {
	r.factories[name] = factory
	return r
}

// RegisterFormatter registers a plain formatter function under name.
// This allows referencing formatters by name in definitions.
func (r *FormatRegistry) RegisterFormatter(name string, fn func(interface{}) interface{}) *FormatRegistry {
	return r.Register(name, func(map[string]interface{}) (Format, error) {
		return &FuncFormat{Name: name, Fn: fn}, nil
	})
}

// Names returns the registered format names, sorted.
func (r *FormatRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves the format registered as name.
func (r *FormatRegistry) Build(name string, options map[string]interface{}) (Format, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, name)
	}
	if options == nil {
		options = map[string]interface{}{}
	}
	f, err := factory(options)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, name, err)
	}
	return f, nil
}

func numberFormatFromOptions(o map[string]interface{}) (Format, error) {
	f := NewNumberFormat()
	var err error
	if f.DecimalSymbol, err = optString(o, "decimalSymbol", f.DecimalSymbol); err != nil {
		return nil, err
	}
	if f.FractionDigits, err = optInt(o, "fractionDigits", f.FractionDigits); err != nil {
		return nil, err
	}
	if f.GroupingSymbol, err = optString(o, "groupingSymbol", f.GroupingSymbol); err != nil {
		return nil, err
	}
	if f.NegativeColor, err = optString(o, "negativeColor", ""); err != nil {
		return nil, err
	}
	if f.NegativeParens, err = optBool(o, "negativeParens", false); err != nil {
		return nil, err
	}
	if f.Prefix, err = optString(o, "prefix", ""); err != nil {
		return nil, err
	}
	if f.Suffix, err = optString(o, "suffix", ""); err != nil {
		return nil, err
	}
	if f.FractionDigits < 0 {
		return nil, fmt.Errorf("fractionDigits must not be negative")
	}
	return f, nil
}

func dateFormatFromOptions(o map[string]interface{}) (Format, error) {
	f := &DateFormat{}
	var err error
	if f.FormatType, err = optString(o, "formatType", ""); err != nil {
		return nil, err
	}
	if f.FormatType != "" {
		if _, ok := dateFormatLayouts[f.FormatType]; !ok {
			return nil, fmt.Errorf("formatType %q is not one of short, medium, long", f.FormatType)
		}
	}
	if f.Pattern, err = optString(o, "pattern", ""); err != nil {
		return nil, err
	}
	if _, ok := o["timeZone"]; ok {
		tz, err := optFloat(o, "timeZone", 0)
		if err != nil {
			return nil, err
		}
		f.TimeZone = &tz
	}
	return f, nil
}

func arrowFormatFromOptions(o map[string]interface{}) (Format, error) {
	base, err := optFloat(o, "base", 0)
	if err != nil {
		return nil, err
	}
	return &ArrowFormat{Base: base}, nil
}

func barFormatFromOptions(o map[string]interface{}) (Format, error) {
	f := &BarFormat{}
	var err error
	if f.Base, err = optFloat(o, "base", 0); err != nil {
		return nil, err
	}
	if f.ColorNegative, err = optString(o, "colorNegative", ""); err != nil {
		return nil, err
	}
	if f.ColorPositive, err = optString(o, "colorPositive", ""); err != nil {
		return nil, err
	}
	if f.DrawZeroLine, err = optBool(o, "drawZeroLine", false); err != nil {
		return nil, err
	}
	if f.ShowValue, err = optBool(o, "showValue", true); err != nil {
		return nil, err
	}
	if f.Width, err = optInt(o, "width", 0); err != nil {
		return nil, err
	}
	for _, key := range []string{"max", "min"} {
		if _, ok := o[key]; !ok {
			continue
		}
		v, err := optFloat(o, key, 0)
		if err != nil {
			return nil, err
		}
		if key == "max" {
			f.Max = &v
		} else {
			f.Min = &v
		}
	}
	return f, nil
}

func colorFormatFromOptions(o map[string]interface{}) (Format, error) {
	raw, ok := o["ranges"]
	if !ok {
		return &ColorFormat{}, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("ranges must be a list, got %T", raw)
	}
	f := &ColorFormat{Ranges: make([]ColorRange, 0, len(list))}
	for i, item := range list {
		m, err := toStringMap(item)
		if err != nil {
			return nil, fmt.Errorf("range %d: %w", i, err)
		}
		r := ColorRange{From: m["from"], To: m["to"]}
		if r.Color, err = optString(m, "color", ""); err != nil {
			return nil, err
		}
		if r.BgColor, err = optString(m, "bgcolor", ""); err != nil {
			return nil, err
		}
		f.Ranges = append(f.Ranges, r)
	}
	return f, nil
}

func optString(o map[string]interface{}, key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

func optBool(o map[string]interface{}, key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a bool, got %T", key, v)
	}
	return b, nil
}

func optFloat(o map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%s must be a number, got %T", key, v)
}

func optInt(o map[string]interface{}, key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s must be a whole number, got %v", key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
}
