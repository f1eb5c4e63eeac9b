package datatable

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Format derives a display string from a cell's raw value without altering it.
type Format interface {
	// Type is the engine's formatter name, e.g. "NumberFormat".
	Type() string
	// Options returns the engine options for the formatter.
	Options() map[string]interface{}
	// FormatValue returns the display string for a non-null stored value.
	// ok is false when the format has nothing to render for v.
	FormatValue(v interface{}) (s string, ok bool)
}

// =============================================================================
// NumberFormat
// =============================================================================

// NumberFormat renders numbers with fixed fraction digits, grouping and affixes.
type NumberFormat struct {
	DecimalSymbol  string
	FractionDigits int
	GroupingSymbol string
	NegativeColor  string
	NegativeParens bool
	Prefix         string
	Suffix         string
}

// NewNumberFormat returns a NumberFormat with the engine defaults: two fraction
// digits, "." as decimal symbol and "," for grouping.
func NewNumberFormat() *NumberFormat {
	return &NumberFormat{
		DecimalSymbol:  ".",
		FractionDigits: 2,
		GroupingSymbol: ",",
	}
}

func (f *NumberFormat) Type() string {
	return "NumberFormat"
}

func (f *NumberFormat) Options() map[string]interface{} {
	opts := map[string]interface{}{
		"decimalSymbol":  f.decimalSymbol(),
		"fractionDigits": f.FractionDigits,
		"groupingSymbol": f.GroupingSymbol,
	}
	if f.NegativeColor != "" {
		opts["negativeColor"] = f.NegativeColor
	}
	if f.NegativeParens {
		opts["negativeParens"] = true
	}
	if f.Prefix != "" {
		opts["prefix"] = f.Prefix
	}
	if f.Suffix != "" {
		opts["suffix"] = f.Suffix
	}
	return opts
}

func (f *NumberFormat) FormatValue(v interface{}) (string, bool) {
	n, ok := v.(float64)
	if !ok {
		return "", false
	}

	d := decimal.NewFromFloat(n).Round(int32(f.FractionDigits))
	negative := d.IsNegative()
	fixed := d.Abs().StringFixed(int32(f.FractionDigits))

	intPart, fracPart := fixed, ""
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, fracPart = fixed[:i], fixed[i+1:]
	}

	var sb strings.Builder
	sb.WriteString(f.Prefix)
	sb.WriteString(groupDigits(intPart, f.GroupingSymbol))
	if fracPart != "" {
		sb.WriteString(f.decimalSymbol())
		sb.WriteString(fracPart)
	}
	sb.WriteString(f.Suffix)

	out := sb.String()
	if negative {
		if f.NegativeParens {
			return "(" + out + ")", true
		}
		return "-" + out, true
	}
	return out, true
}

func (f *NumberFormat) decimalSymbol() string {
	if f.DecimalSymbol == "" {
		return "."
	}
	return f.DecimalSymbol
}

func groupDigits(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// =============================================================================
// DateFormat
// =============================================================================

// Named date format types understood by the engine.
const (
	DateFormatShort  = "short"
	DateFormatMedium = "medium"
	DateFormatLong   = "long"
)

var dateFormatLayouts = map[string]string{
	DateFormatShort:  "1/2/06",
	DateFormatMedium: "Jan 2, 2006",
	DateFormatLong:   "January 2, 2006",
}

// DateFormat renders date-like values. Pattern is a Go reference layout and
// takes precedence over FormatType.
type DateFormat struct {
	FormatType string
	Pattern    string
	// TimeZone is an hour offset from UTC applied before rendering.
	TimeZone *float64
}

func (f *DateFormat) Type() string {
	return "DateFormat"
}

func (f *DateFormat) Options() map[string]interface{} {
	opts := map[string]interface{}{}
	if f.FormatType != "" {
		opts["formatType"] = f.FormatType
	}
	if f.Pattern != "" {
		opts["pattern"] = f.Pattern
	}
	if f.TimeZone != nil {
		opts["timeZone"] = *f.TimeZone
	}
	return opts
}

func (f *DateFormat) FormatValue(v interface{}) (string, bool) {
	d, ok := v.(time.Time)
	if !ok {
		return "", false
	}
	if f.TimeZone != nil {
		offset := int(*f.TimeZone * 3600)
		d = d.In(time.FixedZone(fmt.Sprintf("UTC%+g", *f.TimeZone), offset))
	}
	return d.Format(f.layout()), true
}

func (f *DateFormat) layout() string {
	if f.Pattern != "" {
		return f.Pattern
	}
	if layout, ok := dateFormatLayouts[f.FormatType]; ok {
		return layout
	}
	return dateFormatLayouts[DateFormatShort]
}

// =============================================================================
// Visual formats
// =============================================================================

// ArrowFormat adds an up or down arrow relative to Base. It changes styling only.
type ArrowFormat struct {
	Base float64
}

func (f *ArrowFormat) Type() string { return "ArrowFormat" }

func (f *ArrowFormat) Options() map[string]interface{} {
	return map[string]interface{}{"base": f.Base}
}

func (f *ArrowFormat) FormatValue(interface{}) (string, bool) { return "", false }

// BarFormat draws a bar next to each number. It changes styling only.
type BarFormat struct {
	Base          float64
	ColorNegative string
	ColorPositive string
	DrawZeroLine  bool
	Max           *float64
	Min           *float64
	ShowValue     bool
	Width         int
}

func (f *BarFormat) Type() string { return "BarFormat" }

func (f *BarFormat) Options() map[string]interface{} {
	opts := map[string]interface{}{
		"base":      f.Base,
		"showValue": f.ShowValue,
	}
	if f.ColorNegative != "" {
		opts["colorNegative"] = f.ColorNegative
	}
	if f.ColorPositive != "" {
		opts["colorPositive"] = f.ColorPositive
	}
	if f.DrawZeroLine {
		opts["drawZeroLine"] = true
	}
	if f.Max != nil {
		opts["max"] = *f.Max
	}
	if f.Min != nil {
		opts["min"] = *f.Min
	}
	if f.Width > 0 {
		opts["width"] = f.Width
	}
	return opts
}

func (f *BarFormat) FormatValue(interface{}) (string, bool) { return "", false }

// ColorRange colors cells whose value falls in [From, To).
type ColorRange struct {
	From    interface{} `yaml:"from" json:"from"`
	To      interface{} `yaml:"to" json:"to"`
	Color   string      `yaml:"color" json:"color"`
	BgColor string      `yaml:"bgcolor" json:"bgcolor"`
}

// ColorFormat colors cells by value range. It changes styling only.
type ColorFormat struct {
	Ranges []ColorRange
}

func (f *ColorFormat) Type() string { return "ColorFormat" }

func (f *ColorFormat) Options() map[string]interface{} {
	ranges := make([]map[string]interface{}, len(f.Ranges))
	for i, r := range f.Ranges {
		ranges[i] = map[string]interface{}{
			"from":    r.From,
			"to":      r.To,
			"color":   r.Color,
			"bgcolor": r.BgColor,
		}
	}
	return map[string]interface{}{"ranges": ranges}
}

func (f *ColorFormat) FormatValue(interface{}) (string, bool) { return "", false }

// =============================================================================
// FuncFormat
// =============================================================================

// FuncFormat adapts a plain formatter function, registered by name.
type FuncFormat struct {
	Name string
	Fn   func(interface{}) interface{}
}

func (f *FuncFormat) Type() string {
	return f.Name
}

func (f *FuncFormat) Options() map[string]interface{} {
	return map[string]interface{}{}
}

func (f *FuncFormat) FormatValue(v interface{}) (string, bool) {
	if f.Fn == nil {
		return "", false
	}
	out := f.Fn(v)
	switch o := out.(type) {
	case nil:
		return "", false
	case string:
		return o, true
	}
	return fmt.Sprint(out), true
}
