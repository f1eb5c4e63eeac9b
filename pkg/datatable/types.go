// Package datatable builds typed, validated tables and serializes them into the
// JSON literal structure understood by the Google Charts visualization engine.
package datatable

import "fmt"

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeBoolean   ColumnType = "boolean"
	TypeNumber    ColumnType = "number"
	TypeString    ColumnType = "string"
	TypeDate      ColumnType = "date"
	TypeDateTime  ColumnType = "datetime"
	TypeTimeOfDay ColumnType = "timeofday"
)

// ColumnTypes lists every recognized column type in declaration order.
var ColumnTypes = []ColumnType{
	TypeBoolean,
	TypeNumber,
	TypeString,
	TypeDate,
	TypeDateTime,
	TypeTimeOfDay,
}

// String returns the wire name of the type.
func (t ColumnType) String() string {
	return string(t)
}

// Valid reports whether t is one of the recognized column types.
func (t ColumnType) Valid() bool {
	_, ok := typeSpecs[t]
	return ok
}

// IsTemporal reports whether values of this type are date/time instants.
func (t ColumnType) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime || t == TypeTimeOfDay
}

// ParseColumnType validates a loosely typed column type declaration.
func ParseColumnType(v interface{}) (ColumnType, error) {
	var name string
	switch t := v.(type) {
	case ColumnType:
		name = string(t)
	case string:
		name = t
	default:
		return "", fmt.Errorf("%w: expected a string, got %T", ErrInvalidColumnType, v)
	}

	ct := ColumnType(name)
	if !ct.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidColumnType, name)
	}
	return ct, nil
}

// Role marks a column as annotating its neighbouring data column.
type Role string

const (
	RoleAnnotation     Role = "annotation"
	RoleAnnotationText Role = "annotationText"
	RoleCertainty      Role = "certainty"
	RoleEmphasis       Role = "emphasis"
	RoleInterval       Role = "interval"
	RoleScope          Role = "scope"
	RoleStyle          Role = "style"
	RoleTooltip        Role = "tooltip"
)

// Roles is the closed set of roles the charting engine understands.
var Roles = []Role{
	RoleAnnotation,
	RoleAnnotationText,
	RoleCertainty,
	RoleEmphasis,
	RoleInterval,
	RoleScope,
	RoleStyle,
	RoleTooltip,
}

func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole validates a loosely typed role declaration.
func ParseRole(v interface{}) (Role, error) {
	var name string
	switch r := v.(type) {
	case Role:
		name = string(r)
	case string:
		name = r
	default:
		return "", fmt.Errorf("%w: expected a string, got %T", ErrInvalidColumnRole, v)
	}

	role := Role(name)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidColumnRole, name)
	}
	return role, nil
}
