package datatable

// Column declares the type of every cell at its index.
type Column struct {
	typ    ColumnType
	label  string
	id     string
	role   Role
	format Format
}

// Type returns the column type.
func (c *Column) Type() ColumnType {
	return c.typ
}

// Label returns the display label; role columns have none.
func (c *Column) Label() string {
	return c.label
}

// ID returns the optional column identifier.
func (c *Column) ID() string {
	return c.id
}

// Role returns the role annotation, or "" for a data column.
func (c *Column) Role() Role {
	return c.role
}

// IsRole reports whether the column annotates another column.
func (c *Column) IsRole() bool {
	return c.role != ""
}

// Format returns the attached format, or nil.
func (c *Column) Format() Format {
	return c.format
}

// IsFormatted reports whether a format is attached.
func (c *Column) IsFormatted() bool {
	return c.format != nil
}
