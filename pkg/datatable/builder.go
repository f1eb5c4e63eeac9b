package datatable

// Builder chains table mutations. The first failure is kept and every later
// call becomes a no-op; Build reports it.
type Builder struct {
	table *DataTable
	err   error
}

// NewBuilder starts a builder over a new table.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{table: New(opts...)}
}

// Edit starts a builder over an existing table.
func Edit(t *DataTable) *Builder {
	return &Builder{table: t}
}

func (b *Builder) apply(fn func(t *DataTable) error) *Builder {
	if b.err == nil {
		b.err = fn(b.table)
	}
	return b
}

func (b *Builder) Timezone(name string) *Builder {
	return b.apply(func(t *DataTable) error { return t.SetTimezone(name) })
}

func (b *Builder) DateTimeFormat(layout string) *Builder {
	return b.apply(func(t *DataTable) error { return t.SetDateTimeFormat(layout) })
}

func (b *Builder) Column(def interface{}, label ...string) *Builder {
	return b.apply(func(t *DataTable) error { return t.AddColumn(def, label...) })
}

func (b *Builder) Columns(defs ...interface{}) *Builder {
	return b.apply(func(t *DataTable) error { return t.AddColumns(defs) })
}

func (b *Builder) BooleanColumn(label string) *Builder   { return b.Column(TypeBoolean, label) }
func (b *Builder) NumberColumn(label string) *Builder    { return b.Column(TypeNumber, label) }
func (b *Builder) StringColumn(label string) *Builder    { return b.Column(TypeString, label) }
func (b *Builder) DateColumn(label string) *Builder      { return b.Column(TypeDate, label) }
func (b *Builder) DateTimeColumn(label string) *Builder  { return b.Column(TypeDateTime, label) }
func (b *Builder) TimeOfDayColumn(label string) *Builder { return b.Column(TypeTimeOfDay, label) }

func (b *Builder) RoleColumn(columnType, role string) *Builder {
	return b.apply(func(t *DataTable) error { return t.AddRoleColumn(columnType, role) })
}

func (b *Builder) Format(index int, format Format) *Builder {
	return b.apply(func(t *DataTable) error { return t.FormatColumn(index, format) })
}

func (b *Builder) Row(values ...interface{}) *Builder {
	return b.apply(func(t *DataTable) error { return t.AddRow(values) })
}

func (b *Builder) Rows(rows [][]interface{}) *Builder {
	return b.apply(func(t *DataTable) error { return t.AddRows(rows) })
}

// Err returns the first failure, if any.
func (b *Builder) Err() error {
	return b.err
}

// Build returns the table, or the first failure.
func (b *Builder) Build() (*DataTable, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.table, nil
}
