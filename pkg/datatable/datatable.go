package datatable

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DataTable owns an ordered set of typed columns and the rows validated against them.
//
// A DataTable is not safe for concurrent mutation; callers sharing one must
// serialize access themselves.
type DataTable struct {
	cols []*Column
	rows []*Row

	location       *time.Location
	dateTimeFormat string
	// layoutErr is set when WithDateTimeFormat was given a layout that
	// SetDateTimeFormat rejects; date strings then fail with it.
	layoutErr error

	logger zerolog.Logger
}

// Option configures a DataTable at construction.
type Option func(*DataTable)

// WithLocation sets the zone used to interpret and store date-like values.
func WithLocation(loc *time.Location) Option {
	return func(t *DataTable) {
		if loc != nil {
			t.location = loc
		}
	}
}

// WithDateTimeFormat sets the input layout for date strings. A layout that
// SetDateTimeFormat would reject is kept, and every date string coerced
// afterwards fails with ErrInvalidDateTimeFormat.
func WithDateTimeFormat(layout string) Option {
	return func(t *DataTable) {
		if err := t.SetDateTimeFormat(layout); err != nil {
			t.dateTimeFormat = layout
			t.layoutErr = err
		}
	}
}

// WithLogger sets the logger used for debug output of structural changes.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *DataTable) {
		t.logger = logger
	}
}

// New returns an empty table using the process local time zone.
func New(opts ...Option) *DataTable {
	t := &DataTable{
		cols:     make([]*Column, 0),
		rows:     make([]*Row, 0),
		location: time.Local,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// =============================================================================
// Configuration
// =============================================================================

// SetTimezone sets the zone used for date-like values added from now on.
func (t *DataTable) SetTimezone(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTimeZone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeZone, name)
	}
	t.location = loc
	return nil
}

// Timezone returns the configured zone.
func (t *DataTable) Timezone() *time.Location {
	return t.location
}

// SetDateTimeFormat sets the Go reference layout used to parse date strings.
// An empty layout restores permissive parsing.
func (t *DataTable) SetDateTimeFormat(layout string) error {
	if layout != "" && !validLayout(layout) {
		return fmt.Errorf("%w: %q has no reference time elements", ErrInvalidDateTimeFormat, layout)
	}
	t.dateTimeFormat = layout
	t.layoutErr = nil
	return nil
}

// DateTimeFormat returns the configured input layout, or "".
func (t *DataTable) DateTimeFormat() string {
	return t.dateTimeFormat
}

// =============================================================================
// Columns
// =============================================================================

// AddColumn appends a column. def is a type name, or a [type, label] pair given
// as []string, [2]string or []interface{}. A label argument overrides the pair's.
func (t *DataTable) AddColumn(def interface{}, label ...string) error {
	col, err := resolveColumn(def)
	if err != nil {
		return err
	}
	if len(label) > 0 && label[0] != "" {
		col.label = label[0]
	}
	t.appendColumn(col)
	return nil
}

// AddColumns appends a column per definition. Nothing is added if any definition is invalid.
func (t *DataTable) AddColumns(defs []interface{}) error {
	for i, def := range defs {
		if !isColumnDefinition(def) {
			return fmt.Errorf("%w: element %d is a %T", ErrInvalidColumnDefinition, i, def)
		}
	}

	cols := make([]*Column, 0, len(defs))
	for i, def := range defs {
		col, err := resolveColumn(def)
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		cols = append(cols, col)
	}

	for _, col := range cols {
		t.appendColumn(col)
	}
	return nil
}

// AddBooleanColumn appends a boolean column.
func (t *DataTable) AddBooleanColumn(label string) *DataTable {
	return t.addTyped(TypeBoolean, label)
}

// AddNumberColumn appends a number column.
func (t *DataTable) AddNumberColumn(label string) *DataTable {
	return t.addTyped(TypeNumber, label)
}

// AddStringColumn appends a string column.
func (t *DataTable) AddStringColumn(label string) *DataTable {
	return t.addTyped(TypeString, label)
}

// AddDateColumn appends a date column.
func (t *DataTable) AddDateColumn(label string) *DataTable {
	return t.addTyped(TypeDate, label)
}

// AddDateTimeColumn appends a datetime column.
func (t *DataTable) AddDateTimeColumn(label string) *DataTable {
	return t.addTyped(TypeDateTime, label)
}

// AddTimeOfDayColumn appends a timeofday column.
func (t *DataTable) AddTimeOfDayColumn(label string) *DataTable {
	return t.addTyped(TypeTimeOfDay, label)
}

// AddRoleColumn appends a column annotating its neighbour with role.
func (t *DataTable) AddRoleColumn(columnType, role string) error {
	typ, err := ParseColumnType(columnType)
	if err != nil {
		return err
	}
	r, err := ParseRole(role)
	if err != nil {
		return err
	}
	t.appendColumn(&Column{typ: typ, role: r})
	return nil
}

// DropColumn removes the column at index together with the matching cell of
// every row. Later columns and cells shift down by one. This is O(rows*cols).
func (t *DataTable) DropColumn(index int) error {
	if err := t.checkIndex(index); err != nil {
		return err
	}

	t.cols = append(t.cols[:index], t.cols[index+1:]...)
	for _, row := range t.rows {
		row.dropCell(index)
	}

	t.logger.Debug().Int("index", index).Int("columns", len(t.cols)).Msg("column dropped")
	return nil
}

// FormatColumn attaches format to the column at index.
func (t *DataTable) FormatColumn(index int, format Format) error {
	if err := t.checkIndex(index); err != nil {
		return err
	}
	t.cols[index].format = format
	return nil
}

// FormatColumns attaches formats keyed by column index. Nothing is attached if any index is invalid.
func (t *DataTable) FormatColumns(formats map[int]Format) error {
	for index := range formats {
		if err := t.checkIndex(index); err != nil {
			return err
		}
	}
	for index, format := range formats {
		t.cols[index].format = format
	}
	return nil
}

// SetColumnID sets the identifier emitted as the column's "id".
func (t *DataTable) SetColumnID(index int, id string) error {
	if err := t.checkIndex(index); err != nil {
		return err
	}
	t.cols[index].id = id
	return nil
}

// Column returns the column at index.
func (t *DataTable) Column(index int) (*Column, error) {
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}
	return t.cols[index], nil
}

// Columns returns the columns in index order.
func (t *DataTable) Columns() []*Column {
	out := make([]*Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// ColumnCount returns the number of columns.
func (t *DataTable) ColumnCount() int {
	return len(t.cols)
}

// ColumnLabel returns the label of the column at index.
func (t *DataTable) ColumnLabel(index int) (string, error) {
	col, err := t.Column(index)
	if err != nil {
		return "", err
	}
	return col.label, nil
}

// ColumnLabels returns every column label in index order.
func (t *DataTable) ColumnLabels() []string {
	labels := make([]string, len(t.cols))
	for i, col := range t.cols {
		labels[i] = col.label
	}
	return labels
}

// ColumnType returns the type of the column at index.
func (t *DataTable) ColumnType(index int) (ColumnType, error) {
	col, err := t.Column(index)
	if err != nil {
		return "", err
	}
	return col.typ, nil
}

// ColumnsByType returns the columns of type typ keyed by their index in the table.
func (t *DataTable) ColumnsByType(typ ColumnType) map[int]*Column {
	out := make(map[int]*Column)
	for i, col := range t.cols {
		if col.typ == typ {
			out[i] = col
		}
	}
	return out
}

// FormattedColumns returns the columns with an attached format keyed by their index.
func (t *DataTable) FormattedColumns() map[int]*Column {
	out := make(map[int]*Column)
	for i, col := range t.cols {
		if col.format != nil {
			out[i] = col
		}
	}
	return out
}

// FormattedIndices returns the indices of formatted columns in ascending order.
func (t *DataTable) FormattedIndices() []int {
	indices := make([]int, 0)
	for i := range t.FormattedColumns() {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// HasFormattedColumns reports whether any column has a format attached.
func (t *DataTable) HasFormattedColumns() bool {
	for _, col := range t.cols {
		if col.format != nil {
			return true
		}
	}
	return false
}

// =============================================================================
// Rows
// =============================================================================

// AddRow validates values against the columns and appends them as a row.
// A nil or empty slice adds a row of nulls.
func (t *DataTable) AddRow(values []interface{}) error {
	row, err := t.buildRow(values)
	if err != nil {
		return err
	}
	t.rows = append(t.rows, row)
	return nil
}

// AddRows appends every row in order. Nothing is added if any row is invalid.
func (t *DataTable) AddRows(rows [][]interface{}) error {
	built := make([]*Row, 0, len(rows))
	for i, values := range rows {
		row, err := t.buildRow(values)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		built = append(built, row)
	}
	t.rows = append(t.rows, built...)
	return nil
}

// Rows returns the rows in insertion order.
func (t *DataTable) Rows() []*Row {
	out := make([]*Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Row returns the row at index.
func (t *DataTable) Row(index int) (*Row, error) {
	if index < 0 || index >= len(t.rows) {
		return nil, fmt.Errorf("row index %d out of range [0, %d)", index, len(t.rows))
	}
	return t.rows[index], nil
}

// RowCount returns the number of rows.
func (t *DataTable) RowCount() int {
	return len(t.rows)
}

// Bare discards every column and row. Time zone and date format are kept.
func (t *DataTable) Bare() *DataTable {
	t.cols = make([]*Column, 0)
	t.rows = make([]*Row, 0)
	return t
}

// =============================================================================
// Helpers
// =============================================================================

func (t *DataTable) addTyped(typ ColumnType, label string) *DataTable {
	t.appendColumn(&Column{typ: typ, label: label})
	return t
}

func (t *DataTable) appendColumn(col *Column) {
	t.cols = append(t.cols, col)
	for _, row := range t.rows {
		row.cells = append(row.cells, &Cell{typ: col.typ})
	}
	t.logger.Debug().Str("type", col.typ.String()).Int("index", len(t.cols)-1).Msg("column added")
}

func (t *DataTable) checkIndex(index int) error {
	if index < 0 || index >= len(t.cols) {
		return fmt.Errorf("%w: %d out of range [0, %d)", ErrInvalidColumnIndex, index, len(t.cols))
	}
	return nil
}

func (t *DataTable) buildRow(values []interface{}) (*Row, error) {
	if len(values) == 0 {
		cells := make([]*Cell, len(t.cols))
		for i, col := range t.cols {
			cells[i] = &Cell{typ: col.typ}
		}
		return &Row{cells: cells}, nil
	}

	if len(values) != len(t.cols) {
		return nil, fmt.Errorf("%w: got %d values for %d columns", ErrInvalidCellCount, len(values), len(t.cols))
	}

	cells := make([]*Cell, len(values))
	for i, raw := range values {
		cell, err := newCell(t, t.cols[i].typ, raw)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		cells[i] = cell
	}
	return &Row{cells: cells}, nil
}

func isColumnDefinition(def interface{}) bool {
	switch def.(type) {
	case string, ColumnType, []string, [2]string, []interface{}:
		return true
	}
	return false
}

func resolveColumn(def interface{}) (*Column, error) {
	var (
		typ   interface{}
		label interface{} = ""
	)

	switch d := def.(type) {
	case string, ColumnType:
		typ = d
	case []string:
		if len(d) == 0 || len(d) > 2 {
			return nil, fmt.Errorf("%w: column pair has %d elements", ErrInvalidConfigValue, len(d))
		}
		typ = d[0]
		if len(d) == 2 {
			label = d[1]
		}
	case [2]string:
		typ, label = d[0], d[1]
	case []interface{}:
		if len(d) == 0 || len(d) > 2 {
			return nil, fmt.Errorf("%w: column pair has %d elements", ErrInvalidConfigValue, len(d))
		}
		typ = d[0]
		if len(d) == 2 {
			label = d[1]
		}
	default:
		return nil, fmt.Errorf("%w: column definition must be a string or a pair, got %T", ErrInvalidConfigValue, def)
	}

	ct, err := ParseColumnType(typ)
	if err != nil {
		return nil, err
	}
	l, ok := label.(string)
	if !ok {
		return nil, fmt.Errorf("%w: column label must be a string, got %T", ErrInvalidConfigValue, label)
	}
	return &Column{typ: ct, label: l}, nil
}
