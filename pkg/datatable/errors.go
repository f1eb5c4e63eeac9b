package datatable

import "errors"

// Errors returned by the datatable package. They are wrapped with context,
// so compare with errors.Is.
var (
	// ErrInvalidConfigValue is returned when a definition has the wrong shape.
	ErrInvalidConfigValue = errors.New("invalid config value")

	// ErrInvalidColumnType is returned for an unrecognized column type.
	ErrInvalidColumnType = errors.New("invalid column type")

	// ErrInvalidColumnDefinition is returned when a column definition is neither a type nor a pair.
	ErrInvalidColumnDefinition = errors.New("invalid column definition")

	// ErrInvalidColumnIndex is returned when a column index is out of range.
	ErrInvalidColumnIndex = errors.New("invalid column index")

	// ErrInvalidColumnRole is returned for an unrecognized column role.
	ErrInvalidColumnRole = errors.New("invalid column role")

	// ErrInvalidCellCount is returned when a row does not have one value per column.
	ErrInvalidCellCount = errors.New("invalid cell count")

	// ErrInvalidCellValue is returned when a value does not match its column type.
	ErrInvalidCellValue = errors.New("invalid cell value")

	// ErrInvalidDate is returned when a value cannot be coerced into a date/time instant.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidTimeZone is returned for an unknown time zone name.
	ErrInvalidTimeZone = errors.New("invalid time zone")

	// ErrInvalidDateTimeFormat is returned for an unusable date/time input layout.
	ErrInvalidDateTimeFormat = errors.New("invalid date time format")

	// ErrInvalidFormat is returned when a format definition cannot be resolved.
	ErrInvalidFormat = errors.New("invalid format")
)
