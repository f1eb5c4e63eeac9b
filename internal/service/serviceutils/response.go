package serviceutils

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/chartdata/internal/service"
	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/locvowork/chartdata/pkg/tablesource"
)

type GenericResponse struct {
	Success bool
	Message string
	Data    interface{}
	Error   string
}

func ResponseSuccess(c echo.Context, code int, msg string, data interface{}) error {
	return c.JSON(code, GenericResponse{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

func ResponseError(c echo.Context, code int, msg string, err error) error {
	resp := GenericResponse{
		Success: false,
		Message: msg,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(code, resp)
}

// tableErrors are caller mistakes: bad definitions, rows or source data.
var tableErrors = []error{
	datatable.ErrInvalidConfigValue,
	datatable.ErrInvalidColumnType,
	datatable.ErrInvalidColumnDefinition,
	datatable.ErrInvalidColumnIndex,
	datatable.ErrInvalidColumnRole,
	datatable.ErrInvalidCellCount,
	datatable.ErrInvalidCellValue,
	datatable.ErrInvalidDate,
	datatable.ErrInvalidTimeZone,
	datatable.ErrInvalidDateTimeFormat,
	datatable.ErrInvalidFormat,
	tablesource.ErrUnsupportedType,
}

// StatusCode maps an error to the HTTP status it should be reported with.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	}
	for _, target := range tableErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
