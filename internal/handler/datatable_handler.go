package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/chartdata/internal/logger"
	"github.com/locvowork/chartdata/internal/service"
	"github.com/locvowork/chartdata/internal/service/serviceutils"
	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/locvowork/chartdata/pkg/tableexport"
	"github.com/locvowork/chartdata/pkg/tablesource"
	"github.com/olivere/elastic/v7"
)

const (
	maxBodyBytes = 8 << 20

	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV  = "text/csv; charset=utf-8"
)

type DataTableHandler struct {
	svc service.DataTableService
}

func NewDataTableHandler(svc service.DataTableService) *DataTableHandler {
	return &DataTableHandler{svc: svc}
}

// RegisterRoutes mounts the handlers on g.
func (h *DataTableHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/render", h.RenderHandler)

	g.GET("/definitions", h.ListDefinitionsHandler)
	g.PUT("/definitions/:name", h.SaveDefinitionHandler)
	g.GET("/definitions/:name", h.GetDefinitionHandler)
	g.GET("/definitions/:name/table", h.DefinitionTableHandler)
	g.DELETE("/definitions/:name", h.DeleteDefinitionHandler)

	g.GET("/queries", h.ListQueriesHandler)
	g.GET("/queries/:name", h.QueryHandler)
	g.GET("/batch", h.BatchHandler)

	g.POST("/histogram", h.HistogramHandler)
	g.POST("/arrow", h.ArrowHandler)
}

// RenderHandler handles POST /datatables/render. The body is a YAML or JSON
// table definition; ?format= selects json (default), xlsx or csv.
func (h *DataTableHandler) RenderHandler(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	dt, err := h.svc.Render(c.Request().Context(), body)
	if err != nil {
		return h.fail(c, "failed to render definition", err)
	}
	return writeTable(c, "datatable", dt)
}

// SaveDefinitionHandler handles PUT /datatables/definitions/:name
func (h *DataTableHandler) SaveDefinitionHandler(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	def, err := h.svc.SaveDefinition(c.Request().Context(), c.Param("name"), body)
	if err != nil {
		return h.fail(c, "failed to save definition", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusCreated, "definition saved", def)
}

// GetDefinitionHandler handles GET /datatables/definitions/:name
func (h *DataTableHandler) GetDefinitionHandler(c echo.Context) error {
	def, err := h.svc.GetDefinition(c.Request().Context(), c.Param("name"))
	if err != nil {
		return h.fail(c, "failed to get definition", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "", def)
}

// DefinitionTableHandler handles GET /datatables/definitions/:name/table
func (h *DataTableHandler) DefinitionTableHandler(c echo.Context) error {
	name := c.Param("name")
	dt, err := h.svc.RenderDefinition(c.Request().Context(), name)
	if err != nil {
		return h.fail(c, "failed to render definition", err)
	}
	return writeTable(c, name, dt)
}

// ListDefinitionsHandler handles GET /datatables/definitions?page_size=&cursor=
func (h *DataTableHandler) ListDefinitionsHandler(c echo.Context) error {
	pageSize := 0
	if v := c.QueryParam("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return serviceutils.ResponseError(c, http.StatusBadRequest, "page_size must be a positive integer", err)
		}
		pageSize = n
	}
	page, err := h.svc.ListDefinitions(c.Request().Context(), pageSize, c.QueryParam("cursor"))
	if err != nil {
		return h.fail(c, "failed to list definitions", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "", page)
}

// DeleteDefinitionHandler handles DELETE /datatables/definitions/:name
func (h *DataTableHandler) DeleteDefinitionHandler(c echo.Context) error {
	if err := h.svc.DeleteDefinition(c.Request().Context(), c.Param("name")); err != nil {
		return h.fail(c, "failed to delete definition", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "definition deleted", nil)
}

// ListQueriesHandler handles GET /datatables/queries
func (h *DataTableHandler) ListQueriesHandler(c echo.Context) error {
	return serviceutils.ResponseSuccess(c, http.StatusOK, "", h.svc.QueryNames())
}

// QueryHandler handles GET /datatables/queries/:name. Repeated ?arg= values
// bind to the query placeholders in order.
func (h *DataTableHandler) QueryHandler(c echo.Context) error {
	name := c.Param("name")
	var args []interface{}
	for _, a := range c.QueryParams()["arg"] {
		args = append(args, a)
	}
	dt, err := h.svc.RunQuery(c.Request().Context(), name, args)
	if err != nil {
		return h.fail(c, "failed to run query", err)
	}
	return writeTable(c, name, dt)
}

// BatchHandler handles GET /datatables/batch?definitions=a,b&queries=c
func (h *DataTableHandler) BatchHandler(c echo.Context) error {
	req := service.BatchRequest{
		Definitions: splitList(c.QueryParam("definitions")),
		Queries:     splitList(c.QueryParam("queries")),
	}
	res, err := h.svc.Batch(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "failed to render batch", err)
	}
	return c.JSON(http.StatusOK, res)
}

type histogramRequest struct {
	Index       string               `json:"index"`
	DateField   string               `json:"date_field"`
	Interval    string               `json:"interval"`
	Metrics     []tablesource.Metric `json:"metrics"`
	QueryString string               `json:"query_string"`
}

// HistogramHandler handles POST /datatables/histogram
func (h *DataTableHandler) HistogramHandler(c echo.Context) error {
	var body histogramRequest
	if err := c.Bind(&body); err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "invalid request body", err)
	}
	if body.Index == "" || body.DateField == "" {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "index and date_field are required", nil)
	}

	req := tablesource.HistogramRequest{
		Index:     body.Index,
		DateField: body.DateField,
		Interval:  body.Interval,
		Metrics:   body.Metrics,
	}
	if body.QueryString != "" {
		req.Query = elastic.NewQueryStringQuery(body.QueryString)
	}
	dt, err := h.svc.Histogram(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "failed to build histogram", err)
	}
	return writeTable(c, body.Index, dt)
}

// ArrowHandler handles POST /datatables/arrow with an Arrow IPC stream body.
func (h *DataTableHandler) ArrowHandler(c echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes)
	dt, err := h.svc.FromArrow(c.Request().Context(), body)
	if err != nil {
		return h.fail(c, "failed to decode arrow stream", err)
	}
	return writeTable(c, "arrow", dt)
}

func (h *DataTableHandler) fail(c echo.Context, msg string, err error) error {
	ctx := c.Request().Context()
	code := serviceutils.StatusCode(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorLog(ctx, "%s: %v", msg, err)
	} else {
		logger.WarnLog(ctx, "%s: %v", msg, err)
	}
	return serviceutils.ResponseError(c, code, msg, err)
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return body, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// writeTable encodes dt in the format named by ?format=.
func writeTable(c echo.Context, name string, dt *datatable.DataTable) error {
	name = fileNameReplacer.Replace(name)
	switch format := c.QueryParam("format"); format {
	case "", "json":
		b, err := dt.ToJSON()
		if err != nil {
			return serviceutils.ResponseError(c, http.StatusInternalServerError, "failed to encode table", err)
		}
		return c.JSONBlob(http.StatusOK, b)

	case "xlsx":
		f, err := tableexport.NewXLSX(dt, &tableexport.XLSXOptions{SheetName: sheetName(name)})
		if err != nil {
			return serviceutils.ResponseError(c, http.StatusInternalServerError, "failed to build workbook", err)
		}
		defer f.Close()
		c.Response().Header().Set(echo.HeaderContentType, mimeXLSX)
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
		c.Response().WriteHeader(http.StatusOK)
		return f.Write(c.Response())

	case "csv":
		c.Response().Header().Set(echo.HeaderContentType, mimeCSV)
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.csv"`, name))
		c.Response().WriteHeader(http.StatusOK)
		return tableexport.ToCSV(c.Response(), dt)

	default:
		return serviceutils.ResponseError(c, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format), nil)
	}
}

const maxSheetName = 31

// characters Excel rejects in sheet names, plus quotes for Content-Disposition
var fileNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_", `"`, "_",
)

// sheetName fits name into Excel's 31 character sheet name limit.
func sheetName(name string) string {
	if r := []rune(name); len(r) > maxSheetName {
		return string(r[:maxSheetName])
	}
	return name
}
