package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	dir := t.TempDir()
	queries := filepath.Join(dir, "queries.yaml")
	require.NoError(t, os.WriteFile(queries, []byte("one:\n  sql: SELECT 1 AS n\n"), 0o644))

	for key, value := range map[string]string{
		"DB_DRIVER":         "sqlite3",
		"DB_DSN":            ":memory:",
		"DB_MAX_OPEN_CONNS": "1",
		"QUERIES_FILE":      queries,
		"DEFINITIONS_DIR":   filepath.Join(dir, "definitions"),
		"DEFAULT_TIMEZONE":  "UTC",
		"GCP_PROJECT_ID":    "",
		"ELASTICSEARCH_URL": "",
		"LOG_FILE_PATH":     "",
	} {
		t.Setenv(key, value)
	}

	app := NewApp()
	require.NoError(t, app.Initialize(context.Background()))
	defer app.Close()
	assert.NotNil(t, app.DB)
	assert.Nil(t, app.GCP)
	assert.Nil(t, app.Elastic)

	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/datatables/queries/one", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cols": [{"id": "", "label": "n", "type": "number"}], "rows": [{"c": [{"v": 1}]}]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/datatables/definitions/d", strings.NewReader("columns: [string]\nrows: [[a]]\n")))
	assert.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/datatables/histogram", strings.NewReader(`{"index": "orders", "date_field": "at"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
