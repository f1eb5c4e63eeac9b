package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, InitLogging(path, "warn"))

	ctx := WithRequestID(context.Background(), "req-42")
	InfoLog(ctx, "dropped at warn level")
	WarnLog(ctx, "rendered %d tables", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "dropped at warn level")
	assert.Contains(t, out, `"message":"rendered 3 tables"`)
	assert.Contains(t, out, `"request_id":"req-42"`)
}

func TestInitLoggingBadPath(t *testing.T) {
	err := InitLogging(filepath.Join(t.TempDir(), "missing", "app.log"), "info")
	assert.Error(t, err)
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "abc", RequestID(WithRequestID(context.Background(), "abc")))
}
