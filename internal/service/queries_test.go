package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadQueries(t *testing.T) {
	queries, err := LoadQueries(writeFile(t, `
daily_visits:
  sql: SELECT day, visitors FROM visits ORDER BY day
  types:
    day: date
top_teams:
  sql: SELECT team, score FROM scores
`))
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "date", queries["daily_visits"].Types["day"])
	assert.Empty(t, queries["top_teams"].Types)
}

func TestLoadQueriesErrors(t *testing.T) {
	_, err := LoadQueries(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadQueries(writeFile(t, "visits:\n  types: {day: date}\n"))
	assert.Error(t, err)

	_, err = LoadQueries(writeFile(t, "visits:\n  sql: SELECT 1\n  typo: x\n"))
	assert.Error(t, err)
}
