package service

import (
	"fmt"
	"os"

	"github.com/locvowork/chartdata/pkg/tablesource"
	"gopkg.in/yaml.v2"
)

// LoadQueries reads named SQL queries from a YAML file:
//
//	daily_visits:
//	  sql: SELECT day, visitors FROM visits ORDER BY day
//	  types:
//	    day: date
func LoadQueries(path string) (map[string]tablesource.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}
	queries := make(map[string]tablesource.Query)
	if err := yaml.UnmarshalStrict(data, &queries); err != nil {
		return nil, fmt.Errorf("decode queries file %s: %w", path, err)
	}
	for name, q := range queries {
		if q.SQL == "" {
			return nil, fmt.Errorf("query %s: sql is empty", name)
		}
	}
	return queries, nil
}
