package tablesource

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const histogramResponse = `{
	"took": 3,
	"timed_out": false,
	"hits": {"total": {"value": 5, "relation": "eq"}, "hits": []},
	"aggregations": {
		"histogram": {
			"buckets": [
				{"key_as_string": "1988-03-24T00:00:00.000Z", "key": 575164800000, "doc_count": 3, "avg_price": {"value": 10.5}},
				{"key_as_string": "1988-03-25T00:00:00.000Z", "key": 575251200000, "doc_count": 0, "avg_price": {"value": null}}
			]
		}
	}
}`

func newFakeElastic(t *testing.T, body string) (*elastic.Client, *string) {
	t.Helper()
	var captured string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		captured = r.URL.Path + " " + string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)

	client, err := elastic.NewClient(
		elastic.SetURL(ts.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	require.NoError(t, err)
	return client, &captured
}

func TestFromElasticHistogram(t *testing.T) {
	client, captured := newFakeElastic(t, histogramResponse)

	dt, err := FromElasticHistogram(context.Background(), client, HistogramRequest{
		Index:     "orders",
		DateField: "created_at",
		Interval:  "day",
		Metrics: []Metric{
			{Name: "orders", Agg: "count"},
			{Name: "avg_price", Agg: "avg", Field: "price"},
		},
	}, datatable.WithLocation(time.UTC))
	require.NoError(t, err)

	assert.Contains(t, *captured, "/orders/_search")
	assert.Contains(t, *captured, `"date_histogram"`)
	assert.Contains(t, *captured, `"calendar_interval":"day"`)
	assert.Contains(t, *captured, `"avg_price":{"avg":{"field":"price"}}`)

	got, err := dt.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"cols": [
			{"id": "", "label": "created_at", "type": "datetime"},
			{"id": "", "label": "orders", "type": "number"},
			{"id": "", "label": "avg_price", "type": "number"}
		],
		"rows": [
			{"c": [{"v": "Date(1988,2,24,0,0,0)"}, {"v": 3}, {"v": 10.5}]},
			{"c": [{"v": "Date(1988,2,25,0,0,0)"}, {"v": 0}, {"v": null}]}
		]
	}`, string(got))
}

func TestFromElasticHistogramErrors(t *testing.T) {
	client, _ := newFakeElastic(t, `{"took": 1, "hits": {"hits": []}}`)
	ctx := context.Background()

	_, err := FromElasticHistogram(ctx, client, HistogramRequest{DateField: "at"})
	assert.Error(t, err)

	_, err = FromElasticHistogram(ctx, client, HistogramRequest{Index: "orders", DateField: "at",
		Metrics: []Metric{{Name: "p", Agg: "median", Field: "price"}}})
	assert.Error(t, err)

	_, err = FromElasticHistogram(ctx, client, HistogramRequest{Index: "orders", DateField: "at"})
	assert.Error(t, err)
}
