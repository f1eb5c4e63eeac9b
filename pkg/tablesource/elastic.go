package tablesource

import (
	"context"
	"fmt"
	"time"

	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/olivere/elastic/v7"
)

const histogramAggName = "histogram"

// Metric is a per-bucket value computed by a sub-aggregation.
// Agg is one of avg, sum, min, max, cardinality or count; count uses the bucket doc count.
type Metric struct {
	Name  string `json:"name" yaml:"name"`
	Agg   string `json:"agg" yaml:"agg"`
	Field string `json:"field" yaml:"field"`
}

// HistogramRequest describes a date_histogram over Index.
type HistogramRequest struct {
	Index     string
	DateField string
	// Interval is a calendar interval: minute, hour, day, week, month, quarter or year.
	Interval string
	Metrics  []Metric
	// Query filters the documents; nil matches all.
	Query elastic.Query
}

// FromElasticHistogram runs a date_histogram aggregation and returns a table
// with a datetime column for the bucket key and a number column per metric.
func FromElasticHistogram(ctx context.Context, client *elastic.Client, req HistogramRequest, opts ...datatable.Option) (*datatable.DataTable, error) {
	if req.Index == "" || req.DateField == "" {
		return nil, fmt.Errorf("index and date field are required")
	}
	if req.Interval == "" {
		req.Interval = "day"
	}
	if len(req.Metrics) == 0 {
		req.Metrics = []Metric{{Name: "count", Agg: "count"}}
	}

	hist := elastic.NewDateHistogramAggregation().
		Field(req.DateField).
		CalendarInterval(req.Interval).
		MinDocCount(0)
	for _, m := range req.Metrics {
		agg, err := metricAggregation(m)
		if err != nil {
			return nil, err
		}
		if agg != nil {
			hist = hist.SubAggregation(m.Name, agg)
		}
	}

	query := req.Query
	if query == nil {
		query = elastic.NewMatchAllQuery()
	}
	res, err := client.Search(req.Index).
		Query(query).
		Size(0).
		Aggregation(histogramAggName, hist).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Index, err)
	}

	buckets, ok := res.Aggregations.DateHistogram(histogramAggName)
	if !ok {
		return nil, fmt.Errorf("search %s: response has no %s aggregation", req.Index, histogramAggName)
	}

	dt := datatable.New(opts...)
	types := []datatable.ColumnType{datatable.TypeDateTime}
	labels := []string{req.DateField}
	for _, m := range req.Metrics {
		types = append(types, datatable.TypeNumber)
		labels = append(labels, m.Name)
	}
	if err := addColumns(dt, types, labels); err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(buckets.Buckets))
	for _, b := range buckets.Buckets {
		row := []interface{}{time.UnixMilli(int64(b.Key)).UTC()}
		for _, m := range req.Metrics {
			row = append(row, bucketValue(b, m))
		}
		rows = append(rows, row)
	}
	if err := dt.AddRows(rows); err != nil {
		return nil, err
	}
	return dt, nil
}

func metricAggregation(m Metric) (elastic.Aggregation, error) {
	if m.Name == "" {
		return nil, fmt.Errorf("metric name is required")
	}
	switch m.Agg {
	case "count":
		return nil, nil
	case "avg":
		return elastic.NewAvgAggregation().Field(m.Field), nil
	case "sum":
		return elastic.NewSumAggregation().Field(m.Field), nil
	case "min":
		return elastic.NewMinAggregation().Field(m.Field), nil
	case "max":
		return elastic.NewMaxAggregation().Field(m.Field), nil
	case "cardinality":
		return elastic.NewCardinalityAggregation().Field(m.Field), nil
	}
	return nil, fmt.Errorf("metric %s: unknown aggregation %q", m.Name, m.Agg)
}

// bucketValue returns the metric for b, or nil when the bucket has no value.
func bucketValue(b *elastic.AggregationBucketHistogramItem, m Metric) interface{} {
	if m.Agg == "count" {
		return b.DocCount
	}

	var (
		metric *elastic.AggregationValueMetric
		ok     bool
	)
	switch m.Agg {
	case "avg":
		metric, ok = b.Avg(m.Name)
	case "sum":
		metric, ok = b.Sum(m.Name)
	case "min":
		metric, ok = b.Min(m.Name)
	case "max":
		metric, ok = b.Max(m.Name)
	case "cardinality":
		metric, ok = b.Cardinality(m.Name)
	}
	if !ok || metric == nil || metric.Value == nil {
		return nil
	}
	return *metric.Value
}
