package datatable_test

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSON(t *testing.T) {
	dt := newTable(t)
	dt.AddDateColumn("Day").AddNumberColumn("Visitors")
	require.NoError(t, dt.AddRoleColumn("number", "interval"))
	require.NoError(t, dt.SetColumnID(1, "v"))
	require.NoError(t, dt.AddRows([][]interface{}{
		{la(t, 1988, time.March, 24, 0, 0, 0), 10, datatable.FormattedValue{Value: 8, Formatted: "eight"}},
		{nil, nil, nil},
	}))

	got, err := dt.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"cols": [
			{"id": "", "label": "Day", "type": "date"},
			{"id": "v", "label": "Visitors", "type": "number"},
			{"id": "", "label": "", "type": "number", "p": {"role": "interval"}}
		],
		"rows": [
			{"c": [{"v": "Date(1988,2,24,0,0,0)"}, {"v": 10}, {"v": 8, "f": "eight"}]},
			{"c": [{"v": null}, {"v": null}, {"v": null}]}
		]
	}`, string(got))
	assert.Contains(t, string(got), `{"id":"","label":"Day","type":"date"}`)

	viaMarshal, err := json.Marshal(dt)
	require.NoError(t, err)
	assert.JSONEq(t, string(got), string(viaMarshal))
}

func TestToJSONEmpty(t *testing.T) {
	got, err := datatable.New().ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"cols": [], "rows": []}`, string(got))
}

func TestToJSONTimeOfDay(t *testing.T) {
	dt := newTable(t)
	dt.AddTimeOfDayColumn("At")
	require.NoError(t, dt.AddRow([]interface{}{"08:01:05"}))

	got, err := dt.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"cols": [{"id": "", "label": "At", "type": "timeofday"}], "rows": [{"c": [{"v": [8, 1, 5]}]}]}`, string(got))
}

func TestExplicitFormattedValueWins(t *testing.T) {
	dt := newTable(t)
	dt.AddNumberColumn("n")
	require.NoError(t, dt.FormatColumn(0, datatable.NewNumberFormat()))
	require.NoError(t, dt.AddRows([][]interface{}{
		{datatable.FormattedValue{Value: 5, Formatted: "five"}},
		{5},
	}))

	wire := dt.Encode()
	assert.Equal(t, "five", *wire.Rows[0].C[0].F)
	assert.Equal(t, "5.00", *wire.Rows[1].C[0].F)
}

func TestFormatDescriptors(t *testing.T) {
	dt := datatable.New()
	dt.AddDateColumn("").AddNumberColumn("")
	assert.Empty(t, dt.FormatDescriptors())

	require.NoError(t, dt.FormatColumns(map[int]datatable.Format{
		1: datatable.NewNumberFormat(),
		0: &datatable.DateFormat{FormatType: datatable.DateFormatLong},
	}))

	assert.Equal(t, []datatable.FormatDescriptor{
		{Index: 0, Type: "DateFormat", Options: map[string]interface{}{"formatType": "long"}},
		{Index: 1, Type: "NumberFormat", Options: map[string]interface{}{
			"decimalSymbol":  ".",
			"fractionDigits": 2,
			"groupingSymbol": ",",
		}},
	}, dt.FormatDescriptors())
}
