package tablesource

import (
	"bytes"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var visitsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "day", Type: arrow.FixedWidthTypes.Date32},
	{Name: "visitors", Type: arrow.PrimitiveTypes.Int64},
	{Name: "revenue", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "note", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "active", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "seen", Type: &arrow.TimestampType{Unit: arrow.Second}},
	{Name: "opens", Type: arrow.FixedWidthTypes.Time32s},
}, nil)

func buildVisits(t *testing.T, mem memory.Allocator) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(mem, visitsSchema)
	defer b.Release()

	d1 := time.Date(1988, time.March, 24, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	b.Field(0).(*array.Date32Builder).AppendValues([]arrow.Date32{arrow.Date32FromTime(d1), arrow.Date32FromTime(d2)}, nil)
	b.Field(1).(*array.Int64Builder).AppendValues([]int64{10, 12}, nil)
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{99.5, 0}, []bool{true, false})
	b.Field(3).(*array.StringBuilder).AppendValues([]string{"launch", ""}, []bool{true, false})
	b.Field(4).(*array.BooleanBuilder).AppendValues([]bool{true, false}, nil)
	b.Field(5).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{
		arrow.Timestamp(d1.Add(8*time.Hour + time.Minute + 5*time.Second).Unix()),
		arrow.Timestamp(d2.Unix()),
	}, nil)
	b.Field(6).(*array.Time32Builder).AppendValues([]arrow.Time32{8*3600 + 60 + 5, 9 * 3600}, nil)
	return b.NewRecord()
}

const visitsWire = `{
	"cols": [
		{"id": "", "label": "day", "type": "date"},
		{"id": "", "label": "visitors", "type": "number"},
		{"id": "", "label": "revenue", "type": "number"},
		{"id": "", "label": "note", "type": "string"},
		{"id": "", "label": "active", "type": "boolean"},
		{"id": "", "label": "seen", "type": "datetime"},
		{"id": "", "label": "opens", "type": "timeofday"}
	],
	"rows": [
		{"c": [{"v": "Date(1988,2,24,0,0,0)"}, {"v": 10}, {"v": 99.5}, {"v": "launch"}, {"v": true}, {"v": "Date(1988,2,24,8,1,5)"}, {"v": [8, 1, 5]}]},
		{"c": [{"v": "Date(1988,2,25,0,0,0)"}, {"v": 12}, {"v": null}, {"v": null}, {"v": false}, {"v": "Date(1988,2,25,0,0,0)"}, {"v": [9, 0, 0]}]}
	]
}`

func TestFromArrow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := buildVisits(t, mem)
	defer rec.Release()

	dt, err := FromArrow(rec, laLocation(t))
	require.NoError(t, err)

	got, err := dt.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, visitsWire, string(got))
}

func TestFromArrowStream(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(visitsSchema), ipc.WithAllocator(mem))
	for i := 0; i < 2; i++ {
		rec := buildVisits(t, mem)
		require.NoError(t, w.Write(rec))
		rec.Release()
	}
	require.NoError(t, w.Close())

	dt, err := FromArrowStream(&buf, mem, laLocation(t))
	require.NoError(t, err)
	assert.Equal(t, 7, dt.ColumnCount())
	assert.Equal(t, 4, dt.RowCount())
}

func TestFromArrowUnsupported(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{{Name: "blob", Type: arrow.BinaryTypes.Binary}}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.BinaryBuilder).Append([]byte("x"))
	rec := b.NewRecord()
	defer rec.Release()

	_, err := FromArrow(rec)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFromArrowZonedTimestamp(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	instant := time.Date(1988, time.March, 24, 16, 1, 5, 0, time.UTC)
	b.Field(0).(*array.TimestampBuilder).Append(arrow.Timestamp(instant.UnixMilli()))
	rec := b.NewRecord()
	defer rec.Release()

	dt, err := FromArrow(rec, laLocation(t))
	require.NoError(t, err)
	cell, err := dt.Rows()[0].Cell(0)
	require.NoError(t, err)
	assert.Equal(t, datatable.DateLiteral(instant.In(dt.Timezone())), cell.String())
	assert.Equal(t, "Date(1988,2,24,8,1,5)", cell.String())
}
