package tableexport

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable(t *testing.T) *datatable.DataTable {
	t.Helper()
	dt, err := datatable.NewBuilder().
		Timezone("America/Los_Angeles").
		DateColumn("Day").
		NumberColumn("Revenue").
		StringColumn("Note").
		BooleanColumn("Active").
		TimeOfDayColumn("Opens").
		Format(1, datatable.NewNumberFormat()).
		Row("1988-03-24", 1234.5, "launch", true, "08:00:00").
		Row(nil, nil, datatable.FormattedValue{Value: "q", Formatted: "quiet"}, false, nil).
		Build()
	require.NoError(t, err)
	return dt
}

func TestToXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ToXLSX(&buf, sampleTable(t), &XLSXOptions{SheetName: "Visits", Widths: map[int]float64{2: 30}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Visits"}, f.GetSheetList())

	rows, err := f.GetRows("Visits")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Day", "Revenue", "Note", "Active", "Opens"}, rows[0])

	raw := excelize.Options{RawCellValue: true}
	day, err := f.GetCellValue("Visits", "A2", raw)
	require.NoError(t, err)
	assert.Equal(t, "32226", day)

	revenue, err := f.GetCellValue("Visits", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1,234.50", revenue)

	active, err := f.GetCellValue("Visits", "D2")
	require.NoError(t, err)
	assert.Equal(t, "TRUE", active)

	opens, err := f.GetCellValue("Visits", "E2", raw)
	require.NoError(t, err)
	fraction, err := strconv.ParseFloat(opens, 64)
	require.NoError(t, err)
	assert.InDelta(t, 8.0/24, fraction, 1e-9)

	note, err := f.GetCellValue("Visits", "C3")
	require.NoError(t, err)
	assert.Equal(t, "quiet", note)
	empty, err := f.GetCellValue("Visits", "A3")
	require.NoError(t, err)
	assert.Empty(t, empty)

	width, err := f.GetColWidth("Visits", "C")
	require.NoError(t, err)
	assert.Equal(t, 30.0, width)

	headerStyle, err := f.GetCellStyle("Visits", "A1")
	require.NoError(t, err)
	assert.NotZero(t, headerStyle)
}

func TestToXLSXEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ToXLSX(&buf, datatable.New(), nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Sheet1"}, f.GetSheetList())
}

func TestExportColumnAddedAfterRows(t *testing.T) {
	dt := datatable.New(datatable.WithLocation(time.UTC))
	dt.AddNumberColumn("a")
	require.NoError(t, dt.AddRow([]interface{}{1}))
	dt.AddNumberColumn("b").AddStringColumn("c")
	require.NoError(t, dt.DropColumn(1))

	var buf bytes.Buffer
	require.NoError(t, ToXLSX(&buf, dt, nil))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "c"}, rows[0])
	assert.Equal(t, []string{"1"}, rows[1])

	buf.Reset()
	require.NoError(t, ToCSV(&buf, dt))
	assert.Equal(t, "a,c\n1,\n", buf.String())
}

func TestToCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ToCSV(&buf, sampleTable(t)))

	want := strings.Join([]string{
		"Day,Revenue,Note,Active,Opens",
		"1988-03-24T00:00:00-08:00,\"1,234.50\",launch,true,08:00:00",
		",,quiet,false,",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestCSVValue(t *testing.T) {
	dt := datatable.New(datatable.WithLocation(time.UTC))
	dt.AddDateTimeColumn("at").AddNumberColumn("n")
	require.NoError(t, dt.AddRow([]interface{}{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), 0.1}))

	cells := dt.Rows()[0].Cells()
	assert.Equal(t, "2024-01-02T03:04:05Z", csvValue(cells[0]))
	assert.Equal(t, "0.1", csvValue(cells[1]))
}
