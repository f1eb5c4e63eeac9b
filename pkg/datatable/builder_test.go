package datatable_test

import (
	"testing"

	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	dt, err := datatable.NewBuilder().
		Timezone(tzLA).
		DateTimeFormat("2006-01-02").
		DateColumn("Day").
		NumberColumn("Visitors").
		RoleColumn("string", "tooltip").
		Format(1, datatable.NewNumberFormat()).
		Row("1988-03-24", 10, "ten").
		Rows([][]interface{}{{"1988-03-25", 11, nil}}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, tzLA, dt.Timezone().String())
	assert.Equal(t, 3, dt.ColumnCount())
	assert.Equal(t, 2, dt.RowCount())
	assert.Equal(t, []int{1}, dt.FormattedIndices())
}

func TestBuilderKeepsFirstError(t *testing.T) {
	b := datatable.NewBuilder().
		NumberColumn("a").
		Timezone("Murica").
		Column("hotdogs").
		NumberColumn("b")

	assert.ErrorIs(t, b.Err(), datatable.ErrInvalidTimeZone)

	dt, err := b.Build()
	assert.ErrorIs(t, err, datatable.ErrInvalidTimeZone)
	assert.Nil(t, dt)
}

func TestBuilderEdit(t *testing.T) {
	dt := datatable.New()
	dt.AddStringColumn("name")

	got, err := datatable.Edit(dt).
		Columns([]interface{}{"number", "Score"}, "boolean").
		Row("falcons", 3, true).
		Build()
	require.NoError(t, err)
	assert.Same(t, dt, got)
	assert.Equal(t, []string{"name", "Score", ""}, dt.ColumnLabels())

	_, err = datatable.Edit(dt).Row("tacos").Build()
	assert.ErrorIs(t, err, datatable.ErrInvalidCellCount)
	assert.Equal(t, 1, dt.RowCount())
}
