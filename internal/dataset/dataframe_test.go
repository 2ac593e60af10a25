package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/pkg/models"
)

func ordersTable() *models.Table {
	table := models.NewTable("region", "amount", "status")
	table.AppendRow("eu", 10.0, "active")
	table.AppendRow("eu", 20.0, "active")
	table.AppendRow("us", 30.0, nil)
	table.AppendRow("us", nil, "churned")
	table.AppendRow("apac", 40.0, "active")
	return table
}

func TestTableAggregate(t *testing.T) {
	table := ordersTable()

	cases := []struct {
		metric string
		want   float64
	}{
		{"num_rows", 5},
		{"mean:amount", 25},
		{"sum:amount", 100},
		{"min:amount", 10},
		{"max:amount", 40},
		{"count_null:status", 1},
		{"count_distinct:region", 3},
	}
	for _, tc := range cases {
		metric, err := models.ParseMetric(tc.metric)
		require.NoError(t, err)
		got, err := TableAggregate(table, metric)
		require.NoError(t, err, tc.metric)
		assert.Equal(t, tc.want, got, tc.metric)
	}
}

func TestTableAggregateMissingColumn(t *testing.T) {
	metric, err := models.ParseMetric("mean:no_such_column")
	require.NoError(t, err)
	_, err = TableAggregate(ordersTable(), metric)
	assert.Error(t, err)
}

func TestDataFrameAccessorAggregateGrouped(t *testing.T) {
	accessor, err := NewDataFrameAccessor(nil, ordersTable(), nil)
	require.NoError(t, err)

	metric, err := models.ParseMetric("num_rows")
	require.NoError(t, err)
	groups, err := accessor.Aggregate(context.Background(), metric, "region", nil)
	require.NoError(t, err)

	// Group keys come back in ascending order.
	require.Len(t, groups, 3)
	assert.Equal(t, models.GroupValue{Key: "apac", Value: 1}, groups[0])
	assert.Equal(t, models.GroupValue{Key: "eu", Value: 2}, groups[1])
	assert.Equal(t, models.GroupValue{Key: "us", Value: 2}, groups[2])
}

func TestDataFrameAccessorAggregateFiltered(t *testing.T) {
	accessor, err := NewDataFrameAccessor(nil, ordersTable(), nil)
	require.NoError(t, err)

	metric, err := models.ParseMetric("sum:amount")
	require.NoError(t, err)
	values, err := accessor.Aggregate(context.Background(), metric, "",
		[]models.Filter{{Column: "region", Op: "=", Value: "eu"}})
	require.NoError(t, err)

	require.Len(t, values, 1)
	assert.Equal(t, models.GroupKeyAll, values[0].Key)
	assert.Equal(t, 30.0, values[0].Value)
}

func TestDataFrameAccessorSampleFirst(t *testing.T) {
	accessor, err := NewDataFrameAccessor(nil, ordersTable(), nil)
	require.NoError(t, err)

	sample, err := accessor.Sample(context.Background(), 2, models.SampleFirst)
	require.NoError(t, err)
	assert.Equal(t, 2, sample.NumRows())

	// Asking for more rows than exist returns the whole table.
	sample, err = accessor.Sample(context.Background(), 100, models.SampleFirst)
	require.NoError(t, err)
	assert.Equal(t, 5, sample.NumRows())
}

func TestDataFrameAccessorSampleRandom(t *testing.T) {
	accessor, err := NewDataFrameAccessor(nil, ordersTable(), nil)
	require.NoError(t, err)

	sample, err := accessor.Sample(context.Background(), 3, models.SampleRandom)
	require.NoError(t, err)
	assert.Equal(t, 3, sample.NumRows())
	assert.Equal(t, []string{"region", "amount", "status"}, sample.Columns)
}

func TestDataFrameAccessorTimeFilter(t *testing.T) {
	table := models.NewTable("created_at", "amount")
	table.AppendRow(time.Now().Add(-time.Hour), 1.0)
	table.AppendRow(time.Now().Add(-48*time.Hour), 2.0)
	table.AppendRow(time.Now().Add(-30*time.Minute).Format(time.RFC3339), 3.0)

	handle := &models.DatasetHandle{
		SourceKind: models.SourceInMemory,
		TimeFilter: &models.TimeFilter{Column: "created_at", Lookback: 24 * time.Hour},
	}
	accessor, err := NewDataFrameAccessor(handle, table, nil)
	require.NoError(t, err)

	materialized, err := accessor.Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, materialized.NumRows())
}

func TestDataFrameAccessorColumnSchema(t *testing.T) {
	accessor, err := NewDataFrameAccessor(nil, ordersTable(), nil)
	require.NoError(t, err)

	infos, err := accessor.ColumnSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, models.ColumnInfo{Name: "region", DataType: "text", Nullable: false}, infos[0])
	assert.Equal(t, "numeric", infos[1].DataType)
	assert.True(t, infos[1].Nullable)
	assert.True(t, infos[2].Nullable)
}

func TestDataFrameAccessorNilTable(t *testing.T) {
	_, err := NewDataFrameAccessor(nil, nil, nil)
	assert.Error(t, err)
}

func TestMatchFilter(t *testing.T) {
	assert.True(t, matchFilter("eu", models.Filter{Column: "region", Op: "=", Value: "eu"}))
	assert.False(t, matchFilter("us", models.Filter{Column: "region", Op: "=", Value: "eu"}))
	assert.True(t, matchFilter(5.0, models.Filter{Column: "amount", Op: ">", Value: 3}))
	assert.False(t, matchFilter(5.0, models.Filter{Column: "amount", Op: "<=", Value: 3}))
	assert.False(t, matchFilter("text", models.Filter{Column: "amount", Op: ">", Value: 3}))
}
