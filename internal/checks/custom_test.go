package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/pkg/models"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		observed   interface{}
		expected   interface{}
		comparator string
		want       bool
	}{
		{5.0, 5, "equals", true},
		{5.0, 6, "equals", false},
		{"active", "active", "equals", true},
		{5.0, 6, "not_equals", true},
		{5.0, 6.0, "less_than", true},
		{6.0, 6.0, "less_than", false},
		{6.0, 6.0, "less_than_or_equal", true},
		{7.0, 6.0, "greater_than", true},
		{6.0, 6.0, "greater_than_or_equal", true},
	}
	for _, tc := range cases {
		got, err := compare(tc.observed, tc.expected, tc.comparator)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%v %s %v", tc.observed, tc.comparator, tc.expected)
	}

	_, err := compare("active", "pending", "less_than")
	assert.Error(t, err)
}

func TestCustomExpressionCheckMetricExpression(t *testing.T) {
	check, err := newCustomExpressionCheck(map[string]interface{}{
		"expression": "sum:amount",
		"expected":   60,
		"comparator": "equals",
	}, NewRegistry(nil))
	require.NoError(t, err)

	out, err := check.Evaluate(context.Background(), newTestEnv(numbersTable("amount", 10.0, 20.0, 30.0), "amount_sum"))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, 60.0, out.Observed)
}

func TestCustomExpressionCheckRegisteredFunction(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.RegisterExpression("amount_spread", func(ctx context.Context, table *models.Table) (float64, error) {
		cells, err := table.Column("amount")
		if err != nil {
			return 0, err
		}
		min, max := cells[0].(float64), cells[0].(float64)
		for _, cell := range cells {
			v := cell.(float64)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		return max - min, nil
	}))

	check, err := newCustomExpressionCheck(map[string]interface{}{
		"expression": "amount_spread",
		"expected":   100,
		"comparator": "less_than",
	}, registry)
	require.NoError(t, err)

	out, err := check.Evaluate(context.Background(), newTestEnv(numbersTable("amount", 10.0, 20.0, 30.0), "amount_spread"))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, 20.0, out.Observed)
}

func TestCustomExpressionCheckUnknownExpression(t *testing.T) {
	_, err := newCustomExpressionCheck(map[string]interface{}{
		"expression": "no_such_function",
		"expected":   1,
	}, NewRegistry(nil))
	assert.Error(t, err)
}

// queryAccessor wraps a table accessor with a canned query result.
type queryAccessor struct {
	result *models.Table
}

func (a *queryAccessor) SourceKind() models.SourceKind { return models.SourceQueryable }

func (a *queryAccessor) ColumnSchema(ctx context.Context) ([]models.ColumnInfo, error) {
	return nil, nil
}

func (a *queryAccessor) Sample(ctx context.Context, n int, method models.SampleMethod) (*models.Table, error) {
	return a.result, nil
}

func (a *queryAccessor) Aggregate(ctx context.Context, metric models.Metric, groupBy string, filters []models.Filter) ([]models.GroupValue, error) {
	return nil, nil
}

func (a *queryAccessor) Materialize(ctx context.Context) (*models.Table, error) {
	return a.result, nil
}

func (a *queryAccessor) Query(ctx context.Context, query string) (*models.Table, error) {
	return a.result, nil
}

func TestCustomQueryCheck(t *testing.T) {
	check, err := newCustomQueryCheck(map[string]interface{}{
		"query":      "SELECT count(*) FROM orders WHERE amount < 0",
		"expected":   0,
		"comparator": "equals",
	})
	require.NoError(t, err)

	env := newTestEnv(numbersTable("amount", 1.0), "negative_orders")
	env.Accessor = &queryAccessor{result: numbersTable("count", 0.0)}

	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, out.Passed)
}

func TestCustomQueryCheckRequiresQueryableAccessor(t *testing.T) {
	check, err := newCustomQueryCheck(map[string]interface{}{
		"query":    "SELECT 1",
		"expected": 1,
	})
	require.NoError(t, err)

	_, err = check.Evaluate(context.Background(), newTestEnv(numbersTable("amount", 1.0), "q"))
	assert.Error(t, err)
}

func TestCrossTableCheckRowCount(t *testing.T) {
	ref := numbersTable("id", 1.0, 2.0, 3.0)
	resolver := dataset.NewResolver(nil)
	resolver.RegisterTable("orders_replica", ref)

	check, err := newCrossTableCheck(map[string]interface{}{
		"ref_table_name":       "orders_replica",
		"ref_data_source_type": "dataframe",
		"comparison":           "row_count",
	})
	require.NoError(t, err)

	env := newTestEnv(numbersTable("id", 1.0, 2.0, 3.0), "replica_sync")
	env.Resolver = resolver

	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, 3.0, out.Observed)
}

func TestCrossTableCheckAggregateWithTolerance(t *testing.T) {
	resolver := dataset.NewResolver(nil)
	resolver.RegisterTable("orders_replica", numbersTable("amount", 10.0, 20.0, 31.0))

	check, err := newCrossTableCheck(map[string]interface{}{
		"ref_table_name":       "orders_replica",
		"ref_data_source_type": "dataframe",
		"comparison":           "aggregate",
		"metric":               "sum:amount",
		"tolerance":            2,
	})
	require.NoError(t, err)

	env := newTestEnv(numbersTable("amount", 10.0, 20.0, 30.0), "replica_sync")
	env.Resolver = resolver

	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, 1.0, out.Metadata["difference"])
}

func TestCrossTableCheckColumnValues(t *testing.T) {
	refTable := models.NewTable("customer_id")
	for _, id := range []string{"c1", "c2", "c3"} {
		refTable.AppendRow(id)
	}
	resolver := dataset.NewResolver(nil)
	resolver.RegisterTable("customers", refTable)

	orders := models.NewTable("customer_id")
	for _, id := range []string{"c1", "c2", "c2", "c9"} {
		orders.AppendRow(id)
	}

	check, err := newCrossTableCheck(map[string]interface{}{
		"ref_table_name":       "customers",
		"ref_data_source_type": "dataframe",
		"comparison":           "column_values",
		"key_columns":          []interface{}{"customer_id"},
	})
	require.NoError(t, err)

	env := newTestEnv(orders, "orders_have_customers")
	env.Resolver = resolver

	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.Equal(t, 1.0, out.Metadata["missing_keys"])
}

func TestCrossTableCheckRequiresResolver(t *testing.T) {
	check, err := newCrossTableCheck(map[string]interface{}{
		"ref_table_name": "orders_replica",
		"comparison":     "row_count",
	})
	require.NoError(t, err)

	_, err = check.Evaluate(context.Background(), newTestEnv(numbersTable("id", 1.0), "replica_sync"))
	assert.Error(t, err)
}
