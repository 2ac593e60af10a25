package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/internal/history"
	"github.com/inferloop/dqcore/pkg/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(nil, nil, checks.NewRegistry(nil), history.NewMemoryStore(), dataset.NewResolver(nil), nil)
}

func ordersTable() *models.Table {
	table := models.NewTable("region", "amount")
	rows := []struct {
		region string
		amount float64
	}{
		{"eu", 10}, {"eu", 20}, {"eu", 30},
		{"us", 15}, {"us", 25},
		{"apac", -5}, {"apac", 40},
	}
	for _, r := range rows {
		table.AppendRow(r.region, r.amount)
	}
	return table
}

func frameAccessor(t *testing.T, table *models.Table) *dataset.DataFrameAccessor {
	t.Helper()
	accessor, err := dataset.NewDataFrameAccessor(nil, table, nil)
	require.NoError(t, err)
	return accessor
}

// queryableFrame serves an in-memory table but reports itself as a
// queryable source, which forces the planner onto the pushdown path.
type queryableFrame struct {
	*dataset.DataFrameAccessor
}

func (q *queryableFrame) SourceKind() models.SourceKind { return models.SourceQueryable }

func rowCountDef(name string, min float64) *models.CheckDefinition {
	return &models.CheckDefinition{
		Name: name,
		Kind: models.KindRowCount,
		Parameters: map[string]interface{}{
			"min_rows": min,
		},
		Severity: models.SeverityError,
	}
}

func TestEvaluateAssetDeclarationOrder(t *testing.T) {
	e := newTestEngine(t)
	defs := []*models.CheckDefinition{
		rowCountDef("first", 1),
		rowCountDef("second", 1),
		rowCountDef("third", 1),
	}

	report := e.EvaluateAsset(context.Background(), "orders", frameAccessor(t, ordersTable()), defs)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "first", report.Results[0].CheckName)
	assert.Equal(t, "second", report.Results[1].CheckName)
	assert.Equal(t, "third", report.Results[2].CheckName)
	assert.Equal(t, "orders", report.AssetID)
	assert.NotEmpty(t, report.ReportID)
	assert.False(t, report.Cancelled)
	assert.False(t, report.HasBlockingFailure)
}

func TestEvaluateAssetGroupedCheck(t *testing.T) {
	e := newTestEngine(t)
	defs := []*models.CheckDefinition{{
		Name:       "amounts_positive",
		Kind:       models.KindRangeCheck,
		Parameters: map[string]interface{}{"column": "amount", "min_value": 0},
		GroupBy:    "region",
		Severity:   models.SeverityError,
	}}

	report := e.EvaluateAsset(context.Background(), "orders", frameAccessor(t, ordersTable()), defs)

	// One result per group, ascending group-key order.
	require.Len(t, report.Results, 3)
	assert.Equal(t, "apac", report.Results[0].GroupKey)
	assert.Equal(t, "eu", report.Results[1].GroupKey)
	assert.Equal(t, "us", report.Results[2].GroupKey)
	assert.False(t, report.Results[0].Passed)
	assert.True(t, report.Results[1].Passed)
	assert.True(t, report.Results[2].Passed)

	require.Len(t, report.Summaries, 1)
	assert.Equal(t, 1, report.Summaries[0].FailedGroups)
	assert.False(t, report.Summaries[0].Passed)
}

func TestEvaluateAssetAllowedFailures(t *testing.T) {
	e := newTestEngine(t)
	def := &models.CheckDefinition{
		Name:            "amounts_positive",
		Kind:            models.KindRangeCheck,
		Parameters:      map[string]interface{}{"column": "amount", "min_value": 0},
		GroupBy:         "region",
		AllowedFailures: 1,
		Blocking:        true,
		Severity:        models.SeverityError,
	}

	// One failing group within the tolerance: the check passes overall and
	// the blocking signal stays clear.
	report := e.EvaluateAsset(context.Background(), "orders", frameAccessor(t, ordersTable()), []*models.CheckDefinition{def})
	require.Len(t, report.Summaries, 1)
	assert.True(t, report.Summaries[0].Passed)
	assert.False(t, report.HasBlockingFailure)

	// Tightening the tolerance to zero flips both.
	def.AllowedFailures = 0
	report = e.EvaluateAsset(context.Background(), "orders", frameAccessor(t, ordersTable()), []*models.CheckDefinition{def})
	assert.False(t, report.Summaries[0].Passed)
	assert.True(t, report.HasBlockingFailure)
}

func TestEvaluateAssetCancellationReturnsPartialReport(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	defs := []*models.CheckDefinition{
		rowCountDef("first", 1),
		rowCountDef("second", 1),
	}
	report := e.EvaluateAsset(ctx, "orders", frameAccessor(t, ordersTable()), defs)

	assert.True(t, report.Cancelled)
	assert.Empty(t, report.Results)
	assert.False(t, report.CompletedAt.IsZero())
}

func TestEvaluateAssetCancellationMidRunKeepsCompletedResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first check cancels the run while evaluating, so its own result
	// commits and the remaining checks never start.
	registry := checks.NewRegistry(nil)
	require.NoError(t, registry.RegisterExpression("row_total", func(ctx context.Context, table *models.Table) (float64, error) {
		cancel()
		return float64(table.NumRows()), nil
	}))
	e := New(nil, nil, registry, history.NewMemoryStore(), dataset.NewResolver(nil), nil)

	defs := []*models.CheckDefinition{
		{
			Name:       "first",
			Kind:       models.KindCustomExpression,
			Parameters: map[string]interface{}{"expression": "row_total", "expected": 7},
			Severity:   models.SeverityError,
		},
		rowCountDef("second", 1),
		rowCountDef("third", 1),
	}
	report := e.EvaluateAsset(ctx, "orders", frameAccessor(t, ordersTable()), defs)

	assert.True(t, report.Cancelled)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "first", report.Results[0].CheckName)
	assert.Equal(t, models.StatusEvaluated, report.Results[0].Status)
	assert.True(t, report.Results[0].Passed)
}

func TestEvaluateAssetErroredCheckDoesNotFail(t *testing.T) {
	e := newTestEngine(t)
	defs := []*models.CheckDefinition{{
		Name:       "missing_column",
		Kind:       models.KindRangeCheck,
		Parameters: map[string]interface{}{"column": "no_such_column", "min_value": 0},
		Blocking:   true,
		Severity:   models.SeverityError,
	}}

	report := e.EvaluateAsset(context.Background(), "orders", frameAccessor(t, ordersTable()), defs)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusErrored, report.Results[0].Status)
	assert.False(t, report.Results[0].Failed())
	assert.Contains(t, report.Results[0].Metadata, "error_type")

	// Errored groups do not count toward the failure tolerance, so the
	// check passes and the blocking signal stays clear.
	require.Len(t, report.Summaries, 1)
	assert.Equal(t, 1, report.Summaries[0].ErroredGroups)
	assert.Equal(t, 0, report.Summaries[0].FailedGroups)
	assert.True(t, report.Summaries[0].Passed)
	assert.False(t, report.HasBlockingFailure)
}

func TestEvaluateAssetInvalidDefinitionErrors(t *testing.T) {
	e := newTestEngine(t)
	defs := []*models.CheckDefinition{{
		Name:       "bad_definition",
		Kind:       models.KindRowCount,
		Parameters: map[string]interface{}{},
		Severity:   models.SeverityError,
	}}

	report := e.EvaluateAsset(context.Background(), "orders", frameAccessor(t, ordersTable()), defs)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusErrored, report.Results[0].Status)
	assert.Equal(t, models.GroupKeyAll, report.Results[0].GroupKey)
}

func TestEvaluateAssetSkippedCheck(t *testing.T) {
	e := newTestEngine(t)
	defs := []*models.CheckDefinition{{
		Name:       "amount_anomaly",
		Kind:       models.KindAnomalyDetection,
		Parameters: map[string]interface{}{"metric": "mean:amount"},
		Severity:   models.SeverityWarn,
	}}

	// No history yet: the anomaly check skips, which is a terminal success.
	report := e.EvaluateAsset(context.Background(), "orders", frameAccessor(t, ordersTable()), defs)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusSkipped, report.Results[0].Status)
	assert.True(t, report.Results[0].Passed)
	require.Len(t, report.Summaries, 1)
	assert.Equal(t, 1, report.Summaries[0].SkippedGroups)
	assert.True(t, report.Summaries[0].Passed)
}

func TestPushdownAndInMemoryAgree(t *testing.T) {
	table := ordersTable()
	defs := []*models.CheckDefinition{
		rowCountDef("volume", 1),
		{
			Name:       "mean_amount",
			Kind:       models.KindStaticThreshold,
			Parameters: map[string]interface{}{"metric": "mean:amount", "min_value": 0, "max_value": 100},
			GroupBy:    "region",
			Severity:   models.SeverityError,
		},
	}

	inMemory := newTestEngine(t).EvaluateAsset(context.Background(), "orders", frameAccessor(t, table), defs)
	pushdown := newTestEngine(t).EvaluateAsset(context.Background(), "orders",
		&queryableFrame{frameAccessor(t, table)}, defs)

	require.Len(t, pushdown.Results, len(inMemory.Results))
	for i := range inMemory.Results {
		assert.Equal(t, inMemory.Results[i].CheckName, pushdown.Results[i].CheckName)
		assert.Equal(t, inMemory.Results[i].GroupKey, pushdown.Results[i].GroupKey)
		assert.Equal(t, inMemory.Results[i].Passed, pushdown.Results[i].Passed)
		assert.InDelta(t, inMemory.Results[i].Observed, pushdown.Results[i].Observed, 0.0001)
	}
}

func TestPushdownFallsBackForRowLevelCheck(t *testing.T) {
	e := newTestEngine(t)
	defs := []*models.CheckDefinition{{
		Name:       "amounts_positive",
		Kind:       models.KindRangeCheck,
		Parameters: map[string]interface{}{"column": "amount", "min_value": 0},
		GroupBy:    "region",
		Severity:   models.SeverityError,
	}}

	report := e.EvaluateAsset(context.Background(), "orders",
		&queryableFrame{frameAccessor(t, ordersTable())}, defs)

	// Range is not aggregate-expressible, so even a queryable source runs
	// it against the materialized slice.
	require.Len(t, report.Results, 3)
	assert.Equal(t, models.StatusEvaluated, report.Results[0].Status)
	assert.False(t, report.Results[0].Passed)
	assert.True(t, report.Results[1].Passed)
}

func TestCheckTimeoutProducesErroredResult(t *testing.T) {
	e := New(&Config{CheckTimeout: time.Nanosecond}, nil, checks.NewRegistry(nil),
		history.NewMemoryStore(), dataset.NewResolver(nil), nil)

	report := e.EvaluateAsset(context.Background(), "orders",
		frameAccessor(t, ordersTable()), []*models.CheckDefinition{rowCountDef("volume", 1)})

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusErrored, report.Results[0].Status)
}
