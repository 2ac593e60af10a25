package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/pkg/models"
)

func pairsTable(xs, ys []interface{}) *models.Table {
	table := models.NewTable("x", "y")
	for i := range xs {
		table.AppendRow(xs[i], ys[i])
	}
	return table
}

func TestCorrelationCheckPearsonPerfect(t *testing.T) {
	table := pairsTable(
		[]interface{}{1.0, 2.0, 3.0, 4.0, 5.0},
		[]interface{}{2.0, 4.0, 6.0, 8.0, 10.0},
	)

	check, err := newCorrelationCheck(map[string]interface{}{
		"column_x":        "x",
		"column_y":        "y",
		"min_correlation": 0.99,
	})
	require.NoError(t, err)

	out, err := check.Evaluate(context.Background(), newTestEnv(table, "xy_corr"))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.InDelta(t, 1.0, out.Observed, 0.0001)
	assert.Equal(t, 5, out.Metadata["pairs"])
}

func TestCorrelationCheckSpearmanMonotonic(t *testing.T) {
	// Nonlinear but strictly monotonic: Spearman is exactly 1.
	table := pairsTable(
		[]interface{}{1.0, 2.0, 3.0, 4.0, 5.0},
		[]interface{}{1.0, 8.0, 27.0, 64.0, 125.0},
	)

	check, err := newCorrelationCheck(map[string]interface{}{
		"column_x":        "x",
		"column_y":        "y",
		"method":          "spearman",
		"min_correlation": 0.999,
	})
	require.NoError(t, err)

	out, err := check.Evaluate(context.Background(), newTestEnv(table, "xy_corr"))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.InDelta(t, 1.0, out.Observed, 0.0001)
}

func TestCorrelationCheckAboveMaximumFails(t *testing.T) {
	table := pairsTable(
		[]interface{}{1.0, 2.0, 3.0, 4.0, 5.0},
		[]interface{}{2.0, 4.0, 6.0, 8.0, 10.0},
	)

	check, err := newCorrelationCheck(map[string]interface{}{
		"column_x":        "x",
		"column_y":        "y",
		"max_correlation": 0.5,
	})
	require.NoError(t, err)

	out, err := check.Evaluate(context.Background(), newTestEnv(table, "xy_corr"))
	require.NoError(t, err)
	assert.False(t, out.Passed)
}

func TestCorrelationCheckPairwiseDeletion(t *testing.T) {
	table := pairsTable(
		[]interface{}{1.0, nil, 3.0, 4.0, "n/a"},
		[]interface{}{2.0, 4.0, nil, 8.0, 10.0},
	)

	check, err := newCorrelationCheck(map[string]interface{}{
		"column_x":        "x",
		"column_y":        "y",
		"min_correlation": 0.9,
	})
	require.NoError(t, err)

	out, err := check.Evaluate(context.Background(), newTestEnv(table, "xy_corr"))
	require.NoError(t, err)
	assert.True(t, out.Skipped)
}

func TestCorrelationCheckRequiresBounds(t *testing.T) {
	_, err := newCorrelationCheck(map[string]interface{}{
		"column_x": "x",
		"column_y": "y",
	})
	assert.Error(t, err)
}

func TestRanksAverageTies(t *testing.T) {
	assert.Equal(t, []float64{1.5, 1.5, 3, 4}, ranks([]float64{5, 5, 7, 9}))
}
