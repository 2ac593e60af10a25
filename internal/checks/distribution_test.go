package checks

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/pkg/models"
)

func waveTable(column string, n int, offset float64) *models.Table {
	table := models.NewTable(column)
	for i := 0; i < n; i++ {
		table.AppendRow(offset + 10*math.Sin(float64(i)*0.7) + float64(i%7))
	}
	return table
}

func TestDistributionChangeCheckFirstRunSkipsAndRecordsReference(t *testing.T) {
	check, err := newDistributionChangeCheck(map[string]interface{}{"column": "amount"})
	require.NoError(t, err)

	env := newTestEnv(waveTable("amount", 200, 0), "amount_dist")
	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.True(t, out.Passed)

	records, err := env.History.Recent(context.Background(), "amount_dist", models.GroupKeyAll, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Sample, 200)
}

func TestDistributionChangeCheckStableDistributionPasses(t *testing.T) {
	check, err := newDistributionChangeCheck(map[string]interface{}{"column": "amount"})
	require.NoError(t, err)

	env := newTestEnv(waveTable("amount", 200, 0), "amount_dist")
	_, err = check.Evaluate(context.Background(), env)
	require.NoError(t, err)

	// Same generator, same shape: the KS test should not reject.
	env.Target = &testTarget{table: waveTable("amount", 200, 0), key: models.GroupKeyAll}
	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.False(t, out.Skipped)
	assert.Equal(t, "kolmogorov_smirnov", out.Metadata["test"])
}

func TestDistributionChangeCheckShiftedDistributionFails(t *testing.T) {
	check, err := newDistributionChangeCheck(map[string]interface{}{"column": "amount"})
	require.NoError(t, err)

	env := newTestEnv(waveTable("amount", 200, 0), "amount_dist")
	_, err = check.Evaluate(context.Background(), env)
	require.NoError(t, err)

	env.Target = &testTarget{table: waveTable("amount", 200, 50), key: models.GroupKeyAll}
	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, out.Passed)
}

func TestDistributionChangeCheckCategorical(t *testing.T) {
	build := func(active, churned, pending int) *models.Table {
		table := models.NewTable("status")
		for i := 0; i < active; i++ {
			table.AppendRow("active")
		}
		for i := 0; i < churned; i++ {
			table.AppendRow("churned")
		}
		for i := 0; i < pending; i++ {
			table.AppendRow("pending")
		}
		return table
	}

	check, err := newDistributionChangeCheck(map[string]interface{}{"column": "status"})
	require.NoError(t, err)

	env := newTestEnv(build(700, 200, 100), "status_dist")
	_, err = check.Evaluate(context.Background(), env)
	require.NoError(t, err)

	// Near-identical mix passes.
	env.Target = &testTarget{table: build(690, 205, 105), key: models.GroupKeyAll}
	out, err := check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, "chi_square", out.Metadata["test"])

	// The reference has rolled forward to the 690/205/105 mix; an inverted
	// mix is a clear rejection.
	env.Target = &testTarget{table: build(100, 200, 700), key: models.GroupKeyAll}
	out, err = check.Evaluate(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, out.Passed)
}

func TestDistributionChangeCheckSkipsEmptyColumn(t *testing.T) {
	check, err := newDistributionChangeCheck(map[string]interface{}{"column": "amount"})
	require.NoError(t, err)

	out, err := check.Evaluate(context.Background(), newTestEnv(numbersTable("amount", nil, nil), "amount_dist"))
	require.NoError(t, err)
	assert.True(t, out.Skipped)
}

func TestTwoSampleKSIdenticalSamples(t *testing.T) {
	sample := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	statistic, pValue := twoSampleKS(sample, sample)
	assert.Equal(t, 0.0, statistic)
	assert.InDelta(t, 1.0, pValue, 0.0001)
}

func TestTwoSampleKSDisjointSamples(t *testing.T) {
	a := make([]float64, 50)
	b := make([]float64, 50)
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(i + 1000)
	}
	statistic, pValue := twoSampleKS(a, b)
	assert.Equal(t, 1.0, statistic)
	assert.Less(t, pValue, 0.001)
}
