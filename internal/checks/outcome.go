package checks

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

func pass(observed interface{}, message string) *models.CheckOutcome {
	return &models.CheckOutcome{Passed: true, Observed: observed, Message: message}
}

func fail(observed interface{}, message string) *models.CheckOutcome {
	return &models.CheckOutcome{Passed: false, Observed: observed, Message: message}
}

// skipped outcomes are terminal success: insufficient data is never reported
// as a quality failure.
func skipped(reason string, observed interface{}) *models.CheckOutcome {
	return &models.CheckOutcome{
		Passed:     true,
		Skipped:    true,
		SkipReason: reason,
		Observed:   observed,
		Metadata:   map[string]interface{}{"skipped": true},
	}
}

func outcome(passed bool, observed interface{}, message string) *models.CheckOutcome {
	if passed {
		return pass(observed, message)
	}
	return fail(observed, message)
}

// numericColumn pulls a column from the target and converts it to floats,
// dropping nulls and non-numeric cells. Returns the values and how many
// cells were dropped.
func numericColumn(ctx context.Context, target interfaces.Target, column string) ([]float64, int, error) {
	cells, err := target.Column(ctx, column)
	if err != nil {
		return nil, 0, err
	}
	values := make([]float64, 0, len(cells))
	dropped := 0
	for _, c := range cells {
		f, ok := models.CellFloat(c)
		if !ok {
			dropped++
			continue
		}
		values = append(values, f)
	}
	return values, dropped, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev returns the sample standard deviation.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// quantile returns the p-quantile of values (0 <= p <= 1).
func quantile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// zScoreFor maps a confidence level to the normal-quantile margin used for
// prediction intervals.
func zScoreFor(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.576
	case confidence >= 0.95:
		return 1.96
	case confidence >= 0.90:
		return 1.645
	default:
		return 1.96
	}
}
