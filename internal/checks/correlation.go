package checks

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

const (
	corrPearson  = "pearson"
	corrSpearman = "spearman"
	corrKendall  = "kendall"
)

// correlationCheck computes the correlation between two numeric columns and
// flags it outside [min_correlation, max_correlation]. Row-level: the raw
// value pairs are needed.
type correlationCheck struct {
	columnX string
	columnY string
	method  string
	min     *float64
	max     *float64
}

func newCorrelationCheck(params map[string]interface{}) (interfaces.Check, error) {
	columnX, err := requiredString(params, "column_x")
	if err != nil {
		return nil, err
	}
	columnY, err := requiredString(params, "column_y")
	if err != nil {
		return nil, err
	}
	method, err := enumParam(params, "method", corrPearson, corrPearson, corrSpearman, corrKendall)
	if err != nil {
		return nil, err
	}
	min, err := optionalFloat(params, "min_correlation")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(params, "max_correlation")
	if err != nil {
		return nil, err
	}
	if min == nil && max == nil {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			"correlation check requires min_correlation or max_correlation")
	}
	return &correlationCheck{columnX: columnX, columnY: columnY, method: method, min: min, max: max}, nil
}

func (c *correlationCheck) Kind() models.CheckKind     { return models.KindCorrelation }
func (c *correlationCheck) AggregateExpressible() bool { return false }

func (c *correlationCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	cellsX, err := env.Target.Column(ctx, c.columnX)
	if err != nil {
		return nil, err
	}
	cellsY, err := env.Target.Column(ctx, c.columnY)
	if err != nil {
		return nil, err
	}

	// Pairwise deletion: keep only rows where both cells are numeric.
	var xs, ys []float64
	for i := range cellsX {
		fx, okX := models.CellFloat(cellsX[i])
		fy, okY := models.CellFloat(cellsY[i])
		if okX && okY {
			xs = append(xs, fx)
			ys = append(ys, fy)
		}
	}
	if len(xs) < 3 {
		return skipped(fmt.Sprintf("%d numeric pairs, need at least 3", len(xs)), 0.0), nil
	}

	var corr float64
	switch c.method {
	case corrSpearman:
		corr = stat.Correlation(ranks(xs), ranks(ys), nil)
	case corrKendall:
		corr = stat.Kendall(xs, ys, nil)
	default:
		corr = stat.Correlation(xs, ys, nil)
	}

	passed := true
	if c.min != nil && corr < *c.min {
		passed = false
	}
	if c.max != nil && corr > *c.max {
		passed = false
	}
	out := outcome(passed, corr,
		fmt.Sprintf("%s correlation between %q and %q is %.4f, %s",
			c.method, c.columnX, c.columnY, corr, boundsText(c.min, c.max)))
	out.Metadata = map[string]interface{}{"method": c.method, "pairs": len(xs)}
	return out, nil
}

// ranks converts values to fractional ranks, averaging ties, for Spearman
// correlation.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))
	i := 0
	for i < len(idx) {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = rank
		}
		i = j + 1
	}
	return out
}
