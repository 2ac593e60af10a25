package checks

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// benfordCheck compares the empirical digit distribution at a configured
// position against the theoretical Benford distribution.
//
// The goodness-of-fit statistic is the mean absolute deviation between the
// empirical and theoretical digit probabilities; it is 0 for an exact
// Benford sample and grows toward uniform-digit data. Groups below
// min_samples are skipped, not failed.
type benfordCheck struct {
	column     string
	digit      int
	threshold  float64
	minSamples int
}

func newBenfordCheck(params map[string]interface{}) (interfaces.Check, error) {
	column, err := requiredString(params, "column")
	if err != nil {
		return nil, err
	}
	digit, err := intOrDefault(params, "digit", 1)
	if err != nil {
		return nil, err
	}
	if digit < 1 || digit > 4 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"digit position must be between 1 and 4")
	}
	threshold, err := floatOrDefault(params, "threshold", constants.DefaultBenfordThreshold)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"threshold must be positive")
	}
	minSamples, err := intOrDefault(params, "min_samples", constants.DefaultBenfordMinSamples)
	if err != nil {
		return nil, err
	}
	return &benfordCheck{column: column, digit: digit, threshold: threshold, minSamples: minSamples}, nil
}

func (c *benfordCheck) Kind() models.CheckKind     { return models.KindBenfordLaw }
func (c *benfordCheck) AggregateExpressible() bool { return false }

func (c *benfordCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	values, _, err := numericColumn(ctx, env.Target, c.column)
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int)
	total := 0
	for _, v := range values {
		d, ok := digitAt(v, c.digit)
		if !ok {
			continue
		}
		counts[d]++
		total++
	}
	if total < c.minSamples {
		return skipped(fmt.Sprintf("%d usable values, need at least %d", total, c.minSamples), float64(total)), nil
	}

	expected := benfordDistribution(c.digit)
	distance := 0.0
	empirical := make(map[string]float64, len(expected))
	for d, p := range expected {
		observed := float64(counts[d]) / float64(total)
		empirical[strconv.Itoa(d)] = observed
		distance += math.Abs(observed - p)
	}
	distance /= float64(len(expected))

	out := outcome(distance <= c.threshold, distance,
		fmt.Sprintf("Benford deviation %.4f at digit position %d vs threshold %.4f (n=%d)",
			distance, c.digit, c.threshold, total))
	out.Metadata = map[string]interface{}{
		"digit_position":         c.digit,
		"sample_size":            total,
		"empirical_distribution": empirical,
	}
	return out, nil
}

// digitAt extracts the digit at a 1-based position of the absolute value's
// significand. Zero has no leading digit and is excluded.
func digitAt(v float64, position int) (int, bool) {
	v = math.Abs(v)
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	s := strconv.FormatFloat(v, 'e', 17, 64)
	mantissa := strings.SplitN(s, "e", 2)[0]
	mantissa = strings.ReplaceAll(mantissa, ".", "")
	if position > len(mantissa) {
		return 0, false
	}
	d := int(mantissa[position-1] - '0')
	if position == 1 && d == 0 {
		return 0, false
	}
	return d, true
}

// benfordDistribution returns the theoretical digit probabilities at a
// 1-based position. Position 1 covers digits 1-9 with P(d) = log10(1+1/d);
// later positions cover digits 0-9, summing log10(1+1/(10j+d)) over the
// admissible prefixes j.
func benfordDistribution(position int) map[int]float64 {
	dist := make(map[int]float64)
	if position == 1 {
		for d := 1; d <= 9; d++ {
			dist[d] = math.Log10(1 + 1/float64(d))
		}
		return dist
	}
	lo := intPow(10, position-2)
	hi := intPow(10, position-1)
	for d := 0; d <= 9; d++ {
		p := 0.0
		for j := lo; j < hi; j++ {
			p += math.Log10(1 + 1/float64(10*j+d))
		}
		dist[d] = p
	}
	return dist
}

func intPow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
