package checks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

const (
	distMethodAuto      = "auto"
	distMethodKS        = "ks"
	distMethodChiSquare = "chi_square"

	// Bounds the reference sample persisted to the history store.
	defaultMaxReferenceSample = 5000
)

// distributionChangeCheck compares the current column distribution against
// the most recent reference sample recorded in the history store, using a
// two-sample Kolmogorov-Smirnov test for continuous columns and a chi-square
// test for categorical ones. The check fails when the test's p-value falls
// below significance_level. With no recorded reference yet, the evaluation
// is skipped and the current sample becomes the reference for the next run.
type distributionChangeCheck struct {
	column       string
	method       string
	significance float64
	maxSample    int
}

func newDistributionChangeCheck(params map[string]interface{}) (interfaces.Check, error) {
	column, err := requiredString(params, "column")
	if err != nil {
		return nil, err
	}
	method, err := enumParam(params, "method", distMethodAuto, distMethodAuto, distMethodKS, distMethodChiSquare)
	if err != nil {
		return nil, err
	}
	significance, err := floatOrDefault(params, "significance_level", constants.DefaultSignificanceLevel)
	if err != nil {
		return nil, err
	}
	maxSample, err := intOrDefault(params, "max_sample", defaultMaxReferenceSample)
	if err != nil {
		return nil, err
	}
	return &distributionChangeCheck{
		column:       column,
		method:       method,
		significance: significance,
		maxSample:    maxSample,
	}, nil
}

func (c *distributionChangeCheck) Kind() models.CheckKind     { return models.KindDistributionChange }
func (c *distributionChangeCheck) AggregateExpressible() bool { return false }

func (c *distributionChangeCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	cells, err := env.Target.Column(ctx, c.column)
	if err != nil {
		return nil, err
	}

	numeric := make([]float64, 0, len(cells))
	categorical := make(map[string]float64)
	nonNull := 0
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		nonNull++
		if f, ok := models.CellFloat(cell); ok {
			numeric = append(numeric, f)
		}
		categorical[models.CellString(cell)]++
	}
	if nonNull == 0 {
		return skipped("no non-null values for distribution comparison", 0.0), nil
	}

	continuous := c.method == distMethodKS ||
		(c.method == distMethodAuto && len(numeric) == nonNull)

	records, err := fetchHistory(ctx, env, 1)
	if err != nil {
		return nil, err
	}

	// Persist the current distribution as the next run's reference.
	record := models.HistoryRecord{
		CheckName: env.CheckName,
		GroupKey:  env.Target.GroupKey(),
		Timestamp: time.Now().UTC(),
		Value:     float64(nonNull),
	}
	if continuous {
		sample := numeric
		if len(sample) > c.maxSample {
			sample = sample[:c.maxSample]
		}
		record.Sample = sample
	} else {
		record.Frequencies = categorical
	}
	defer appendRecord(ctx, env, record)

	if len(records) == 0 {
		return skipped("no reference distribution recorded yet", float64(nonNull)), nil
	}
	reference := records[0]

	var pValue, statistic float64
	var testName string
	if continuous {
		if len(reference.Sample) < 5 || len(numeric) < 5 {
			return skipped("reference or current sample below 5 observations", float64(nonNull)), nil
		}
		statistic, pValue = twoSampleKS(numeric, reference.Sample)
		testName = "kolmogorov_smirnov"
	} else {
		if len(reference.Frequencies) == 0 {
			return skipped("reference distribution is not categorical", float64(nonNull)), nil
		}
		statistic, pValue = chiSquareTest(categorical, reference.Frequencies)
		testName = "chi_square"
	}

	out := outcome(pValue >= c.significance, pValue,
		fmt.Sprintf("%s p-value %.4f vs significance level %.4f (statistic %.4f)",
			testName, pValue, c.significance, statistic))
	out.Metadata = map[string]interface{}{
		"test":           testName,
		"statistic":      statistic,
		"sample_size":    nonNull,
		"reference_size": len(reference.Sample) + len(reference.Frequencies),
	}
	return out, nil
}

// twoSampleKS computes the two-sample Kolmogorov-Smirnov statistic (maximum
// distance between the empirical CDFs) and its asymptotic p-value.
func twoSampleKS(sample1, sample2 []float64) (statistic, pValue float64) {
	n1, n2 := len(sample1), len(sample2)
	sorted1 := make([]float64, n1)
	sorted2 := make([]float64, n2)
	copy(sorted1, sample1)
	copy(sorted2, sample2)
	sort.Float64s(sorted1)
	sort.Float64s(sorted2)

	var maxDiff float64
	i1, i2 := 0, 0
	for i1 < n1 || i2 < n2 {
		var x float64
		if i1 >= n1 {
			x = sorted2[i2]
		} else if i2 >= n2 {
			x = sorted1[i1]
		} else {
			x = math.Min(sorted1[i1], sorted2[i2])
		}
		for i1 < n1 && sorted1[i1] <= x {
			i1++
		}
		for i2 < n2 && sorted2[i2] <= x {
			i2++
		}
		diff := math.Abs(float64(i1)/float64(n1) - float64(i2)/float64(n2))
		if diff > maxDiff {
			maxDiff = diff
		}
	}

	ne := float64(n1*n2) / float64(n1+n2)
	lambda := maxDiff * math.Sqrt(ne)
	p := 2 * math.Exp(-2*lambda*lambda)
	return maxDiff, math.Max(0, math.Min(1, p))
}

// chiSquareTest compares two category frequency tables. The reference table
// is scaled to the current sample size to form expected counts; the p-value
// comes from the chi-squared survival function with k-1 degrees of freedom.
func chiSquareTest(current, reference map[string]float64) (statistic, pValue float64) {
	currentTotal, referenceTotal := 0.0, 0.0
	for _, v := range current {
		currentTotal += v
	}
	for _, v := range reference {
		referenceTotal += v
	}
	if currentTotal == 0 || referenceTotal == 0 {
		return 0, 1
	}

	categories := make(map[string]bool)
	for k := range current {
		categories[k] = true
	}
	for k := range reference {
		categories[k] = true
	}

	chi2 := 0.0
	df := -1
	for cat := range categories {
		expected := reference[cat] / referenceTotal * currentTotal
		observed := current[cat]
		if expected == 0 {
			// Unseen category: smooth with half an observation to keep the
			// statistic finite.
			expected = 0.5
		}
		d := observed - expected
		chi2 += d * d / expected
		df++
	}
	if df < 1 {
		return chi2, 1
	}

	dist := distuv.ChiSquared{K: float64(df)}
	p := 1 - dist.CDF(chi2)
	return chi2, math.Max(0, math.Min(1, p))
}
