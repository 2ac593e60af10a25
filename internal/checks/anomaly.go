package checks

import (
	"context"
	"fmt"
	"math"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

const (
	anomalyMethodZScore = "z_score"
	anomalyMethodIQR    = "iqr"
)

// anomalyCheck flags the current metric value as anomalous relative to its
// rolling history window.
//
// z_score: |current - mean(history)| / stddev(history) > threshold.
// iqr: current outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR] of history.
//
// Both require at least 2 history points; fewer skips the evaluation.
type anomalyCheck struct {
	metric    models.Metric
	method    string
	threshold float64
	history   int
}

func newAnomalyCheck(params map[string]interface{}) (interfaces.Check, error) {
	metric, err := metricParam(params, "metric")
	if err != nil {
		return nil, err
	}
	method, err := enumParam(params, "method", anomalyMethodZScore, anomalyMethodZScore, anomalyMethodIQR)
	if err != nil {
		return nil, err
	}
	threshold, err := floatOrDefault(params, "threshold", constants.DefaultAnomalyThreshold)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"anomaly threshold must be positive")
	}
	history, err := intOrDefault(params, "history", constants.DefaultHistoryWindow)
	if err != nil {
		return nil, err
	}
	if history < 2 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"history window must be at least 2")
	}
	return &anomalyCheck{metric: metric, method: method, threshold: threshold, history: history}, nil
}

func (c *anomalyCheck) Kind() models.CheckKind     { return models.KindAnomalyDetection }
func (c *anomalyCheck) AggregateExpressible() bool { return true }

func (c *anomalyCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	current, err := env.Target.Aggregate(ctx, c.metric)
	if err != nil {
		return nil, err
	}

	records, err := fetchHistory(ctx, env, c.history)
	if err != nil {
		return nil, err
	}
	defer appendHistory(ctx, env, current, nil)

	if len(records) < 2 {
		return skipped(fmt.Sprintf("%d history points, need at least 2", len(records)), current), nil
	}
	values := models.HistoryValues(records)

	switch c.method {
	case anomalyMethodZScore:
		return c.evaluateZScore(current, values), nil
	case anomalyMethodIQR:
		return c.evaluateIQR(current, values), nil
	default:
		return nil, errors.NewInternalError(fmt.Sprintf("unknown anomaly method %q", c.method))
	}
}

func (c *anomalyCheck) evaluateZScore(current float64, history []float64) *models.CheckOutcome {
	m := mean(history)
	sd := stdDev(history)
	if sd == 0 {
		// Constant history: any deviation is an anomaly.
		out := outcome(current == m, current,
			fmt.Sprintf("history is constant at %s, observed %s", formatFloat(m), formatFloat(current)))
		out.Metadata = map[string]interface{}{"history_mean": m, "history_stddev": 0.0}
		return out
	}
	z := (current - m) / sd
	out := outcome(math.Abs(z) <= c.threshold, current,
		fmt.Sprintf("z-score %.3f vs threshold %.3f (history mean %s, stddev %s)",
			z, c.threshold, formatFloat(m), formatFloat(sd)))
	out.Metadata = map[string]interface{}{
		"z_score":        z,
		"history_mean":   m,
		"history_stddev": sd,
		"history_size":   len(history),
	}
	return out
}

func (c *anomalyCheck) evaluateIQR(current float64, history []float64) *models.CheckOutcome {
	q1 := quantile(history, 0.25)
	q3 := quantile(history, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr
	out := outcome(current >= lower && current <= upper, current,
		fmt.Sprintf("observed %s vs IQR bounds [%s, %s]",
			formatFloat(current), formatFloat(lower), formatFloat(upper)))
	out.Metadata = map[string]interface{}{
		"q1":           q1,
		"q3":           q3,
		"iqr":          iqr,
		"lower_bound":  lower,
		"upper_bound":  upper,
		"history_size": len(history),
	}
	return out
}
