package checks

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

const (
	trendMovingAverage        = "moving_average"
	trendLinearRegression     = "linear_regression"
	trendExponentialSmoothing = "exponential_smoothing"
)

// predictedRangeCheck fits a simple trend model over the history window,
// produces a prediction interval at the configured confidence and flags the
// current value when it falls outside that interval.
type predictedRangeCheck struct {
	metric     models.Metric
	model      string
	history    int
	confidence float64
	alpha      float64
}

func newPredictedRangeCheck(params map[string]interface{}) (interfaces.Check, error) {
	metric, err := metricParam(params, "metric")
	if err != nil {
		return nil, err
	}
	model, err := enumParam(params, "model", trendMovingAverage,
		trendMovingAverage, trendLinearRegression, trendExponentialSmoothing)
	if err != nil {
		return nil, err
	}
	history, err := intOrDefault(params, "history", constants.DefaultHistoryWindow)
	if err != nil {
		return nil, err
	}
	if history < 2 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"history window must be at least 2")
	}
	confidence, err := floatOrDefault(params, "confidence", constants.DefaultConfidence)
	if err != nil {
		return nil, err
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"confidence must be in (0, 1)")
	}
	alpha, err := floatOrDefault(params, "smoothing_alpha", 0.3)
	if err != nil {
		return nil, err
	}
	if alpha <= 0 || alpha > 1 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidParameter,
			"smoothing_alpha must be in (0, 1]")
	}
	return &predictedRangeCheck{
		metric:     metric,
		model:      model,
		history:    history,
		confidence: confidence,
		alpha:      alpha,
	}, nil
}

func (c *predictedRangeCheck) Kind() models.CheckKind     { return models.KindPredictedRange }
func (c *predictedRangeCheck) AggregateExpressible() bool { return true }

func (c *predictedRangeCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
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

	// Recent returns newest first; the trend models want chronological order.
	values := models.HistoryValues(records)
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}

	predicted, residualStd := c.forecast(values)
	margin := zScoreFor(c.confidence) * residualStd
	lower := predicted - margin
	upper := predicted + margin

	out := outcome(current >= lower && current <= upper, current,
		fmt.Sprintf("observed %s vs predicted interval [%s, %s] (%s, confidence %.2f)",
			formatFloat(current), formatFloat(lower), formatFloat(upper), c.model, c.confidence))
	out.Metadata = map[string]interface{}{
		"model":        c.model,
		"predicted":    predicted,
		"lower_bound":  lower,
		"upper_bound":  upper,
		"history_size": len(values),
	}
	return out, nil
}

// forecast returns the one-step-ahead prediction and the standard deviation
// of the model's in-sample residuals.
func (c *predictedRangeCheck) forecast(values []float64) (float64, float64) {
	switch c.model {
	case trendLinearRegression:
		return forecastLinear(values)
	case trendExponentialSmoothing:
		return forecastExponential(values, c.alpha)
	default:
		return forecastMovingAverage(values)
	}
}

func forecastMovingAverage(values []float64) (float64, float64) {
	m := mean(values)
	return m, stdDev(values)
}

func forecastLinear(values []float64) (float64, float64) {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(xs, values, nil, false)
	predicted := intercept + slope*float64(len(values))

	residuals := make([]float64, len(values))
	for i, v := range values {
		residuals[i] = v - (intercept + slope*xs[i])
	}
	return predicted, stdDev(residuals)
}

func forecastExponential(values []float64, alpha float64) (float64, float64) {
	level := values[0]
	residuals := make([]float64, 0, len(values)-1)
	for _, v := range values[1:] {
		residuals = append(residuals, v-level)
		level = alpha*v + (1-alpha)*level
	}
	if len(residuals) < 2 {
		return level, math.Abs(values[len(values)-1] - level)
	}
	return level, stdDev(residuals)
}
