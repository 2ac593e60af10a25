package checks

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// staticThresholdCheck compares a metric expression against min/max bounds.
type staticThresholdCheck struct {
	metric models.Metric
	min    *float64
	max    *float64
}

func newStaticThresholdCheck(params map[string]interface{}) (interfaces.Check, error) {
	metric, err := metricParam(params, "metric")
	if err != nil {
		return nil, err
	}
	min, err := optionalFloat(params, "min_value")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(params, "max_value")
	if err != nil {
		return nil, err
	}
	if min == nil && max == nil {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			"static threshold check requires min_value or max_value")
	}
	return &staticThresholdCheck{metric: metric, min: min, max: max}, nil
}

func (c *staticThresholdCheck) Kind() models.CheckKind     { return models.KindStaticThreshold }
func (c *staticThresholdCheck) AggregateExpressible() bool { return true }

func (c *staticThresholdCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	value, err := env.Target.Aggregate(ctx, c.metric)
	if err != nil {
		return nil, err
	}
	passed := true
	if c.min != nil && value < *c.min {
		passed = false
	}
	if c.max != nil && value > *c.max {
		passed = false
	}
	return outcome(passed, value,
		fmt.Sprintf("%s = %s, %s", c.metric.String(), formatFloat(value), boundsText(c.min, c.max))), nil
}

// percentDeltaCheck compares the current metric value against the mean of
// its history window: (current - mean(history)) / mean(history), in percent.
// Fewer than 2 history points skips the evaluation rather than failing it.
type percentDeltaCheck struct {
	metric   models.Metric
	maxDelta float64
	history  int
}

func newPercentDeltaCheck(params map[string]interface{}) (interfaces.Check, error) {
	metric, err := metricParam(params, "metric")
	if err != nil {
		return nil, err
	}
	maxDelta, err := requiredFloat(params, "max_delta")
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
	return &percentDeltaCheck{metric: metric, maxDelta: maxDelta, history: history}, nil
}

func (c *percentDeltaCheck) Kind() models.CheckKind     { return models.KindPercentDelta }
func (c *percentDeltaCheck) AggregateExpressible() bool { return true }

func (c *percentDeltaCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
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

	histMean := mean(models.HistoryValues(records))
	if histMean == 0 {
		return skipped("history mean is zero, percent delta undefined", current), nil
	}
	delta := (current - histMean) / histMean * 100

	out := outcome(math.Abs(delta) <= c.maxDelta, current,
		fmt.Sprintf("%s changed %.2f%% vs history mean %s (max %.2f%%)",
			c.metric.String(), delta, formatFloat(histMean), c.maxDelta))
	out.Metadata = map[string]interface{}{
		"percent_delta": delta,
		"history_mean":  histMean,
		"history_size":  len(records),
	}
	return out, nil
}

// fetchHistory reads the recent window for the evaluated (check, group) key.
// A missing store is an evaluation error for history-dependent checks.
func fetchHistory(ctx context.Context, env *interfaces.CheckEnv, n int) ([]models.HistoryRecord, error) {
	if env.History == nil {
		return nil, errors.NewHistoryError(errors.CodeHistoryBackend,
			"no history store configured for a history-dependent check")
	}
	records, err := env.History.Recent(ctx, env.CheckName, env.Target.GroupKey(), n)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeHistory, errors.CodeHistoryReadFailed,
			"cannot read check history")
	}
	return records, nil
}

// appendHistory records the current observation.
func appendHistory(ctx context.Context, env *interfaces.CheckEnv, value float64, sample []float64) {
	appendRecord(ctx, env, models.HistoryRecord{
		CheckName: env.CheckName,
		GroupKey:  env.Target.GroupKey(),
		Timestamp: time.Now().UTC(),
		Value:     value,
		Sample:    sample,
	})
}

// appendRecord writes one history record. Append failures are not fatal for
// the check outcome, they only surface in logs.
func appendRecord(ctx context.Context, env *interfaces.CheckEnv, record models.HistoryRecord) {
	if env.History == nil {
		return
	}
	if err := env.History.Append(ctx, record); err != nil {
		logrus.WithFields(logrus.Fields{
			"check": record.CheckName,
			"group": record.GroupKey,
			"error": err,
		}).Warn("Failed to append history record")
	}
}
