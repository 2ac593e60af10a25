package engine

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/internal/observability"
	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// Config configures the check engine.
type Config struct {
	// CheckTimeout bounds every single check evaluation, accessor calls
	// included. A timed-out check is reported as an evaluation error,
	// never as a silent pass.
	CheckTimeout time.Duration `json:"check_timeout"`
}

// Engine evaluates configured checks against dataset accessors. It holds no
// per-asset state: the same instance is safe to invoke concurrently for
// different assets as long as their accessors do not share mutable state.
// The history store is the only shared mutable resource and provides its own
// per-key atomicity.
type Engine struct {
	config   *Config
	logger   *logrus.Logger
	registry *checks.Registry
	history  interfaces.HistoryStore
	resolver interfaces.AccessorResolver
	metrics  *observability.Metrics
}

// New creates an engine. History, resolver and metrics may be nil; checks
// that need them report evaluation errors instead.
func New(config *Config, logger *logrus.Logger, registry *checks.Registry, history interfaces.HistoryStore, resolver interfaces.AccessorResolver, metrics *observability.Metrics) *Engine {
	if config == nil {
		config = &Config{}
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = constants.DefaultCheckTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = checks.NewRegistry(logger)
	}
	return &Engine{
		config:   config,
		logger:   logger,
		registry: registry,
		history:  history,
		resolver: resolver,
		metrics:  metrics,
	}
}

// EvaluateAsset runs every configured check for one asset sequentially, in
// declaration order, and returns the report. Cancelling the context returns
// a partial report carrying every result completed so far.
func (e *Engine) EvaluateAsset(ctx context.Context, assetID string, accessor interfaces.Accessor, defs []*models.CheckDefinition) *models.AssetCheckReport {
	rep := newReporter(assetID)
	log := e.logger.WithField("asset", assetID)
	log.WithField("checks", len(defs)).Info("Starting asset evaluation")

	cancelled := false
	for _, def := range defs {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		results := e.evaluateCheck(ctx, accessor, def, rep)
		summary := rep.summarize(def, results)
		log.WithFields(logrus.Fields{
			"check":         def.Name,
			"groups":        summary.TotalGroups,
			"failed_groups": summary.FailedGroups,
			"passed":        summary.Passed,
		}).Debug("Check completed")
	}

	report := rep.finish(cancelled)
	e.metrics.ObserveReport(report)
	log.WithFields(logrus.Fields{
		"results":          len(report.Results),
		"blocking_failure": report.HasBlockingFailure,
		"cancelled":        report.Cancelled,
	}).Info("Asset evaluation completed")
	return report
}

// evaluateCheck runs one configured check across its groups, committing each
// result as it completes.
func (e *Engine) evaluateCheck(ctx context.Context, accessor interfaces.Accessor, def *models.CheckDefinition, rep *reporter) []*models.CheckResult {
	started := time.Now()

	check, err := e.registry.Build(def)
	if err != nil {
		// Definitions are validated at load time, so this is defensive
		// only for hosts that bypass the loader.
		result := e.erroredResult(def, models.GroupKeyAll, err, time.Since(started))
		rep.add(result)
		return []*models.CheckResult{result}
	}

	checkCtx, cancel := context.WithTimeout(ctx, e.config.CheckTimeout)
	defer cancel()

	pl, err := planCheck(checkCtx, accessor, def, check)
	if err != nil {
		result := e.erroredResult(def, models.GroupKeyAll, err, time.Since(started))
		rep.add(result)
		return []*models.CheckResult{result}
	}

	var results []*models.CheckResult
	for _, target := range pl.targets {
		result := e.evaluateTarget(checkCtx, accessor, def, check, pl, target)
		rep.add(result)
		results = append(results, result)
		e.metrics.ObserveCheck(def.Kind, result.Status, result.Duration)
	}
	return results
}

func (e *Engine) evaluateTarget(ctx context.Context, accessor interfaces.Accessor, def *models.CheckDefinition, check interfaces.Check, pl *plan, target interfaces.Target) *models.CheckResult {
	started := time.Now()

	env := &interfaces.CheckEnv{
		Target:    target,
		History:   e.history,
		Accessor:  accessor,
		Resolver:  e.resolver,
		CheckName: def.Name,
	}
	out, err := check.Evaluate(ctx, env)

	// A pushdown evaluation that turns out to need row-level access falls
	// back to the materialized path for this group.
	if err != nil && errors.IsUnsupportedCheckError(err) && pl.path == pathPushdown {
		if fallback, ferr := replanInMemory(ctx, accessor, def); ferr == nil {
			for _, t := range fallback.targets {
				if t.GroupKey() == target.GroupKey() {
					env.Target = t
					out, err = check.Evaluate(ctx, env)
					break
				}
			}
		}
	}

	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"check": def.Name,
			"group": target.GroupKey(),
			"error": err,
		}).Warn("Check evaluation errored")
		return e.erroredResult(def, target.GroupKey(), err, time.Since(started))
	}

	result := &models.CheckResult{
		CheckName: def.Name,
		GroupKey:  target.GroupKey(),
		Kind:      def.Kind,
		Status:    models.StatusEvaluated,
		Passed:    out.Passed,
		Severity:  def.Severity,
		Blocking:  def.Blocking,
		Observed:  out.Observed,
		Message:   out.Message,
		Metadata:  out.Metadata,
		Duration:  time.Since(started),
	}
	if out.Skipped {
		result.Status = models.StatusSkipped
		result.Message = out.SkipReason
	}
	return result
}

// erroredResult converts an evaluation error into a visibly distinct report
// entry. Errored entries are never counted as quality failures and never
// contribute to the blocking signal.
func (e *Engine) erroredResult(def *models.CheckDefinition, groupKey string, err error, duration time.Duration) *models.CheckResult {
	if goerrors.Is(err, context.DeadlineExceeded) {
		err = errors.NewAccessorError(errors.CodeEvaluationTimeout, "check evaluation timed out")
	}
	return &models.CheckResult{
		CheckName: def.Name,
		GroupKey:  groupKey,
		Kind:      def.Kind,
		Status:    models.StatusErrored,
		Passed:    false,
		Severity:  def.Severity,
		Blocking:  def.Blocking,
		Message:   err.Error(),
		Metadata:  map[string]interface{}{"error_type": string(errors.TypeOf(err))},
		Duration:  duration,
	}
}
