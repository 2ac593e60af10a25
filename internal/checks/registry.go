package checks

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// ExpressionFunc is a host-registered predicate for custom-expression checks:
// it computes a scalar over a materialized table.
type ExpressionFunc func(ctx context.Context, table *models.Table) (float64, error)

// Registry builds check implementations from definitions. The kind set is
// closed: dispatch happens via a switch over the CheckKind enum, while
// configuration loaders map external string identifiers onto the enum at the
// boundary. Hosts may additionally register named expression functions for
// custom-expression checks.
type Registry struct {
	logger      *logrus.Logger
	mu          sync.RWMutex
	expressions map[string]ExpressionFunc
}

// NewRegistry creates a registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		logger:      logger,
		expressions: make(map[string]ExpressionFunc),
	}
}

// RegisterExpression registers a named expression function.
func (r *Registry) RegisterExpression(name string, fn ExpressionFunc) error {
	if fn == nil {
		return errors.NewConfigurationError(errors.CodeInvalidParameter, "expression function cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expressions[name] = fn
	r.logger.WithField("expression", name).Debug("Expression registered")
	return nil
}

func (r *Registry) expression(name string) (ExpressionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.expressions[name]
	return fn, ok
}

// Build constructs the check implementation for a definition, validating its
// parameters. Configuration errors surface here, at load time.
func (r *Registry) Build(def *models.CheckDefinition) (interfaces.Check, error) {
	if def.Name == "" {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter, "check name is required")
	}
	params := def.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	switch def.Kind {
	case models.KindRowCount:
		return newRowCountCheck(params)
	case models.KindNullCheck:
		return newNullCheck(params)
	case models.KindTypeCheck:
		return newTypeCheck(params)
	case models.KindRangeCheck:
		return newRangeCheck(params)
	case models.KindPatternMatch:
		return newPatternMatchCheck(params)
	case models.KindAcceptedValues:
		return newAcceptedValuesCheck(params)
	case models.KindUniqueness:
		return newUniquenessCheck(params)
	case models.KindStaticThreshold:
		return newStaticThresholdCheck(params)
	case models.KindPercentDelta:
		return newPercentDeltaCheck(params)
	case models.KindAnomalyDetection:
		return newAnomalyCheck(params)
	case models.KindPredictedRange:
		return newPredictedRangeCheck(params)
	case models.KindDistributionChange:
		return newDistributionChangeCheck(params)
	case models.KindEntropy:
		return newEntropyCheck(params)
	case models.KindBenfordLaw:
		return newBenfordCheck(params)
	case models.KindCorrelation:
		return newCorrelationCheck(params)
	case models.KindCustomQuery:
		return newCustomQueryCheck(params)
	case models.KindCustomExpression:
		return newCustomExpressionCheck(params, r)
	case models.KindCrossTable:
		return newCrossTableCheck(params)
	default:
		return nil, errors.NewConfigurationError(errors.CodeInvalidCheckType,
			fmt.Sprintf("unknown check type %q", def.Kind))
	}
}

// Validate builds and discards the check, so definitions fail fast at load
// time.
func (r *Registry) Validate(def *models.CheckDefinition) error {
	_, err := r.Build(def)
	return err
}
