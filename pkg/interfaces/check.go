package interfaces

import (
	"context"

	"github.com/inferloop/dqcore/pkg/models"
)

// Target is one dataset slice a check evaluates against: the whole dataset
// for ungrouped checks, or a single group's partition for grouped checks.
//
// Both execution paths implement it: the pushdown target answers Aggregate
// via the accessor's query capability and has no table; the in-memory target
// answers both Aggregate and Column from a materialized table. Checks that
// call Column are row-level and are only ever dispatched to in-memory
// targets by the planner.
type Target interface {
	// GroupKey identifies the slice (GroupKeyAll for ungrouped).
	GroupKey() string

	// Aggregate computes one aggregate metric over the slice.
	Aggregate(ctx context.Context, metric models.Metric) (float64, error)

	// Column returns the raw values of a column within the slice. Pushdown
	// targets return an unsupported-check error.
	Column(ctx context.Context, name string) ([]interface{}, error)

	// Table returns the materialized slice, or nil on the pushdown path.
	Table() *models.Table
}

// CheckEnv carries the collaborators a check evaluation may use besides the
// target slice itself.
type CheckEnv struct {
	Target Target

	// History is the append-only metric store trend-relative checks read
	// and write. Nil when no store is configured; history-dependent checks
	// then report an evaluation error.
	History HistoryStore

	// Accessor is the asset's primary accessor. Custom-query checks use
	// its Queryable capability directly.
	Accessor Accessor

	// Resolver resolves secondary dataset handles for cross-table checks.
	Resolver AccessorResolver

	// CheckName and the group key identify history records.
	CheckName string
}

// Check is one configured validation rule, constructed from a
// CheckDefinition with its parameters already validated.
type Check interface {
	// Kind returns the check's kind.
	Kind() models.CheckKind

	// AggregateExpressible reports whether the check can be computed from
	// Aggregate calls alone and is therefore eligible for pushdown.
	AggregateExpressible() bool

	// Evaluate runs the check against a single slice and returns its
	// outcome. A skipped outcome is terminal success, never a failure.
	Evaluate(ctx context.Context, env *CheckEnv) (*models.CheckOutcome, error)
}
