package engine

import (
	"context"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// executionPath tags the planner's decision for one check.
type executionPath string

const (
	pathPushdown executionPath = "pushdown"
	pathInMemory executionPath = "in_memory"
)

// plan is the planner's output: the chosen path and one target per group,
// in ascending group-key order.
type plan struct {
	path    executionPath
	targets []interfaces.Target
}

// planCheck decides pushdown vs in-memory execution for one check and
// produces the per-group targets.
//
// The dual-path policy is the central performance design: aggregate-
// expressible checks on a queryable source push down as queries and scale to
// arbitrarily large tables, while row-level checks run against a
// materialized slice bounded by the handle's sample configuration.
func planCheck(ctx context.Context, accessor interfaces.Accessor, def *models.CheckDefinition, check interfaces.Check) (*plan, error) {
	if accessor.SourceKind() == models.SourceQueryable && check.AggregateExpressible() {
		targets, err := pushdownTargets(ctx, accessor, def.GroupBy)
		if err != nil {
			return nil, err
		}
		return &plan{path: pathPushdown, targets: targets}, nil
	}
	targets, err := inMemoryTargets(ctx, accessor, def.GroupBy)
	if err != nil {
		return nil, err
	}
	return &plan{path: pathInMemory, targets: targets}, nil
}

// replanInMemory rebuilds the plan on the materialized path. Used as the
// fallback when a pushdown evaluation turns out to need row-level access.
func replanInMemory(ctx context.Context, accessor interfaces.Accessor, def *models.CheckDefinition) (*plan, error) {
	targets, err := inMemoryTargets(ctx, accessor, def.GroupBy)
	if err != nil {
		return nil, err
	}
	return &plan{path: pathInMemory, targets: targets}, nil
}

func pushdownTargets(ctx context.Context, accessor interfaces.Accessor, groupBy string) ([]interfaces.Target, error) {
	if groupBy == "" {
		return []interfaces.Target{newPushdownTarget(accessor, models.GroupKeyAll, nil)}, nil
	}
	// One aggregate query discovers the groups; each target then scopes
	// itself with an equality filter on the group column.
	groups, err := accessor.Aggregate(ctx, models.Metric{Aggregate: models.AggNumRows}, groupBy, nil)
	if err != nil {
		return nil, err
	}
	targets := make([]interfaces.Target, 0, len(groups))
	for _, g := range groups {
		filter := models.Filter{Column: groupBy, Op: "=", Value: g.Key}
		targets = append(targets, newPushdownTarget(accessor, g.Key, []models.Filter{filter}))
	}
	return targets, nil
}

func inMemoryTargets(ctx context.Context, accessor interfaces.Accessor, groupBy string) ([]interfaces.Target, error) {
	// Materialize honors the handle's sample configuration, so a queryable
	// table is never pulled in whole when a sample size is set.
	table, err := accessor.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	if groupBy == "" {
		return []interfaces.Target{newTableTarget(table, models.GroupKeyAll)}, nil
	}
	keys, groups, err := table.Partition(groupBy)
	if err != nil {
		return nil, errors.NewAccessorError(errors.CodeColumnNotFound, err.Error())
	}
	targets := make([]interfaces.Target, 0, len(keys))
	for _, key := range keys {
		targets = append(targets, newTableTarget(groups[key], key))
	}
	return targets, nil
}
