package engine

import (
	"context"
	"fmt"

	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// pushdownTarget answers aggregates by querying the accessor, scoped to one
// group via an equality filter. Row-level access is unavailable: the planner
// never routes row-level checks here, and a check reaching for Column anyway
// gets an unsupported-check error that triggers the in-memory fallback.
type pushdownTarget struct {
	accessor interfaces.Accessor
	filters  []models.Filter
	key      string
}

func newPushdownTarget(accessor interfaces.Accessor, key string, filters []models.Filter) *pushdownTarget {
	return &pushdownTarget{accessor: accessor, key: key, filters: filters}
}

func (t *pushdownTarget) GroupKey() string { return t.key }

func (t *pushdownTarget) Aggregate(ctx context.Context, metric models.Metric) (float64, error) {
	values, err := t.accessor.Aggregate(ctx, metric, "", t.filters)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0].Value, nil
}

func (t *pushdownTarget) Column(ctx context.Context, name string) ([]interface{}, error) {
	return nil, errors.NewUnsupportedCheckError(
		fmt.Sprintf("row-level access to column %q is not available on the pushdown path", name))
}

func (t *pushdownTarget) Table() *models.Table { return nil }

// tableTarget answers both aggregates and row-level access from one
// materialized slice.
type tableTarget struct {
	table *models.Table
	key   string
}

func newTableTarget(table *models.Table, key string) *tableTarget {
	return &tableTarget{table: table, key: key}
}

func (t *tableTarget) GroupKey() string { return t.key }

func (t *tableTarget) Aggregate(ctx context.Context, metric models.Metric) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return dataset.TableAggregate(t.table, metric)
}

func (t *tableTarget) Column(ctx context.Context, name string) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, err := t.table.Column(name)
	if err != nil {
		return nil, errors.NewAccessorError(errors.CodeColumnNotFound, err.Error())
	}
	return cells, nil
}

func (t *tableTarget) Table() *models.Table { return t.table }
