package checks

import (
	"context"

	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/internal/history"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// testTarget serves a materialized table the way the engine's in-memory
// path does.
type testTarget struct {
	table *models.Table
	key   string
}

func (t *testTarget) GroupKey() string { return t.key }

func (t *testTarget) Aggregate(ctx context.Context, metric models.Metric) (float64, error) {
	return dataset.TableAggregate(t.table, metric)
}

func (t *testTarget) Column(ctx context.Context, name string) ([]interface{}, error) {
	return t.table.Column(name)
}

func (t *testTarget) Table() *models.Table { return t.table }

func newTestEnv(table *models.Table, checkName string) *interfaces.CheckEnv {
	return &interfaces.CheckEnv{
		Target:    &testTarget{table: table, key: models.GroupKeyAll},
		History:   history.NewMemoryStore(),
		CheckName: checkName,
	}
}

func numbersTable(column string, values ...interface{}) *models.Table {
	table := models.NewTable(column)
	for _, v := range values {
		table.AppendRow(v)
	}
	return table
}
