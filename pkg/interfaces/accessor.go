package interfaces

import (
	"context"

	"github.com/inferloop/dqcore/pkg/models"
)

// Accessor abstracts a named tabular dataset as either a query-capable handle
// or an in-memory snapshot. Accessors are read-only for the duration of an
// evaluation pass and must respect context deadlines on every call.
type Accessor interface {
	// SourceKind reports whether the accessor can push aggregate queries
	// down to its backing store.
	SourceKind() models.SourceKind

	// ColumnSchema returns column names and types of the dataset.
	ColumnSchema(ctx context.Context) ([]models.ColumnInfo, error)

	// Sample returns up to n rows selected by the given method.
	Sample(ctx context.Context, n int, method models.SampleMethod) (*models.Table, error)

	// Aggregate evaluates one aggregate metric, optionally grouped by a
	// column and restricted by filters. Ungrouped results carry the
	// GroupKeyAll sentinel key. Grouped results are ordered by group key
	// ascending.
	Aggregate(ctx context.Context, metric models.Metric, groupBy string, filters []models.Filter) ([]models.GroupValue, error)

	// Materialize returns the dataset as an in-memory table. Only called
	// when a check cannot be pushed down; the planner bounds the size via
	// the handle's sample configuration.
	Materialize(ctx context.Context) (*models.Table, error)
}

// Queryable is implemented by accessors that can execute a raw query against
// their backing store. Custom-query checks require it.
type Queryable interface {
	Query(ctx context.Context, query string) (*models.Table, error)
}

// AccessorResolver resolves a secondary dataset reference into an accessor.
// Cross-table checks use it to reach the table they join against.
type AccessorResolver interface {
	Resolve(ctx context.Context, handle *models.DatasetHandle) (Accessor, error)
}

// Closeable is implemented by components holding external resources.
type Closeable interface {
	Close() error
}
