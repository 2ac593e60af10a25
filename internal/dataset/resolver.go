package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// Resolver turns dataset handles into accessors. Database handles resolve
// through registered connection pools keyed by resource key; in-memory
// handles resolve through registered tables keyed by table name. Cross-table
// checks resolve their secondary dataset through the same instance.
type Resolver struct {
	logger *logrus.Logger
	mu     sync.RWMutex
	dbs    map[string]*sql.DB
	frames map[string]*models.Table
}

// NewResolver creates an empty resolver.
func NewResolver(logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		logger: logger,
		dbs:    make(map[string]*sql.DB),
		frames: make(map[string]*models.Table),
	}
}

// RegisterDB registers a connection pool under a resource key.
func (r *Resolver) RegisterDB(resourceKey string, db *sql.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbs[resourceKey] = db
}

// RegisterTable registers an in-memory table under a name.
func (r *Resolver) RegisterTable(name string, table *models.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[name] = table
}

// Resolve implements interfaces.AccessorResolver.
func (r *Resolver) Resolve(ctx context.Context, handle *models.DatasetHandle) (interfaces.Accessor, error) {
	if handle == nil {
		return nil, errors.NewAccessorError(errors.CodeSourceUnreachable, "dataset handle is nil")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	switch handle.SourceKind {
	case models.SourceQueryable:
		db, ok := r.dbs[handle.ResourceKey]
		if !ok {
			return nil, errors.NewAccessorError(errors.CodeSourceUnreachable,
				fmt.Sprintf("no database registered for resource key %q", handle.ResourceKey))
		}
		return NewSQLAccessor(handle, db, r.logger)

	case models.SourceInMemory:
		table, ok := r.frames[handle.TableName]
		if !ok {
			return nil, errors.NewAccessorError(errors.CodeSourceUnreachable,
				fmt.Sprintf("no in-memory table registered as %q", handle.TableName))
		}
		return NewDataFrameAccessor(handle, table, r.logger)

	default:
		return nil, errors.NewAccessorError(errors.CodeSourceUnreachable,
			fmt.Sprintf("unknown source kind %q", handle.SourceKind))
	}
}
