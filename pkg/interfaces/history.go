package interfaces

import (
	"context"

	"github.com/inferloop/dqcore/pkg/models"
)

// HistoryStore persists prior check-metric values across evaluation runs.
//
// The store is append-only and atomic per (check_name, group_key); it makes
// no cross-key ordering guarantee. It is the only mutable shared resource in
// the engine and must be safe for concurrent asset evaluations.
type HistoryStore interface {
	// Append records one observation.
	Append(ctx context.Context, record models.HistoryRecord) error

	// Recent returns the most recent n records for the key, ordered by
	// run timestamp descending.
	Recent(ctx context.Context, checkName, groupKey string, n int) ([]models.HistoryRecord, error)

	// Close releases backend resources.
	Close() error
}
