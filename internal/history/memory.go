package history

import (
	"context"
	"sync"

	"github.com/inferloop/dqcore/pkg/models"
)

// MemoryStore is an in-process history store. It is the default backend and
// the one used in tests; records do not survive process restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]models.HistoryRecord
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]models.HistoryRecord),
	}
}

func historyKey(checkName, groupKey string) string {
	return checkName + "\x00" + groupKey
}

// Append records one observation.
func (s *MemoryStore) Append(ctx context.Context, record models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(record.CheckName, record.GroupKey)
	s.records[key] = append(s.records[key], record)
	return nil
}

// Recent returns the most recent n records for the key, newest first.
func (s *MemoryStore) Recent(ctx context.Context, checkName, groupKey string, n int) ([]models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[historyKey(checkName, groupKey)]
	if n > len(all) {
		n = len(all)
	}

	out := make([]models.HistoryRecord, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
