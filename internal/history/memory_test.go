package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/pkg/models"
)

func TestMemoryStoreRecentNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i, v := range []float64{10, 20, 30} {
		require.NoError(t, store.Append(ctx, models.HistoryRecord{
			CheckName: "volume",
			GroupKey:  models.GroupKeyAll,
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
			Value:     v,
		}))
	}

	records, err := store.Recent(ctx, "volume", models.GroupKeyAll, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 30.0, records[0].Value)
	assert.Equal(t, 20.0, records[1].Value)
	assert.Equal(t, 10.0, records[2].Value)
}

func TestMemoryStoreRecentWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, store.Append(ctx, models.HistoryRecord{
			CheckName: "volume",
			GroupKey:  models.GroupKeyAll,
			Value:     float64(i),
		}))
	}

	records, err := store.Recent(ctx, "volume", models.GroupKeyAll, 5)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 49.0, records[0].Value)
	assert.Equal(t, 45.0, records[4].Value)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, models.HistoryRecord{CheckName: "volume", GroupKey: "eu", Value: 1}))
	require.NoError(t, store.Append(ctx, models.HistoryRecord{CheckName: "volume", GroupKey: "us", Value: 2}))
	require.NoError(t, store.Append(ctx, models.HistoryRecord{CheckName: "nulls", GroupKey: "eu", Value: 3}))

	records, err := store.Recent(ctx, "volume", "eu", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].Value)

	records, err = store.Recent(ctx, "nulls", "us", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryStorePreservesSampleAndFrequencies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, models.HistoryRecord{
		CheckName:   "amount_dist",
		GroupKey:    models.GroupKeyAll,
		Value:       3,
		Sample:      []float64{1.5, 2.5, 3.5},
		Frequencies: map[string]float64{"active": 2, "churned": 1},
	}))

	records, err := store.Recent(ctx, "amount_dist", models.GroupKeyAll, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, records[0].Sample)
	assert.Equal(t, map[string]float64{"active": 2, "churned": 1}, records[0].Frequencies)
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store, err := NewStore(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore(context.Background(), &Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestNewStoreRejectsUnknownBackend(t *testing.T) {
	_, err := NewStore(context.Background(), &Config{Backend: "cassandra"}, nil)
	assert.Error(t, err)
}
