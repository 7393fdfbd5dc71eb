package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

func sampleRecord(id string, savedAt time.Time) Record {
	trials := []optimization.Trial{
		{Candidate: optimization.NewCandidate(0, 1, 2), Score: 0.5, Iteration: 0, Generation: optimization.NoGeneration, Attempts: 1},
		{Candidate: optimization.NewCandidate(1, 0), Iteration: 1, Generation: optimization.NoGeneration, Failed: true, Err: "boom", Attempts: 5},
	}
	return Record{
		ID:        id,
		Algorithm: "random_search",
		Status:    "completed",
		Result:    optimization.NewResult("random_search", trials),
		SavedAt:   savedAt,
	}
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "results.db")),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	for name, store := range storeBackends(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = store.Close() })

			_, ok, err := store.GetResult(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.SaveResult(ctx, sampleRecord("b", base.Add(time.Second))))
			require.NoError(t, store.SaveResult(ctx, sampleRecord("a", base)))

			got, ok, err := store.GetResult(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, CurrentSchemaVersion, got.SchemaVersion)
			assert.Equal(t, "completed", got.Status)
			assert.True(t, got.SavedAt.Equal(base))
			require.NotNil(t, got.Result)
			require.Len(t, got.Result.Trials, 2)
			require.NotNil(t, got.Result.BestScore)
			assert.Equal(t, 0.5, *got.Result.BestScore)
			assert.True(t, got.Result.BestCandidate.Equal(optimization.NewCandidate(0, 1, 2)))
			assert.True(t, got.Result.Trials[1].Failed)

			list, err := store.ListResults(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a", list[0].ID)
			assert.Equal(t, "b", list[1].ID)

			// Saving under an existing id replaces the record.
			updated := sampleRecord("a", base)
			updated.Status = "cancelled"
			require.NoError(t, store.SaveResult(ctx, updated))
			got, _, err = store.GetResult(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "cancelled", got.Status)
		})
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"))
	err := store.SaveResult(context.Background(), sampleRecord("a", time.Now()))
	assert.Error(t, err)
	assert.NoError(t, store.Close())

	assert.Error(t, NewSQLiteStore("").Init(context.Background()))
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	err := NewMemoryStore().SaveResult(context.Background(), sampleRecord("a", time.Now()))
	assert.Error(t, err)
}

func TestDecodeRecordVersionMismatch(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"schema_version":99,"id":"x"}`))
	assert.ErrorIs(t, err, ErrVersionMismatch)

	payload, err := EncodeRecord(Record{ID: "x"})
	require.NoError(t, err)
	record, err := DecodeRecord(payload)
	require.NoError(t, err)
	assert.Equal(t, "x", record.ID)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore("sqlite", "x.db")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)

	_, err = NewStore("postgres", "")
	assert.Error(t, err)
}
