package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertIsIdempotentOnKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	rec := Record{KnowledgeBaseID: 1, VersionID: 10, FileID: 100, ChunkIndex: 0, Text: "first", Embedding: []float32{1, 0}}
	require.NoError(t, s.Upsert(ctx, rec))

	clock = clock.Add(time.Minute)
	rec.Text = "second"
	rec.Embedding = []float32{0, 1}
	require.NoError(t, s.Upsert(ctx, rec))

	n, err := s.Count(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)
	assert.Equal(t, []float32{0, 1}, got.Embedding)
	assert.Equal(t, clock.Add(-time.Minute), got.CreatedAt)
	assert.Equal(t, clock, got.UpdatedAt)
}

func TestMemoryStore_DistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, r := range []Record{
		{VersionID: 1, FileID: 1, ChunkIndex: 0},
		{VersionID: 1, FileID: 1, ChunkIndex: 1},
		{VersionID: 1, FileID: 2, ChunkIndex: 0},
		{VersionID: 2, FileID: 1, ChunkIndex: 0},
	} {
		require.NoError(t, s.Upsert(ctx, r))
	}

	n, err := s.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, s.Records(), 4)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore().Upsert(ctx, Record{})
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, Record{KnowledgeBaseID: 1, VersionID: 1, FileID: 1, ChunkIndex: 0, Text: "east", Embedding: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, Record{KnowledgeBaseID: 1, VersionID: 1, FileID: 1, ChunkIndex: 1, Text: "north", Embedding: []float32{0, 1}}))
	require.NoError(t, s.Upsert(ctx, Record{KnowledgeBaseID: 1, VersionID: 2, FileID: 1, ChunkIndex: 0, Text: "other version", Embedding: []float32{1, 0}}))

	results, err := s.Search(ctx, []float32{0.9, 0.1}, SearchOptions{KnowledgeBaseID: 1, VersionID: 1, TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "east", results[0].Text)
	assert.InDelta(t, 0.9939, results[0].Score, 0.001)
}
