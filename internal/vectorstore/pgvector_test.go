package vectorstore

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aiservices/internal/database"
	"github.com/nikhilbhutani/aiservices/internal/id"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	if dbURL := os.Getenv("TEST_DATABASE_URL"); dbURL != "" {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dbURL)
		if err == nil {
			err = pool.Ping(ctx)
		}
		if err == nil {
			_, err = database.RunMigrations(ctx, pool, "../../migrations")
		}
		if err != nil {
			fmt.Printf("Warning: test database unavailable: %v\n", err)
			if pool != nil {
				pool.Close()
			}
		} else {
			testDB = pool
		}
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

func vector(seed float32) []float32 {
	v := make([]float32, 768)
	for i := range v {
		v[i] = seed + float32(i%7)/10
	}
	return v
}

func TestPgVectorStore_UpsertIsIdempotentOnKey(t *testing.T) {
	if testDB == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	gen, err := id.NewGenerator(9)
	require.NoError(t, err)
	store := NewPgVectorStore(testDB, gen)

	versionID := gen.Next()
	t.Cleanup(func() {
		testDB.Exec(context.Background(), "DELETE FROM knowledge_base_embeddings WHERE knowledge_base_version_id = $1", versionID)
	})

	rec := Record{
		KnowledgeBaseID: 1,
		VersionID:       versionID,
		FileID:          42,
		ChunkIndex:      0,
		Text:            "first text",
		Embedding:       vector(0.1),
		Metadata:        map[string]any{"file_path": "/tmp/a.txt"},
	}
	require.NoError(t, store.Upsert(ctx, rec))

	rec.Text = "replacement text"
	rec.Embedding = vector(0.5)
	require.NoError(t, store.Upsert(ctx, rec))

	n, err := store.Count(ctx, versionID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, "replacement text", got.Text)
	assert.InDelta(t, 0.5, got.Embedding[0], 1e-6)
	assert.Equal(t, "/tmp/a.txt", got.Metadata["file_path"])
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	results, err := store.Search(ctx, vector(0.5), SearchOptions{KnowledgeBaseID: 1, VersionID: versionID, TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(42), results[0].FileID)
}

func TestPgVectorStore_ConstraintFailureIsStorageError(t *testing.T) {
	if testDB == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}

	gen, err := id.NewGenerator(9)
	require.NoError(t, err)

	// Wrong dimension for vector(768).
	err = NewPgVectorStore(testDB, gen).Upsert(context.Background(), Record{
		VersionID: gen.Next(), FileID: 1, Text: "x", Embedding: []float32{1, 2, 3},
	})
	assert.ErrorIs(t, err, ErrStorage)
}
