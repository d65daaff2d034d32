package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/aiservices/internal/id"
)

type PgVectorStore struct {
	db  *pgxpool.Pool
	ids *id.Generator
}

func NewPgVectorStore(db *pgxpool.Pool, ids *id.Generator) *PgVectorStore {
	return &PgVectorStore{db: db, ids: ids}
}

func (s *PgVectorStore) Upsert(ctx context.Context, r Record) error {
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO knowledge_base_embeddings
		    (id, knowledge_base_id, knowledge_base_version_id, knowledge_base_file_id,
		     chunk_index, chunk_text, embedding, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		 ON CONFLICT (knowledge_base_version_id, knowledge_base_file_id, chunk_index)
		 DO UPDATE SET chunk_text = EXCLUDED.chunk_text,
		               embedding  = EXCLUDED.embedding,
		               metadata   = EXCLUDED.metadata,
		               updated_at = now()`,
		s.ids.Next(), r.KnowledgeBaseID, r.VersionID, r.FileID,
		r.ChunkIndex, r.Text, pgvector.NewVector(r.Embedding), metadata,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert file %d chunk %d: %w", ErrStorage, r.FileID, r.ChunkIndex, err)
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	rows, err := s.db.Query(ctx,
		`SELECT knowledge_base_file_id, chunk_index, chunk_text, metadata,
		        1 - (embedding <=> $1) AS score
		 FROM knowledge_base_embeddings
		 WHERE knowledge_base_id = $2 AND knowledge_base_version_id = $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		pgvector.NewVector(query), opts.KnowledgeBaseID, opts.VersionID, opts.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrStorage, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.FileID, &r.ChunkIndex, &r.Text, &r.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("%w: scan result: %w", ErrStorage, err)
		}
		if opts.MinScore > 0 && r.Score < opts.MinScore {
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search rows: %w", ErrStorage, err)
	}
	return results, nil
}

func (s *PgVectorStore) Count(ctx context.Context, versionID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		"SELECT count(*) FROM knowledge_base_embeddings WHERE knowledge_base_version_id = $1",
		versionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStorage, err)
	}
	return n, nil
}

// Get loads one record by its natural key.
func (s *PgVectorStore) Get(ctx context.Context, k Key) (Record, error) {
	var (
		r   Record
		vec pgvector.Vector
	)
	err := s.db.QueryRow(ctx,
		`SELECT knowledge_base_id, knowledge_base_version_id, knowledge_base_file_id, chunk_index,
		        chunk_text, embedding, metadata, created_at, updated_at
		 FROM knowledge_base_embeddings
		 WHERE knowledge_base_version_id = $1 AND knowledge_base_file_id = $2 AND chunk_index = $3`,
		k.VersionID, k.FileID, k.ChunkIndex,
	).Scan(&r.KnowledgeBaseID, &r.VersionID, &r.FileID, &r.ChunkIndex,
		&r.Text, &vec, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("%w: get: %w", ErrStorage, err)
	}
	r.Embedding = vec.Slice()
	return r, nil
}
