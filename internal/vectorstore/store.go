package vectorstore

import (
	"context"
	"errors"
	"time"
)

var ErrStorage = errors.New("vector store error")

// Key identifies one chunk's embedding. Re-ingesting the same key
// overwrites the stored record.
type Key struct {
	VersionID  int64
	FileID     int64
	ChunkIndex int
}

type Record struct {
	KnowledgeBaseID int64
	VersionID       int64
	FileID          int64
	ChunkIndex      int
	Text            string
	Embedding       []float32
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r Record) Key() Key {
	return Key{VersionID: r.VersionID, FileID: r.FileID, ChunkIndex: r.ChunkIndex}
}

type SearchOptions struct {
	KnowledgeBaseID int64
	VersionID       int64
	TopK            int
	MinScore        float64
}

type SearchResult struct {
	FileID     int64          `json:"file_id"`
	ChunkIndex int            `json:"chunk_index"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata"`
}

// Writer persists one record per call; each call is its own unit of
// durability.
type Writer interface {
	Upsert(ctx context.Context, r Record) error
}

type Store interface {
	Writer
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)
	Count(ctx context.Context, versionID int64) (int, error)
}
