package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps records in process with the same natural-key upsert
// semantics as the Postgres store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Key]Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r.Embedding = slices.Clone(r.Embedding)
	r.Metadata = maps.Clone(r.Metadata)

	if existing, ok := s.records[r.Key()]; ok {
		r.KnowledgeBaseID = existing.KnowledgeBaseID
		r.CreatedAt = existing.CreatedAt
	} else {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.records[r.Key()] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, k Key) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[k]
	if !ok {
		return Record{}, fmt.Errorf("%w: no record for %+v", ErrStorage, k)
	}
	return r, nil
}

func (s *MemoryStore) Count(_ context.Context, versionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.records {
		if k.VersionID == versionID {
			n++
		}
	}
	return n, nil
}

// Records returns every stored record ordered by file then chunk index.
func (s *MemoryStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.records))
	slices.SortFunc(out, func(a, b Record) int {
		if a.FileID != b.FileID {
			return cmp.Compare(a.FileID, b.FileID)
		}
		return a.ChunkIndex - b.ChunkIndex
	})
	return out
}

func (s *MemoryStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	s.mu.RLock()
	var results []SearchResult
	for _, r := range s.records {
		if r.KnowledgeBaseID != opts.KnowledgeBaseID || r.VersionID != opts.VersionID {
			continue
		}
		score := cosine(query, r.Embedding)
		if opts.MinScore > 0 && score < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{
			FileID:     r.FileID,
			ChunkIndex: r.ChunkIndex,
			Text:       r.Text,
			Score:      score,
			Metadata:   r.Metadata,
		})
	}
	s.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
