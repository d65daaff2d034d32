package training

import (
	"context"

	"github.com/nikhilbhutani/aiservices/internal/database"
	"github.com/nikhilbhutani/aiservices/internal/id"
	"github.com/nikhilbhutani/aiservices/internal/vectorstore"
)

// PgStore opens a dedicated pgvector store per job from the job's
// connection parameters. The pool is closed by the release func.
func PgStore(ids *id.Generator) StoreOpener {
	return func(ctx context.Context, params database.ConnParams) (vectorstore.Writer, func(), error) {
		pool, err := database.NewJobPool(ctx, params)
		if err != nil {
			return nil, nil, err
		}
		return vectorstore.NewPgVectorStore(pool, ids), pool.Close, nil
	}
}
