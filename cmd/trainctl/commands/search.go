package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/aiservices/internal/config"
	"github.com/nikhilbhutani/aiservices/internal/database"
	"github.com/nikhilbhutani/aiservices/internal/embedding"
	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/training"
	"github.com/nikhilbhutani/aiservices/internal/vectorstore"
)

type searchOptions struct {
	kb       int64
	version  int64
	limit    int
	minScore float64
	db       database.ConnParams
}

type searcher interface {
	Search(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error)
}

func NewSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Find the stored chunks closest to a query",
		Long: `Embed a query with the configured EMBEDDING_PROVIDER and print the nearest
chunks of one knowledge base version as JSON lines, best match first.

Examples:
  trainctl search --kb 1 --version 3 --db-user app --db-name kb "refund policy"
  trainctl search --kb 1 --version 3 --limit 10 --min-score 0.5 --db-name kb onboarding`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			pool, err := database.NewJobPool(ctx, opts.db)
			if err != nil {
				return err
			}
			defer pool.Close()

			gw := llm.NewGateway(cfg.LLM)
			em := embedding.NewService(gw, gw.EmbeddingModel(), cfg.LLM.EmbeddingDimensions)
			// Search never issues ids, so the store needs no generator.
			store := vectorstore.NewPgVectorStore(pool, nil)
			return runSearch(ctx, em, store, opts, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&opts.kb, "kb", 0, "Knowledge base id")
	cmd.Flags().Int64Var(&opts.version, "version", 0, "Knowledge base version id")
	cmd.Flags().IntVar(&opts.limit, "limit", 5, "Maximum number of chunks to print")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Drop chunks scoring below this cosine similarity")
	cmd.Flags().StringVar(&opts.db.Host, "db-host", "localhost", "Knowledge base database host")
	cmd.Flags().IntVar(&opts.db.Port, "db-port", 5432, "Knowledge base database port")
	cmd.Flags().StringVar(&opts.db.User, "db-user", "", "Knowledge base database user")
	cmd.Flags().StringVar(&opts.db.Password, "db-password", "", "Knowledge base database password")
	cmd.Flags().StringVar(&opts.db.DBName, "db-name", "", "Knowledge base database name")
	cmd.MarkFlagRequired("kb")
	cmd.MarkFlagRequired("version")
	return cmd
}

func runSearch(ctx context.Context, em training.Embedder, s searcher, opts searchOptions, query string, out io.Writer) error {
	if strings.TrimSpace(query) == "" {
		return errors.New("search: empty query")
	}

	vec, err := em.Embed(ctx, query)
	if err != nil {
		return err
	}
	results, err := s.Search(ctx, vec, vectorstore.SearchOptions{
		KnowledgeBaseID: opts.kb,
		VersionID:       opts.version,
		TopK:            opts.limit,
		MinScore:        opts.minScore,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
