package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/aiservices/internal/bootstrap"
	"github.com/nikhilbhutani/aiservices/internal/config"
	"github.com/nikhilbhutani/aiservices/internal/database"
	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/training"
	"github.com/nikhilbhutani/aiservices/internal/vectorstore"
)

type ingestOptions struct {
	kb      int64
	version int64
	db      database.ConnParams
	dryRun  bool
}

func NewIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Run a training job inline",
		Long: `Extract, chunk, embed and store files, printing each progress event as a
JSON line. Embeddings come from the configured EMBEDDING_PROVIDER.

Examples:
  trainctl ingest --kb 1 --version 3 --db-host localhost --db-user app --db-name kb a.pdf b.docx
  trainctl ingest --kb 1 --version 3 --dry-run notes.txt`,
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

			gw := llm.NewGateway(cfg.LLM)
			var o *training.Orchestrator
			if opts.dryRun {
				o, err = bootstrap.OrchestratorWithStore(cfg, gw, training.StaticStore(vectorstore.NewMemoryStore()))
			} else {
				o, err = bootstrap.Orchestrator(cfg, gw)
			}
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runIngest(ctx, o, opts, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&opts.kb, "kb", 0, "Knowledge base id")
	cmd.Flags().Int64Var(&opts.version, "version", 0, "Knowledge base version id")
	cmd.Flags().StringVar(&opts.db.Host, "db-host", "localhost", "Target database host")
	cmd.Flags().IntVar(&opts.db.Port, "db-port", 5432, "Target database port")
	cmd.Flags().StringVar(&opts.db.User, "db-user", "", "Target database user")
	cmd.Flags().StringVar(&opts.db.Password, "db-password", "", "Target database password")
	cmd.Flags().StringVar(&opts.db.DBName, "db-name", "", "Target database name")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Store into memory instead of a database")
	cmd.MarkFlagRequired("kb")
	cmd.MarkFlagRequired("version")
	return cmd
}

func buildJob(opts ingestOptions, paths []string) (training.Job, error) {
	job := training.Job{
		KnowledgeBaseID: training.ID(opts.kb),
		VersionID:       training.ID(opts.version),
		DB:              opts.db,
	}
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return job, fmt.Errorf("resolve %s: %w", p, err)
		}
		f := training.FileJob{ID: training.ID(i + 1), Name: filepath.Base(p), Path: abs}
		if info, err := os.Stat(abs); err == nil {
			f.Size = info.Size()
		}
		job.Files = append(job.Files, f)
	}
	return job, nil
}

type runner interface {
	Run(ctx context.Context, job training.Job, sink training.Sink) error
}

func runIngest(ctx context.Context, r runner, opts ingestOptions, paths []string, out io.Writer) error {
	job, err := buildJob(opts, paths)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	return r.Run(ctx, job, training.SinkFunc(func(_ context.Context, e training.Event) error {
		return enc.Encode(e)
	}))
}
