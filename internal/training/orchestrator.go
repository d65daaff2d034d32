// Package training runs knowledge-base ingestion jobs: extract, chunk,
// embed and store every file in order while reporting progress.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/aiservices/internal/database"
	"github.com/nikhilbhutani/aiservices/internal/monitoring"
	"github.com/nikhilbhutani/aiservices/internal/vectorstore"
	"github.com/nikhilbhutani/aiservices/pkg/chunker"
)

var (
	ErrInvalidJob = errors.New("invalid training job")
	ErrNoChunks   = errors.New("text produced no chunks")
)

type Extractor interface {
	Extract(path, mediaType string) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StoreOpener returns the writer a job stores into and a func releasing it.
type StoreOpener func(ctx context.Context, params database.ConnParams) (vectorstore.Writer, func(), error)

// StaticStore opens the same writer for every job.
func StaticStore(w vectorstore.Writer) StoreOpener {
	return func(context.Context, database.ConnParams) (vectorstore.Writer, func(), error) {
		return w, func() {}, nil
	}
}

type Orchestrator struct {
	extractor Extractor
	chunker   *chunker.Chunker
	embedder  Embedder
	openStore StoreOpener
	pause     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Orchestrator)

// WithPause sets the wait after every stored chunk.
func WithPause(d time.Duration) Option {
	return func(o *Orchestrator) { o.pause = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(ex Extractor, ch *chunker.Chunker, em Embedder, open StoreOpener, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor: ex,
		chunker:   ch,
		embedder:  em,
		openStore: open,
		pause:     100 * time.Millisecond,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the state of one Run call.
type run struct {
	job      Job
	grouping Grouping
	details  []FileDetail
	percent  int
	sink     Sink
}

func (r *run) event(typ EventType, fileIdx int, f *FileJob) Event {
	e := Event{
		Type:        typ,
		CurrentFile: fileIdx,
		TotalFiles:  len(r.job.Files),
		Percentage:  r.percent,
		FileDetails: append([]FileDetail(nil), r.details...),
		Grouping:    r.grouping,
	}
	if f != nil {
		e.CurrentFileName = f.DisplayName()
		e.CurrentFileID = f.ID
		e.CurrentFileSize = f.Size
		e.CurrentFileType = f.MimeType
	}
	return e
}

func (r *run) emit(ctx context.Context, e Event) error {
	if e.Type == EventProgress {
		r.percent = e.Percentage
	}
	if err := r.sink.Emit(ctx, e); err != nil {
		return fmt.Errorf("emit %s event: %w", e.Type, err)
	}
	return nil
}

// Run processes every file of job in order, reporting to sink. A file that
// fails is reported and skipped. Run returns an error only for job-level
// failures, cancellation, or a sink that stops accepting events.
func (o *Orchestrator) Run(ctx context.Context, job Job, sink Sink) error {
	r := &run{job: job, grouping: job.Grouping(), sink: sink}
	log := o.logger.With(
		"knowledge_base_id", int64(job.KnowledgeBaseID),
		"version_id", int64(job.VersionID),
		"files", len(job.Files),
	)
	if r.grouping.JobID != "" {
		log = log.With("job_id", string(r.grouping.JobID))
	}

	store, release, err := o.open(ctx, job)
	if err != nil {
		log.Error("training job failed", "error", err)
		e := r.event(EventError, 0, nil)
		e.Message = fmt.Sprintf("Training failed: %v", err)
		e.Error = err.Error()
		if emitErr := r.emit(ctx, e); emitErr != nil {
			return errors.Join(err, emitErr)
		}
		return err
	}
	defer release()

	log.Info("training job started")
	for i := range job.Files {
		if err := o.processFile(ctx, r, i+1, store, log); err != nil {
			log.Warn("training job stopped", "file", i+1, "error", err)
			return err
		}
	}

	done := r.event(EventComplete, len(job.Files), nil)
	done.Status = StatusCompleted
	done.Percentage = 100
	done.Message = "Training completed successfully"
	if err := r.emit(ctx, done); err != nil {
		return err
	}

	log.Info("training job completed")
	return nil
}

func (o *Orchestrator) open(ctx context.Context, job Job) (vectorstore.Writer, func(), error) {
	if err := job.Validate(); err != nil {
		return nil, nil, err
	}
	store, release, err := o.openStore(ctx, job.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open vector store: %w", err)
	}
	return store, release, nil
}

// processFile returns nil when the file completed or failed on its own; a
// non-nil error means the whole run must stop.
func (o *Orchestrator) processFile(ctx context.Context, r *run, i int, store vectorstore.Writer, log *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := &r.job.Files[i-1]
	F := len(r.job.Files)

	r.details = append(r.details, FileDetail{
		FileID:    f.ID,
		FileName:  f.DisplayName(),
		FileSize:  f.Size,
		FileType:  f.MimeType,
		Status:    StatusProcessing,
		StartedAt: o.now(),
	})
	detail := &r.details[len(r.details)-1]

	start := r.event(EventProgress, i, f)
	start.Status = StatusProcessing
	start.Percentage = (i - 1) * 100 / F
	start.Message = fmt.Sprintf("Processing %s (%d bytes)...", f.DisplayName(), f.Size)
	if err := r.emit(ctx, start); err != nil {
		return err
	}

	err := o.ingestFile(ctx, r, i, f, detail, store)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || isSinkError(err) {
		return err
	}

	completed := o.now()
	detail.Status = StatusFailed
	detail.Error = err.Error()
	detail.CompletedAt = &completed
	monitoring.TrainingFilesTotal.WithLabelValues(string(StatusFailed)).Inc()
	log.Warn("file failed", "file_id", int64(f.ID), "path", f.Path, "error", err)

	failed := r.event(EventError, i, f)
	failed.Status = StatusFailed
	failed.CurrentChunk = detail.ChunksDone
	failed.TotalChunks = detail.ChunksTotal
	failed.Message = fmt.Sprintf("Error processing %s: %v", f.DisplayName(), err)
	failed.Error = err.Error()
	return r.emit(ctx, failed)
}

type sinkError struct{ err error }

func (e sinkError) Error() string { return e.err.Error() }
func (e sinkError) Unwrap() error { return e.err }

func isSinkError(err error) bool {
	var se sinkError
	return errors.As(err, &se)
}

func (o *Orchestrator) ingestFile(ctx context.Context, r *run, i int, f *FileJob, detail *FileDetail, store vectorstore.Writer) error {
	F := len(r.job.Files)

	if err := ctx.Err(); err != nil {
		return err
	}
	text, err := o.extractor.Extract(f.Path, f.MimeType)
	if err != nil {
		return err
	}

	chunks := o.chunker.Chunk(text, map[string]any{
		"file_id":   int64(f.ID),
		"file_path": f.Path,
		"mime_type": f.MimeType,
	})
	C := len(chunks)
	if C == 0 {
		return fmt.Errorf("%w: %s", ErrNoChunks, f.Path)
	}
	detail.ChunksTotal = C

	for j := 1; j <= C; j++ {
		c := chunks[j-1]
		overall := ((i-1)*C + j) * 100 / (F * C)

		detail.Status = StatusEmbedding
		detail.ChunksDone = j
		detail.Percentage = j * 100 / C

		e := r.event(EventProgress, i, f)
		e.Status = StatusEmbedding
		e.CurrentChunk = j
		e.TotalChunks = C
		e.Percentage = overall
		e.Message = fmt.Sprintf("Creating embedding for chunk %d/%d of %s...", j, C, f.DisplayName())
		if err := r.emit(ctx, e); err != nil {
			return sinkError{err}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		vec, err := o.embedder.Embed(ctx, c.Text)
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		err = store.Upsert(ctx, vectorstore.Record{
			KnowledgeBaseID: int64(r.job.KnowledgeBaseID),
			VersionID:       int64(r.job.VersionID),
			FileID:          int64(f.ID),
			ChunkIndex:      j - 1,
			Text:            c.Text,
			Embedding:       vec,
			Metadata:        c.Metadata,
		})
		if err != nil {
			return err
		}
		monitoring.TrainingChunksTotal.Inc()

		detail.Status = StatusStoring

		e = r.event(EventProgress, i, f)
		e.Status = StatusStoring
		e.CurrentChunk = j
		e.TotalChunks = C
		e.Percentage = overall
		e.Message = fmt.Sprintf("Stored chunk %d/%d of %s", j, C, f.DisplayName())
		if err := r.emit(ctx, e); err != nil {
			return sinkError{err}
		}

		if err := o.sleep(ctx); err != nil {
			return err
		}
	}

	completed := o.now()
	detail.Status = StatusCompleted
	detail.Percentage = 100
	detail.CompletedAt = &completed
	monitoring.TrainingFilesTotal.WithLabelValues(string(StatusCompleted)).Inc()

	e := r.event(EventProgress, i, f)
	e.Status = StatusCompleted
	e.CurrentChunk = C
	e.TotalChunks = C
	e.Percentage = i * 100 / F
	e.Message = fmt.Sprintf("Completed processing %s", f.DisplayName())
	if err := r.emit(ctx, e); err != nil {
		return sinkError{err}
	}
	return nil
}

func (o *Orchestrator) sleep(ctx context.Context) error {
	if o.pause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
