package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/agentdesk/internal/database"
	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/llm"
	"github.com/mtlprog/agentdesk/internal/metrics"
	"github.com/mtlprog/agentdesk/internal/repository"
	"github.com/panjf2000/ants/v2"
)

// Pipeline processes pending knowledge files into chunk rows.
type Pipeline struct {
	pool      *pgxpool.Pool
	files     *repository.KnowledgeRepository
	scraper   *Scraper
	embedder  llm.Embedder
	workers   *ants.Pool
	chunkSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithEmbedder enables chunk embeddings.
func WithEmbedder(embedder llm.Embedder) Option {
	return func(p *Pipeline) error {
		p.embedder = embedder
		return nil
	}
}

// WithChunkSize sets the maximum chunk length. Values below 1 keep the default.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size > 0 {
			p.chunkSize = size
		}
		return nil
	}
}

// WithPoolSize sets the number of concurrent embedding calls.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		workers, err := ants.NewPool(size)
		if err != nil {
			return fmt.Errorf("create embedding pool: %w", err)
		}
		if p.workers != nil {
			p.workers.Release()
		}
		p.workers = workers
		return nil
	}
}

// NewPipeline creates a Pipeline. The scraper is used for URL sources.
func NewPipeline(pool *pgxpool.Pool, files *repository.KnowledgeRepository, scraper *Scraper, opts ...Option) (*Pipeline, error) {
	size := max(runtime.NumCPU()/2, 1)
	workers, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}

	p := &Pipeline{
		pool:      pool,
		files:     files,
		scraper:   scraper,
		workers:   workers,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// Release stops the embedding pool.
func (p *Pipeline) Release() {
	if p.workers != nil {
		p.workers.Release()
	}
}

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, domain.ErrUnsupportedFileType) ||
		errors.Is(err, domain.ErrNoExtractableText) ||
		errors.Is(err, domain.ErrFileTooLarge) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrKnowledgeFileNotFound)
}

// Process moves a pending file through processing to completed or failed.
// A file that is not pending is left alone. When a transient error happens and
// lastAttempt is false the file goes back to pending so the job can be retried.
func (p *Pipeline) Process(ctx context.Context, fileID string, lastAttempt bool) error {
	started := time.Now()
	logger := p.logger.With("file_id", fileID)

	file, err := p.files.GetFileWithContent(ctx, fileID)
	if err != nil {
		return err
	}

	if err := p.files.UpdateStatus(ctx, fileID, domain.KnowledgeStatusPending, domain.KnowledgeStatusProcessing, nil); err != nil {
		if errors.Is(err, domain.ErrInvalidKnowledgeState) {
			logger.Info("knowledge file is not pending, skipping", "status", file.Status)
			return nil
		}
		return err
	}
	file.Status = domain.KnowledgeStatusProcessing

	chunks, err := p.buildChunks(ctx, file)
	if err == nil {
		err = database.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
			return p.files.ReplaceChunks(ctx, tx, file, chunks)
		})
	}

	metrics.IngestDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		// Status writes must outlive a cancelled job context.
		statusCtx := context.WithoutCancel(ctx)
		if !lastAttempt && !IsPermanent(err) {
			if rerr := p.files.UpdateStatus(statusCtx, fileID, domain.KnowledgeStatusProcessing, domain.KnowledgeStatusPending, nil); rerr != nil {
				logger.Error("failed to reset knowledge file", "error", rerr)
			}
			metrics.IngestJobs.WithLabelValues("retry").Inc()
			logger.Warn("knowledge processing failed, will retry", "error", err)
			return err
		}

		msg := err.Error()
		if ferr := p.files.UpdateStatus(statusCtx, fileID, domain.KnowledgeStatusProcessing, domain.KnowledgeStatusFailed, &msg); ferr != nil {
			logger.Error("failed to mark knowledge file failed", "error", ferr)
		}
		metrics.IngestJobs.WithLabelValues("failed").Inc()
		logger.Warn("knowledge processing failed", "error", err)
		return err
	}

	metrics.IngestJobs.WithLabelValues("completed").Inc()
	metrics.ChunksWritten.Add(float64(len(chunks)))
	logger.Info("knowledge file processed", "chunks", len(chunks), "duration", time.Since(started))
	return nil
}

func (p *Pipeline) buildChunks(ctx context.Context, file *domain.KnowledgeFile) ([]*domain.KnowledgeChunk, error) {
	text, err := p.extract(ctx, file)
	if err != nil {
		return nil, err
	}

	pieces := Chunk(text, p.chunkSize)
	if len(pieces) == 0 {
		return nil, domain.ErrNoExtractableText
	}

	var vectors [][]float32
	if p.embedder != nil {
		vectors, err = EmbedAll(ctx, p.workers, p.embedder, pieces)
		if err != nil {
			return nil, err
		}
	}

	chunks := make([]*domain.KnowledgeChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &domain.KnowledgeChunk{
			FileID:     file.ID,
			AgentID:    file.AgentID,
			ChunkIndex: i,
			Content:    piece,
		}
		if vectors != nil {
			chunks[i].Embedding = vectors[i]
		}
	}
	return chunks, nil
}

func (p *Pipeline) extract(ctx context.Context, file *domain.KnowledgeFile) (string, error) {
	if file.Source == domain.KnowledgeSourceURL {
		if file.SourceURL == nil {
			return "", fmt.Errorf("%w: url source without address", domain.ErrValidation)
		}
		page, err := p.scraper.Scrape(ctx, *file.SourceURL)
		if err != nil {
			return "", err
		}
		return page.Text, nil
	}
	return Extract(file.Content, file.FileName, file.MimeType)
}
