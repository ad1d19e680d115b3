package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// InlineEnqueuer runs knowledge jobs on an in-process pool. It is used when no
// Redis is configured; jobs are attempted once and lost on restart.
type InlineEnqueuer struct {
	pool      *ants.Pool
	processor Processor
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
}

var _ Enqueuer = (*InlineEnqueuer)(nil)

// NewInlineEnqueuer creates an in-process enqueuer with the given number of workers.
func NewInlineEnqueuer(workers int, processor Processor) (*InlineEnqueuer, error) {
	pool, err := ants.NewPool(max(workers, 1))
	if err != nil {
		return nil, fmt.Errorf("create inline pool: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineEnqueuer{
		pool:      pool,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
		logger:    slog.Default().With("component", "inline-queue"),
	}, nil
}

// EnqueueKnowledge submits the file for processing and returns immediately.
func (e *InlineEnqueuer) EnqueueKnowledge(_ context.Context, fileID string) error {
	if _, err := encodeKnowledgePayload(fileID); err != nil {
		return err
	}
	err := e.pool.Submit(func() {
		if err := e.processor.Process(e.ctx, fileID, true); err != nil {
			e.logger.Warn("inline knowledge job failed", "file_id", fileID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("submit knowledge job: %w", err)
	}
	return nil
}

// Close cancels running jobs and waits for the pool to drain.
func (e *InlineEnqueuer) Close() error {
	e.cancel()
	e.pool.Release()
	return nil
}
