package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mtlprog/agentdesk/internal/ingest"
)

const (
	// MaxRetry is the number of retries for a knowledge job after its first attempt.
	MaxRetry = 3

	knowledgeTimeout = 10 * time.Minute
	queueName        = "knowledge"
)

// AsynqClient enqueues knowledge jobs into Redis.
type AsynqClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

var _ Enqueuer = (*AsynqClient)(nil)

// NewAsynqClient creates a client from a redis:// URL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &AsynqClient{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}, nil
}

func knowledgeTaskID(fileID string) string {
	return TypeKnowledgeProcess + ":" + fileID
}

// EnqueueKnowledge schedules the file. A job already queued for the same file is not
// duplicated; an archived or completed one is removed so the file can run again.
func (c *AsynqClient) EnqueueKnowledge(ctx context.Context, fileID string) error {
	payload, err := encodeKnowledgePayload(fileID)
	if err != nil {
		return err
	}

	taskID := knowledgeTaskID(fileID)
	task := asynq.NewTask(TypeKnowledgeProcess, payload)

	info, err := c.enqueue(ctx, task, taskID)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		cleared, clearErr := c.clearFinished(taskID)
		if clearErr != nil {
			return clearErr
		}
		if !cleared {
			slog.Debug("knowledge task already queued", "file_id", fileID, "task_id", taskID)
			return nil
		}
		info, err = c.enqueue(ctx, task, taskID)
	}
	if err != nil {
		return fmt.Errorf("enqueue knowledge task: %w", err)
	}

	slog.Debug("knowledge task enqueued", "file_id", fileID, "task_id", info.ID)
	return nil
}

func (c *AsynqClient) enqueue(ctx context.Context, task *asynq.Task, taskID string) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task,
		asynq.Queue(queueName),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(knowledgeTimeout),
		asynq.TaskID(taskID),
		asynq.Retention(time.Hour),
	)
}

// clearFinished deletes the task if it is archived or completed. It reports whether
// the ID is free again; a pending, scheduled, retrying or active task keeps it.
func (c *AsynqClient) clearFinished(taskID string) (bool, error) {
	info, err := c.inspector.GetTaskInfo(queueName, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect knowledge task: %w", err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
		if err := c.inspector.DeleteTask(queueName, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return false, fmt.Errorf("delete finished knowledge task: %w", err)
		}
		return true, nil
	default:
		return false, nil
	}
}

// Close releases the Redis connection.
func (c *AsynqClient) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// Server consumes knowledge jobs.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewServer creates a worker server that runs jobs with the given concurrency.
func NewServer(redisURL string, concurrency int, processor Processor) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	logger := slog.Default().With("component", "worker")
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Error("task failed", "type", task.Type(), "retried", retried, "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeKnowledgeProcess, KnowledgeHandler(processor))

	return &Server{server: srv, mux: mux, logger: logger}, nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	s.logger.Info("worker started", "queue", queueName)

	<-ctx.Done()
	s.server.Shutdown()
	s.logger.Info("worker stopped")
	return nil
}

// KnowledgeHandler adapts a Processor to an asynq handler. Permanent failures skip retries.
func KnowledgeHandler(processor Processor) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := decodeKnowledgePayload(task.Payload())
		if err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}

		lastAttempt := true
		retried, ok1 := asynq.GetRetryCount(ctx)
		maxRetry, ok2 := asynq.GetMaxRetry(ctx)
		if ok1 && ok2 {
			lastAttempt = retried >= maxRetry
		}

		if err := processor.Process(ctx, payload.FileID, lastAttempt); err != nil {
			if ingest.IsPermanent(err) {
				return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
			}
			return err
		}
		return nil
	}
}
