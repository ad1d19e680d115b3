package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/agentdesk/internal/database"
	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/ingest"
	"github.com/mtlprog/agentdesk/internal/repository"
)

// MaxUploadBytes is the largest accepted knowledge upload.
const MaxUploadBytes = 10 << 20

// Enqueuer schedules knowledge files for processing.
type Enqueuer interface {
	EnqueueKnowledge(ctx context.Context, fileID string) error
}

// UploadInput is a knowledge file received from the client.
type UploadInput struct {
	FileName string
	MimeType string
	Content  []byte
}

// KnowledgeService manages knowledge files of agents.
type KnowledgeService struct {
	pool         *pgxpool.Pool
	files        *repository.KnowledgeRepository
	agents       *repository.AgentRepository
	users        *repository.UserRepository
	entitlements *Entitlements
	queue        Enqueuer
}

// NewKnowledgeService creates a new KnowledgeService.
func NewKnowledgeService(
	pool *pgxpool.Pool,
	files *repository.KnowledgeRepository,
	agents *repository.AgentRepository,
	users *repository.UserRepository,
	entitlements *Entitlements,
	queue Enqueuer,
) *KnowledgeService {
	return &KnowledgeService{
		pool:         pool,
		files:        files,
		agents:       agents,
		users:        users,
		entitlements: entitlements,
		queue:        queue,
	}
}

func (s *KnowledgeService) ownedAgent(ctx context.Context, userID, agentID string) (*domain.Agent, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsOwnedBy(userID) {
		if agent.IsVisibleTo(userID) {
			return nil, fmt.Errorf("%w: agent %s", domain.ErrNotAgentOwner, agentID)
		}
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

func (s *KnowledgeService) ownedFile(ctx context.Context, userID, fileID string) (*domain.KnowledgeFile, error) {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != userID {
		return nil, domain.ErrKnowledgeFileNotFound
	}
	return file, nil
}

// Upload stores a file for the agent and schedules it for processing.
func (s *KnowledgeService) Upload(ctx context.Context, userID, agentID string, in UploadInput) (*domain.KnowledgeFile, error) {
	if len(in.Content) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrValidation)
	}
	if len(in.Content) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, MaxUploadBytes)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	if _, err := ingest.DetectType(name, in.MimeType); err != nil {
		return nil, err
	}

	file := &domain.KnowledgeFile{
		Source:   domain.KnowledgeSourceUpload,
		FileName: name,
		MimeType: in.MimeType,
		Content:  in.Content,
	}
	return s.create(ctx, userID, agentID, file)
}

// AddURL registers a web page for the agent and schedules it for scraping.
func (s *KnowledgeService) AddURL(ctx context.Context, userID, agentID, rawURL string) (*domain.KnowledgeFile, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ingest.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	u, _ := url.Parse(rawURL)

	name := u.Host + u.EscapedPath()
	file := &domain.KnowledgeFile{
		Source:    domain.KnowledgeSourceURL,
		FileName:  strings.TrimSuffix(name, "/"),
		MimeType:  "text/html",
		SourceURL: &rawURL,
	}
	return s.create(ctx, userID, agentID, file)
}

func (s *KnowledgeService) create(ctx context.Context, userID, agentID string, file *domain.KnowledgeFile) (*domain.KnowledgeFile, error) {
	agent, err := s.ownedAgent(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}
	ent, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	file.AgentID = agent.ID
	file.OwnerID = userID
	file.Status = domain.KnowledgeStatusPending

	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.users.LockForUpdate(ctx, tx, userID); err != nil {
			return err
		}
		count, err := s.files.CountFilesByOwner(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := CheckKnowledgeLimit(ent.Plan, count); err != nil {
			return err
		}
		return s.files.CreateFile(ctx, tx, file)
	})
	if err != nil {
		return nil, err
	}
	file.Content = nil

	if err := s.enqueue(ctx, file); err != nil {
		return nil, err
	}

	slog.Info("knowledge file added",
		"file_id", file.ID,
		"agent_id", agentID,
		"source", file.Source,
	)
	return file, nil
}

// enqueue schedules the file; if scheduling fails the file is marked failed so the
// owner can reprocess it.
func (s *KnowledgeService) enqueue(ctx context.Context, file *domain.KnowledgeFile) error {
	err := s.queue.EnqueueKnowledge(ctx, file.ID)
	if err == nil {
		return nil
	}

	msg := "could not schedule processing"
	if uerr := s.files.UpdateStatus(context.WithoutCancel(ctx), file.ID, domain.KnowledgeStatusPending, domain.KnowledgeStatusFailed, &msg); uerr != nil {
		slog.Error("failed to mark unscheduled knowledge file", "file_id", file.ID, "error", uerr)
	}
	return fmt.Errorf("enqueue knowledge file %s: %w", file.ID, err)
}

// ListFiles returns the knowledge files of an owned agent.
func (s *KnowledgeService) ListFiles(ctx context.Context, userID, agentID string) ([]*domain.KnowledgeFile, error) {
	if _, err := s.ownedAgent(ctx, userID, agentID); err != nil {
		return nil, err
	}
	return s.files.ListFiles(ctx, agentID)
}

// Reprocess moves a failed file back to pending and schedules it again.
func (s *KnowledgeService) Reprocess(ctx context.Context, userID, fileID string) (*domain.KnowledgeFile, error) {
	file, err := s.ownedFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if !file.Status.CanTransitionTo(domain.KnowledgeStatusPending) {
		return nil, fmt.Errorf("%w: file %s is %s, only failed files can be reprocessed",
			domain.ErrInvalidKnowledgeState, fileID, file.Status)
	}

	if err := s.files.UpdateStatus(ctx, fileID, domain.KnowledgeStatusFailed, domain.KnowledgeStatusPending, nil); err != nil {
		return nil, err
	}
	file.Status = domain.KnowledgeStatusPending
	file.Error = nil

	if err := s.enqueue(ctx, file); err != nil {
		return nil, err
	}

	slog.Info("knowledge file reprocessing", "file_id", fileID)
	return file, nil
}

// DeleteFile removes a file and its chunks.
func (s *KnowledgeService) DeleteFile(ctx context.Context, userID, fileID string) error {
	if _, err := s.ownedFile(ctx, userID, fileID); err != nil {
		return err
	}
	if err := s.files.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	slog.Info("knowledge file deleted", "file_id", fileID)
	return nil
}
