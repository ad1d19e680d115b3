package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/agentdesk/internal/domain"
)

// knowledgeFileColumns omits the raw content; GetFileWithContent loads it on demand.
var knowledgeFileColumns = []string{
	"id", "agent_id", "owner_id", "source", "file_name", "mime_type", "source_url",
	"status", "error", "chunk_count", "created_at", "updated_at",
}

// KnowledgeRepository handles database operations for knowledge files and chunks.
type KnowledgeRepository struct {
	pool *pgxpool.Pool
}

// NewKnowledgeRepository creates a new KnowledgeRepository.
func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{pool: pool}
}

func scanKnowledgeFile(row pgx.Row, withContent bool) (*domain.KnowledgeFile, error) {
	var f domain.KnowledgeFile
	dest := []any{
		&f.ID, &f.AgentID, &f.OwnerID, &f.Source, &f.FileName, &f.MimeType, &f.SourceURL,
		&f.Status, &f.Error, &f.ChunkCount, &f.CreatedAt, &f.UpdatedAt,
	}
	if withContent {
		dest = append(dest, &f.Content)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeFileNotFound
		}
		return nil, fmt.Errorf("scan knowledge file: %w", err)
	}
	return &f, nil
}

// CreateFile inserts a pending knowledge file.
func (r *KnowledgeRepository) CreateFile(ctx context.Context, tx pgx.Tx, file *domain.KnowledgeFile) error {
	if file.Status == "" {
		file.Status = domain.KnowledgeStatusPending
	}

	query, args, err := psql.
		Insert("knowledge_files").
		Columns("agent_id", "owner_id", "source", "file_name", "mime_type", "source_url", "content", "status").
		Values(file.AgentID, file.OwnerID, file.Source, file.FileName, file.MimeType, file.SourceURL, file.Content, file.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build CreateFile query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&file.ID, &file.CreatedAt, &file.UpdatedAt); err != nil {
		return fmt.Errorf("create knowledge file: %w", err)
	}
	return nil
}

// GetFile retrieves file metadata by ID.
func (r *KnowledgeRepository) GetFile(ctx context.Context, fileID string) (*domain.KnowledgeFile, error) {
	query, args, err := psql.
		Select(knowledgeFileColumns...).
		From("knowledge_files").
		Where(sq.Eq{"id": fileID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetFile query for %s: %w", fileID, err)
	}

	return scanKnowledgeFile(r.pool.QueryRow(ctx, query, args...), false)
}

// GetFileWithContent retrieves file metadata and raw bytes.
func (r *KnowledgeRepository) GetFileWithContent(ctx context.Context, fileID string) (*domain.KnowledgeFile, error) {
	columns := append(append([]string{}, knowledgeFileColumns...), "COALESCE(content, ''::bytea)")
	query, args, err := psql.
		Select(columns...).
		From("knowledge_files").
		Where(sq.Eq{"id": fileID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetFileWithContent query for %s: %w", fileID, err)
	}

	return scanKnowledgeFile(r.pool.QueryRow(ctx, query, args...), true)
}

// ListFiles returns all files of an agent, newest first.
func (r *KnowledgeRepository) ListFiles(ctx context.Context, agentID string) ([]*domain.KnowledgeFile, error) {
	query, args, err := psql.
		Select(knowledgeFileColumns...).
		From("knowledge_files").
		Where(sq.Eq{"agent_id": agentID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListFiles query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query knowledge files: %w", err)
	}
	defer rows.Close()

	files := []*domain.KnowledgeFile{}
	for rows.Next() {
		f, err := scanKnowledgeFile(rows, false)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return files, nil
}

// CountFilesByOwner counts knowledge files across all of the user's agents.
func (r *KnowledgeRepository) CountFilesByOwner(ctx context.Context, tx pgx.Tx, ownerID string) (int, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("knowledge_files").
		Where(sq.Eq{"owner_id": ownerID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build CountFilesByOwner query: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count knowledge files: %w", err)
	}
	return count, nil
}

// UpdateStatus moves a file from oldStatus to newStatus with optimistic locking.
// Returns ErrInvalidKnowledgeState if the file is no longer in oldStatus.
func (r *KnowledgeRepository) UpdateStatus(
	ctx context.Context,
	fileID string,
	oldStatus domain.KnowledgeStatus,
	newStatus domain.KnowledgeStatus,
	errMsg *string,
) error {
	query, args, err := psql.
		Update("knowledge_files").
		Set("status", newStatus).
		Set("error", errMsg).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": fileID, "status": oldStatus}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateStatus query for knowledge file %s: %w", fileID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update knowledge file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: file %s is not %s", domain.ErrInvalidKnowledgeState, fileID, oldStatus)
	}
	return nil
}

// ReplaceChunks deletes existing chunks of the file, writes the new ones and marks
// the file completed. Must run inside the caller's transaction.
func (r *KnowledgeRepository) ReplaceChunks(ctx context.Context, tx pgx.Tx, file *domain.KnowledgeFile, chunks []*domain.KnowledgeChunk) error {
	deleteQuery, deleteArgs, err := psql.
		Delete("knowledge_chunks").
		Where(sq.Eq{"file_id": file.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete chunks query: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	if len(chunks) > 0 {
		rows := make([][]any, len(chunks))
		for i, chunk := range chunks {
			rows[i] = []any{file.ID, file.AgentID, chunk.ChunkIndex, chunk.Content, chunk.Embedding}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"knowledge_chunks"},
			[]string{"file_id", "agent_id", "chunk_index", "content", "embedding"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy chunks: %w", err)
		}
	}

	query, args, err := psql.
		Update("knowledge_files").
		Set("status", domain.KnowledgeStatusCompleted).
		Set("chunk_count", len(chunks)).
		Set("error", nil).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": file.ID, "status": domain.KnowledgeStatusProcessing}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete knowledge file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: file %s is no longer processing", domain.ErrInvalidKnowledgeState, file.ID)
	}

	file.Status = domain.KnowledgeStatusCompleted
	file.ChunkCount = len(chunks)
	return nil
}

// DeleteFile removes a file and, through the foreign key, its chunks.
func (r *KnowledgeRepository) DeleteFile(ctx context.Context, fileID string) error {
	query, args, err := psql.Delete("knowledge_files").Where(sq.Eq{"id": fileID}).ToSql()
	if err != nil {
		return fmt.Errorf("build DeleteFile query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete knowledge file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrKnowledgeFileNotFound
	}
	return nil
}

// ListChunks returns the chunks of a file in order.
func (r *KnowledgeRepository) ListChunks(ctx context.Context, fileID string) ([]*domain.KnowledgeChunk, error) {
	query, args, err := psql.
		Select("id", "file_id", "agent_id", "chunk_index", "content", "embedding", "created_at").
		From("knowledge_chunks").
		Where(sq.Eq{"file_id": fileID}).
		OrderBy("chunk_index ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListChunks query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*domain.KnowledgeChunk{}
	for rows.Next() {
		var c domain.KnowledgeChunk
		if err := rows.Scan(&c.ID, &c.FileID, &c.AgentID, &c.ChunkIndex, &c.Content, &c.Embedding, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return chunks, nil
}

// SearchChunks ranks the agent's chunks against text using Postgres full-text search.
func (r *KnowledgeRepository) SearchChunks(ctx context.Context, agentID, text string, limit int) ([]*domain.KnowledgeChunk, error) {
	query, args, err := psql.
		Select("id", "file_id", "agent_id", "chunk_index", "content", "created_at").
		From("knowledge_chunks").
		Where(sq.Eq{"agent_id": agentID}).
		Where("tsv @@ plainto_tsquery('english', ?)", text).
		OrderByClause("ts_rank(tsv, plainto_tsquery('english', ?)) DESC", text).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SearchChunks query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*domain.KnowledgeChunk{}
	for rows.Next() {
		var c domain.KnowledgeChunk
		if err := rows.Scan(&c.ID, &c.FileID, &c.AgentID, &c.ChunkIndex, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return chunks, nil
}

// FailStuckProcessing marks files that stayed in processing since before cutoff as failed.
func (r *KnowledgeRepository) FailStuckProcessing(ctx context.Context, cutoff time.Time) ([]string, error) {
	query, args, err := psql.
		Update("knowledge_files").
		Set("status", domain.KnowledgeStatusFailed).
		Set("error", "processing timed out").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"status": domain.KnowledgeStatusProcessing}).
		Where(sq.Lt{"updated_at": cutoff}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FailStuckProcessing query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fail stuck knowledge files: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect ids: %w", err)
	}
	return ids, nil
}
