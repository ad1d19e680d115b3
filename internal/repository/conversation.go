package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/agentdesk/internal/domain"
)

var conversationColumns = []string{"id", "agent_id", "user_id", "title", "created_at", "updated_at"}

// ConversationRepository handles database operations for conversations.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.AgentID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

// Create inserts a conversation.
func (r *ConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	query, args, err := psql.
		Insert("conversations").
		Columns("agent_id", "user_id", "title").
		Values(conversation.AgentID, conversation.UserID, conversation.Title).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for conversation: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&conversation.ID, &conversation.CreatedAt, &conversation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation by ID.
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	query, args, err := psql.
		Select(conversationColumns...).
		From("conversations").
		Where(sq.Eq{"id": conversationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for conversation %s: %w", conversationID, err)
	}

	return scanConversation(r.pool.QueryRow(ctx, query, args...))
}

// ListByUser returns the user's conversations, most recently active first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, agentID *string, limit, offset int) ([]*domain.Conversation, error) {
	qb := psql.
		Select(conversationColumns...).
		From("conversations").
		Where(sq.Eq{"user_id": userID})
	if agentID != nil {
		qb = qb.Where(sq.Eq{"agent_id": *agentID})
	}

	query, args, err := qb.
		OrderBy("updated_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByUser query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*domain.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return conversations, nil
}

// Touch bumps updated_at and sets the title when it is still empty.
func (r *ConversationRepository) Touch(ctx context.Context, conversationID, title string) error {
	query, args, err := psql.
		Update("conversations").
		Set("updated_at", sq.Expr("NOW()")).
		Set("title", sq.Expr("CASE WHEN title = '' THEN ? ELSE title END", title)).
		Where(sq.Eq{"id": conversationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Touch query for conversation %s: %w", conversationID, err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
