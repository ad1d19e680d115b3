package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/agentdesk/internal/domain"
)

var messageColumns = []string{"id", "conversation_id", "role", "content", "token_count", "created_at"}

// MessageRepository handles database operations for transcript messages.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessages(rows pgx.Rows) ([]*domain.Message, error) {
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.TokenCount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return messages, nil
}

// Create appends a message to a conversation.
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	query, args, err := psql.
		Insert("messages").
		Columns("conversation_id", "role", "content", "token_count").
		Values(message.ConversationID, message.Role, message.Content, message.TokenCount).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for message: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&message.ID, &message.CreatedAt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListByConversation returns the full transcript in chronological order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	query, args, err := psql.
		Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByConversation query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return scanMessages(rows)
}

// ListRecent returns the last limit messages in chronological order.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	query, args, err := psql.
		Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListRecent query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// CountUserMessagesSince counts messages the user sent across all conversations.
func (r *MessageRepository) CountUserMessagesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("messages m").
		Join("conversations c ON c.id = m.conversation_id").
		Where(sq.Eq{"c.user_id": userID, "m.role": domain.MessageRoleUser}).
		Where(sq.GtOrEq{"m.created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build CountUserMessagesSince query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return count, nil
}
