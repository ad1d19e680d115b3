package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageFilters holds filters for usage statistics queries.
type UsageFilters struct {
	UserID      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	AgentID     *string // Optional: filter by specific agent
}

// AgentUsageResult holds usage counters for a single agent owned by the user.
type AgentUsageResult struct {
	AgentID           string
	AgentName         string
	Conversations     int
	UserMessages      int
	AssistantMessages int
	KnowledgeFiles    int
	KnowledgeChunks   int
}

// UsageRepository aggregates counters for the usage endpoint.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// GetAgentUsage retrieves per-agent counters for the user's agents.
func (r *UsageRepository) GetAgentUsage(ctx context.Context, filters UsageFilters) ([]AgentUsageResult, error) {
	query := `
		SELECT
			a.id,
			a.name,
			(SELECT COUNT(*) FROM conversations c
				WHERE c.agent_id = a.id AND c.created_at >= $2 AND c.created_at <= $3) AS conversations,
			(SELECT COUNT(*) FROM messages m JOIN conversations c ON c.id = m.conversation_id
				WHERE c.agent_id = a.id AND m.role = 'user' AND m.created_at >= $2 AND m.created_at <= $3) AS user_messages,
			(SELECT COUNT(*) FROM messages m JOIN conversations c ON c.id = m.conversation_id
				WHERE c.agent_id = a.id AND m.role = 'assistant' AND m.created_at >= $2 AND m.created_at <= $3) AS assistant_messages,
			(SELECT COUNT(*) FROM knowledge_files f WHERE f.agent_id = a.id) AS knowledge_files,
			(SELECT COUNT(*) FROM knowledge_chunks k WHERE k.agent_id = a.id) AS knowledge_chunks
		FROM agents a
		WHERE a.owner_id = $1
	`

	args := []interface{}{filters.UserID, filters.PeriodStart, filters.PeriodEnd}

	if filters.AgentID != nil {
		query += " AND a.id = $4"
		args = append(args, *filters.AgentID)
	}

	query += " ORDER BY a.name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agent usage: %w", err)
	}
	defer rows.Close()

	results := []AgentUsageResult{}
	for rows.Next() {
		var result AgentUsageResult
		err := rows.Scan(
			&result.AgentID,
			&result.AgentName,
			&result.Conversations,
			&result.UserMessages,
			&result.AssistantMessages,
			&result.KnowledgeFiles,
			&result.KnowledgeChunks,
		)
		if err != nil {
			return nil, fmt.Errorf("scan agent usage: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent usage rows: %w", err)
	}

	return results, nil
}

// KnowledgeStatusCounts returns the number of the user's knowledge files per status.
func (r *UsageRepository) KnowledgeStatusCounts(ctx context.Context, userID string) (map[string]int, error) {
	counts := make(map[string]int)
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM knowledge_files
		WHERE owner_id = $1
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query knowledge status counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}

	return counts, nil
}
