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

// agentColumns is the shared list of columns for agent queries.
var agentColumns = []string{
	"id", "owner_id", "name", "description", "system_prompt", "model",
	"temperature", "voice", "is_public", "created_at", "updated_at",
}

// AgentRepository handles database operations for agents.
type AgentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

// scanAgent scans a single row into an Agent struct.
func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	err := row.Scan(
		&agent.ID,
		&agent.OwnerID,
		&agent.Name,
		&agent.Description,
		&agent.SystemPrompt,
		&agent.Model,
		&agent.Temperature,
		&agent.Voice,
		&agent.IsPublic,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	return &agent, nil
}

func scanAgents(rows pgx.Rows) ([]*domain.Agent, error) {
	defer rows.Close()

	agents := []*domain.Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return agents, nil
}

// Create inserts a new agent and populates ID and timestamps.
func (r *AgentRepository) Create(ctx context.Context, tx pgx.Tx, agent *domain.Agent) error {
	query, args, err := psql.
		Insert("agents").
		Columns("owner_id", "name", "description", "system_prompt", "model", "temperature", "voice", "is_public").
		Values(agent.OwnerID, agent.Name, agent.Description, agent.SystemPrompt,
			agent.Model, agent.Temperature, agent.Voice, agent.IsPublic).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for agent: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetByID retrieves an agent by ID.
func (r *AgentRepository) GetByID(ctx context.Context, agentID string) (*domain.Agent, error) {
	query, args, err := psql.
		Select(agentColumns...).
		From("agents").
		Where(sq.Eq{"id": agentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for agent %s: %w", agentID, err)
	}

	return scanAgent(r.pool.QueryRow(ctx, query, args...))
}

// AgentListFilters holds filters for agent listing.
type AgentListFilters struct {
	OwnerID       string
	IncludePublic bool
	Limit         int
	Offset        int
}

// List returns agents owned by the user, optionally including public agents of others.
func (r *AgentRepository) List(ctx context.Context, filters AgentListFilters) ([]*domain.Agent, int, error) {
	var cond sq.Sqlizer = sq.Eq{"owner_id": filters.OwnerID}
	if filters.IncludePublic {
		cond = sq.Or{sq.Eq{"owner_id": filters.OwnerID}, sq.Eq{"is_public": true}}
	}

	query, args, err := psql.
		Select(agentColumns...).
		From("agents").
		Where(cond).
		OrderBy("created_at DESC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build List query for agents: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query agents: %w", err)
	}
	agents, err := scanAgents(rows)
	if err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("agents").Where(cond).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count agents: %w", err)
	}

	return agents, total, nil
}

// CountByOwner returns how many agents the user owns.
func (r *AgentRepository) CountByOwner(ctx context.Context, tx pgx.Tx, ownerID string) (int, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("agents").
		Where(sq.Eq{"owner_id": ownerID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build CountByOwner query: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return count, nil
}

// Update persists mutable agent fields.
func (r *AgentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	query, args, err := psql.
		Update("agents").
		Set("name", agent.Name).
		Set("description", agent.Description).
		Set("system_prompt", agent.SystemPrompt).
		Set("model", agent.Model).
		Set("temperature", agent.Temperature).
		Set("voice", agent.Voice).
		Set("is_public", agent.IsPublic).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": agent.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for agent %s: %w", agent.ID, err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&agent.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAgentNotFound
		}
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// Delete removes an agent; conversations and knowledge cascade.
func (r *AgentRepository) Delete(ctx context.Context, agentID string) error {
	query, args, err := psql.Delete("agents").Where(sq.Eq{"id": agentID}).ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for agent %s: %w", agentID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}
