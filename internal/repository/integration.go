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

// IntegrationRepository stores third-party access tokens per user.
type IntegrationRepository struct {
	pool *pgxpool.Pool
}

// NewIntegrationRepository creates a new IntegrationRepository.
func NewIntegrationRepository(pool *pgxpool.Pool) *IntegrationRepository {
	return &IntegrationRepository{pool: pool}
}

// Upsert stores or replaces the token for (user, provider).
func (r *IntegrationRepository) Upsert(ctx context.Context, integration *domain.Integration) error {
	query, args, err := psql.
		Insert("integrations").
		Columns("user_id", "provider", "access_token", "external_account").
		Values(integration.UserID, integration.Provider, integration.AccessToken, integration.ExternalAccount).
		Suffix(`ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			external_account = EXCLUDED.external_account,
			updated_at = NOW()
			RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Upsert query for integration: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&integration.ID, &integration.CreatedAt, &integration.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert integration: %w", err)
	}
	return nil
}

// Get returns the user's integration for a provider.
func (r *IntegrationRepository) Get(ctx context.Context, userID string, provider domain.IntegrationProvider) (*domain.Integration, error) {
	query, args, err := psql.
		Select("id", "user_id", "provider", "access_token", "external_account", "created_at", "updated_at").
		From("integrations").
		Where(sq.Eq{"user_id": userID, "provider": provider}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Get query for integration: %w", err)
	}

	var i domain.Integration
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&i.ID, &i.UserID, &i.Provider, &i.AccessToken, &i.ExternalAccount, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("query integration: %w", err)
	}
	return &i, nil
}
