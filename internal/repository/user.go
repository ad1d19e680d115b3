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

var userColumns = []string{"id", "email", "name", "api_token", "stripe_customer_id", "is_active", "created_at"}

// UserRepository handles database operations for users.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.APIToken,
		&user.StripeCustomerID,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// GetByToken finds a user by API token.
func (r *UserRepository) GetByToken(ctx context.Context, token string) (*domain.User, error) {
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"api_token": token}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByToken query: %w", err)
	}

	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for user %s: %w", userID, err)
	}

	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// GetByStripeCustomerID retrieves the user linked to a Stripe customer.
func (r *UserRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"stripe_customer_id": customerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByStripeCustomerID query: %w", err)
	}

	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// SetStripeCustomerID stores the Stripe customer created for the user.
func (r *UserRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	query, args, err := psql.
		Update("users").
		Set("stripe_customer_id", customerID).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build SetStripeCustomerID query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update stripe customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// LockForUpdate takes a row lock on the user for the rest of tx. Quota checks use it
// to serialize concurrent creates by the same owner.
func (r *UserRepository) LockForUpdate(ctx context.Context, tx pgx.Tx, userID string) error {
	query, args, err := psql.
		Select("id").
		From("users").
		Where(sq.Eq{"id": userID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build LockForUpdate query: %w", err)
	}

	var id string
	if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}
