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

var inviteColumns = []string{
	"id", "inviter_id", "email", "agent_id", "token", "status", "accepted_by", "expires_at", "created_at",
}

// InviteRepository handles database operations for invites.
type InviteRepository struct {
	pool *pgxpool.Pool
}

// NewInviteRepository creates a new InviteRepository.
func NewInviteRepository(pool *pgxpool.Pool) *InviteRepository {
	return &InviteRepository{pool: pool}
}

func scanInvite(row pgx.Row) (*domain.Invite, error) {
	var i domain.Invite
	err := row.Scan(&i.ID, &i.InviterID, &i.Email, &i.AgentID, &i.Token, &i.Status, &i.AcceptedBy, &i.ExpiresAt, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("scan invite: %w", err)
	}
	return &i, nil
}

// Create inserts a pending invite.
func (r *InviteRepository) Create(ctx context.Context, invite *domain.Invite) error {
	query, args, err := psql.
		Insert("invites").
		Columns("inviter_id", "email", "agent_id", "token", "status", "expires_at").
		Values(invite.InviterID, invite.Email, invite.AgentID, invite.Token, domain.InviteStatusPending, invite.ExpiresAt).
		Suffix("RETURNING id, status, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for invite: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&invite.ID, &invite.Status, &invite.CreatedAt); err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

// GetByTokenForUpdate locks the invite row inside a transaction.
func (r *InviteRepository) GetByTokenForUpdate(ctx context.Context, tx pgx.Tx, token string) (*domain.Invite, error) {
	query, args, err := psql.
		Select(inviteColumns...).
		From("invites").
		Where(sq.Eq{"token": token}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByTokenForUpdate query: %w", err)
	}
	return scanInvite(tx.QueryRow(ctx, query, args...))
}

// ListByInviter returns invites sent by the user.
func (r *InviteRepository) ListByInviter(ctx context.Context, inviterID string) ([]*domain.Invite, error) {
	query, args, err := psql.
		Select(inviteColumns...).
		From("invites").
		Where(sq.Eq{"inviter_id": inviterID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByInviter query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invites: %w", err)
	}
	defer rows.Close()

	invites := []*domain.Invite{}
	for rows.Next() {
		i, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return invites, nil
}

// HasInvited reports whether inviterID has a non-revoked invite for email.
func (r *InviteRepository) HasInvited(ctx context.Context, inviterID, email string) (bool, error) {
	query, args, err := psql.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("invites").
		Where(sq.Eq{"inviter_id": inviterID}).
		Where("lower(email) = lower(?)", email).
		Where(sq.NotEq{"status": domain.InviteStatusRevoked}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build HasInvited query: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invite: %w", err)
	}
	return exists, nil
}

// MarkAccepted moves a pending invite to accepted within the caller's transaction.
func (r *InviteRepository) MarkAccepted(ctx context.Context, tx pgx.Tx, inviteID, userID string) error {
	query, args, err := psql.
		Update("invites").
		Set("status", domain.InviteStatusAccepted).
		Set("accepted_by", userID).
		Where(sq.Eq{"id": inviteID, "status": domain.InviteStatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkAccepted query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInviteNotAcceptable
	}
	return nil
}

// ExpirePending marks pending invites past their expiry as expired.
func (r *InviteRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := psql.
		Update("invites").
		Set("status", domain.InviteStatusExpired).
		Where(sq.Eq{"status": domain.InviteStatusPending}).
		Where(sq.Lt{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build ExpirePending query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	return tag.RowsAffected(), nil
}
