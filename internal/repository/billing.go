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

var planColumns = []string{
	"id", "code", "name", "stripe_price_id", "price_cents",
	"max_agents", "max_messages_per_month", "max_knowledge_files", "created_at",
}

var subscriptionColumns = []string{
	"id", "user_id", "plan_id", "stripe_subscription_id", "status",
	"current_period_end", "created_at", "updated_at",
}

// BillingRepository handles plans, subscriptions and payouts.
type BillingRepository struct {
	pool *pgxpool.Pool
}

// NewBillingRepository creates a new BillingRepository.
func NewBillingRepository(pool *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{pool: pool}
}

func scanPlan(row pgx.Row) (*domain.SubscriptionPlan, error) {
	var p domain.SubscriptionPlan
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.StripePriceID, &p.PriceCents,
		&p.MaxAgents, &p.MaxMessagesPerMonth, &p.MaxKnowledgeFiles, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return &p, nil
}

func scanSubscription(row pgx.Row) (*domain.UserSubscription, error) {
	var s domain.UserSubscription
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.StripeSubscriptionID, &s.Status,
		&s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}

// ListPlans returns all plans ordered by price.
func (r *BillingRepository) ListPlans(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	query, args, err := psql.Select(planColumns...).From("subscription_plans").OrderBy("price_cents ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListPlans query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []*domain.SubscriptionPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return plans, nil
}

// GetPlanByCode retrieves a plan by its code.
func (r *BillingRepository) GetPlanByCode(ctx context.Context, code string) (*domain.SubscriptionPlan, error) {
	query, args, err := psql.Select(planColumns...).From("subscription_plans").Where(sq.Eq{"code": code}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetPlanByCode query: %w", err)
	}
	return scanPlan(r.pool.QueryRow(ctx, query, args...))
}

// GetPlanByID retrieves a plan by ID.
func (r *BillingRepository) GetPlanByID(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	query, args, err := psql.Select(planColumns...).From("subscription_plans").Where(sq.Eq{"id": planID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetPlanByID query: %w", err)
	}
	return scanPlan(r.pool.QueryRow(ctx, query, args...))
}

// GetPlanByStripePrice resolves a plan from a Stripe price ID.
func (r *BillingRepository) GetPlanByStripePrice(ctx context.Context, priceID string) (*domain.SubscriptionPlan, error) {
	query, args, err := psql.Select(planColumns...).From("subscription_plans").Where(sq.Eq{"stripe_price_id": priceID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetPlanByStripePrice query: %w", err)
	}
	return scanPlan(r.pool.QueryRow(ctx, query, args...))
}

// GetSubscriptionByUser returns the user's subscription row.
func (r *BillingRepository) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	query, args, err := psql.Select(subscriptionColumns...).From("user_subscriptions").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetSubscriptionByUser query: %w", err)
	}
	return scanSubscription(r.pool.QueryRow(ctx, query, args...))
}

// GetSubscriptionByStripeID finds a subscription by its Stripe ID.
func (r *BillingRepository) GetSubscriptionByStripeID(ctx context.Context, stripeID string) (*domain.UserSubscription, error) {
	query, args, err := psql.Select(subscriptionColumns...).From("user_subscriptions").Where(sq.Eq{"stripe_subscription_id": stripeID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetSubscriptionByStripeID query: %w", err)
	}
	return scanSubscription(r.pool.QueryRow(ctx, query, args...))
}

// UpsertSubscription writes the user's single subscription row.
func (r *BillingRepository) UpsertSubscription(ctx context.Context, sub *domain.UserSubscription) error {
	query, args, err := psql.
		Insert("user_subscriptions").
		Columns("user_id", "plan_id", "stripe_subscription_id", "status", "current_period_end").
		Values(sub.UserID, sub.PlanID, sub.StripeSubscriptionID, sub.Status, sub.CurrentPeriodEnd).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()
			RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpsertSubscription query: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus sets status and period end by Stripe subscription ID.
func (r *BillingRepository) UpdateSubscriptionStatus(ctx context.Context, stripeID string, status domain.SubscriptionStatus, periodEnd *time.Time) (*domain.UserSubscription, error) {
	query, args, err := psql.
		Update("user_subscriptions").
		Set("status", status).
		Set("current_period_end", periodEnd).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"stripe_subscription_id": stripeID}).
		Suffix("RETURNING " + joinColumns(subscriptionColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build UpdateSubscriptionStatus query: %w", err)
	}
	return scanSubscription(r.pool.QueryRow(ctx, query, args...))
}

// ExpireLapsed marks entitled subscriptions whose period ended before now as expired.
// Returns the affected user IDs.
func (r *BillingRepository) ExpireLapsed(ctx context.Context, now time.Time) ([]string, error) {
	query, args, err := psql.
		Update("user_subscriptions").
		Set("status", domain.SubscriptionStatusExpired).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"status": []domain.SubscriptionStatus{
			domain.SubscriptionStatusActive,
			domain.SubscriptionStatusTrialing,
			domain.SubscriptionStatusPastDue,
		}}).
		Where(sq.Lt{"current_period_end": now}).
		Suffix("RETURNING user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ExpireLapsed query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expire subscriptions: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// CreatePayout records a pending payout.
func (r *BillingRepository) CreatePayout(ctx context.Context, payout *domain.Payout) error {
	query, args, err := psql.
		Insert("payouts").
		Columns("user_id", "amount_cents", "currency", "destination_account", "status").
		Values(payout.UserID, payout.AmountCents, payout.Currency, payout.DestinationAccount, domain.PayoutStatusPending).
		Suffix("RETURNING id, status, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build CreatePayout query: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&payout.ID, &payout.Status, &payout.CreatedAt); err != nil {
		return fmt.Errorf("create payout: %w", err)
	}
	return nil
}

// FinishPayout moves a pending payout to paid or failed.
func (r *BillingRepository) FinishPayout(ctx context.Context, payoutID string, status domain.PayoutStatus, transferID *string) error {
	query, args, err := psql.
		Update("payouts").
		Set("status", status).
		Set("stripe_transfer_id", transferID).
		Where(sq.Eq{"id": payoutID, "status": domain.PayoutStatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build FinishPayout query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("finish payout: %w", err)
	}
	return nil
}
