package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/agentdesk/internal/cache"
	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/repository"
)

// EntitlementCache stores resolved plans per user.
type EntitlementCache interface {
	GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error)
	SetEntitlement(ctx context.Context, userID string, ent *domain.Entitlement) error
	InvalidateEntitlement(ctx context.Context, userIDs ...string) error
}

// RateLimiter counts events per user in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, userID string, limit int, now time.Time) (bool, error)
}

// Entitlements resolves the effective plan of a user.
type Entitlements struct {
	billing *repository.BillingRepository
	cache   EntitlementCache
}

// NewEntitlements creates an Entitlements resolver. cache may be nil.
func NewEntitlements(billing *repository.BillingRepository, cache EntitlementCache) *Entitlements {
	return &Entitlements{billing: billing, cache: cache}
}

// Resolve returns the user's plan. Users without an entitled subscription get the free plan.
func (e *Entitlements) Resolve(ctx context.Context, userID string) (*domain.Entitlement, error) {
	if e.cache != nil {
		ent, err := e.cache.GetEntitlement(ctx, userID)
		if err == nil {
			return ent, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("entitlement cache read failed", "user_id", userID, "error", err)
		}
	}

	ent, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetEntitlement(ctx, userID, ent); err != nil {
			slog.Warn("entitlement cache write failed", "user_id", userID, "error", err)
		}
	}
	return ent, nil
}

func (e *Entitlements) load(ctx context.Context, userID string) (*domain.Entitlement, error) {
	sub, err := e.billing.GetSubscriptionByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	if sub != nil && sub.Status.IsEntitled() {
		plan, err := e.billing.GetPlanByID(ctx, sub.PlanID)
		if err != nil {
			return nil, fmt.Errorf("get plan %s: %w", sub.PlanID, err)
		}
		return &domain.Entitlement{Plan: plan, Subscription: sub}, nil
	}

	plan, err := e.billing.GetPlanByCode(ctx, domain.FreePlanCode)
	if err != nil {
		return nil, fmt.Errorf("get free plan: %w", err)
	}
	return &domain.Entitlement{Plan: plan, Subscription: sub}, nil
}

// Invalidate drops cached entitlements.
func (e *Entitlements) Invalidate(ctx context.Context, userIDs ...string) {
	if e.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := e.cache.InvalidateEntitlement(ctx, userIDs...); err != nil {
		slog.Warn("entitlement cache invalidation failed", "users", len(userIDs), "error", err)
	}
}

// CheckAgentLimit validates that the owner can create one more agent.
func CheckAgentLimit(plan *domain.SubscriptionPlan, current int) error {
	if plan.MaxAgents > 0 && current >= plan.MaxAgents {
		return fmt.Errorf("%w: plan %s allows %d agents", domain.ErrPlanLimitReached, plan.Code, plan.MaxAgents)
	}
	return nil
}

// CheckMessageLimit validates that the user can send one more message this month.
func CheckMessageLimit(plan *domain.SubscriptionPlan, sentThisMonth int) error {
	if plan.MaxMessagesPerMonth > 0 && sentThisMonth >= plan.MaxMessagesPerMonth {
		return fmt.Errorf("%w: plan %s allows %d messages per month", domain.ErrPlanLimitReached, plan.Code, plan.MaxMessagesPerMonth)
	}
	return nil
}

// CheckKnowledgeLimit validates that the owner can add one more knowledge file.
func CheckKnowledgeLimit(plan *domain.SubscriptionPlan, current int) error {
	if plan.MaxKnowledgeFiles > 0 && current >= plan.MaxKnowledgeFiles {
		return fmt.Errorf("%w: plan %s allows %d knowledge files", domain.ErrPlanLimitReached, plan.Code, plan.MaxKnowledgeFiles)
	}
	return nil
}

// MonthStart returns the first instant of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
