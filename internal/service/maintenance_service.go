package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/agentdesk/internal/repository"
)

// MaintenanceResult counts rows changed by one maintenance run.
type MaintenanceResult struct {
	StuckFilesFailed     int
	InvitesExpired       int64
	SubscriptionsExpired int
}

// MaintenanceService runs periodic cleanup.
type MaintenanceService struct {
	files        *repository.KnowledgeRepository
	invites      *repository.InviteRepository
	billing      *repository.BillingRepository
	entitlements *Entitlements
	stuckAfter   time.Duration
	now          func() time.Time
}

// NewMaintenanceService creates a new MaintenanceService.
func NewMaintenanceService(
	files *repository.KnowledgeRepository,
	invites *repository.InviteRepository,
	billingRepo *repository.BillingRepository,
	entitlements *Entitlements,
	stuckAfter time.Duration,
) *MaintenanceService {
	return &MaintenanceService{
		files:        files,
		invites:      invites,
		billing:      billingRepo,
		entitlements: entitlements,
		stuckAfter:   stuckAfter,
		now:          time.Now,
	}
}

// Run fails knowledge files stuck in processing, expires stale invites and lapsed
// subscriptions. Every step runs even if an earlier one fails.
func (s *MaintenanceService) Run(ctx context.Context) (*MaintenanceResult, error) {
	now := s.now()
	result := &MaintenanceResult{}
	var errs []error

	failed, err := s.files.FailStuckProcessing(ctx, now.Add(-s.stuckAfter))
	if err != nil {
		errs = append(errs, fmt.Errorf("fail stuck knowledge files: %w", err))
	} else {
		result.StuckFilesFailed = len(failed)
		for _, id := range failed {
			slog.Warn("knowledge file timed out in processing", "file_id", id)
		}
	}

	expired, err := s.invites.ExpirePending(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("expire invites: %w", err))
	} else {
		result.InvitesExpired = expired
	}

	lapsed, err := s.billing.ExpireLapsed(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("expire subscriptions: %w", err))
	} else {
		result.SubscriptionsExpired = len(lapsed)
		s.entitlements.Invalidate(ctx, lapsed...)
	}

	slog.Info("maintenance completed",
		"stuck_files_failed", result.StuckFilesFailed,
		"invites_expired", result.InvitesExpired,
		"subscriptions_expired", result.SubscriptionsExpired,
		"failures", len(errs),
	)

	return result, errors.Join(errs...)
}
