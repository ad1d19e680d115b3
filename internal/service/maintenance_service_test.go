package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/service"
	"github.com/stretchr/testify/suite"
)

type MaintenanceServiceTestSuite struct {
	dbSuite
	svc *service.MaintenanceService
}

func (s *MaintenanceServiceTestSuite) SetupSuite() {
	s.dbSuite.SetupSuite()
	s.svc = service.NewMaintenanceService(s.knowledge, s.invites, s.billingRepo, s.entitlements, 30*time.Minute)
}

func (s *MaintenanceServiceTestSuite) TestRun() {
	ctx := context.Background()
	user := s.createUser("owner@example.com")
	agent := s.createAgent(user.ID, false)

	var stuckID, freshID string
	s.Require().NoError(s.pool.QueryRow(ctx, `
		INSERT INTO knowledge_files (agent_id, owner_id, source, file_name, status, updated_at)
		VALUES ($1, $2, 'upload', 'stuck.txt', 'processing', NOW() - INTERVAL '2 hours')
		RETURNING id
	`, agent.ID, user.ID).Scan(&stuckID))
	s.Require().NoError(s.pool.QueryRow(ctx, `
		INSERT INTO knowledge_files (agent_id, owner_id, source, file_name, status)
		VALUES ($1, $2, 'upload', 'fresh.txt', 'processing')
		RETURNING id
	`, agent.ID, user.ID).Scan(&freshID))

	_, err := s.pool.Exec(ctx, `
		INSERT INTO invites (inviter_id, email, token, expires_at)
		VALUES ($1, 'old@example.com', 'tok-old', NOW() - INTERVAL '1 day'),
		       ($1, 'new@example.com', 'tok-new', NOW() + INTERVAL '1 day')
	`, user.ID)
	s.Require().NoError(err)

	s.subscribe(user.ID, "pro", domain.SubscriptionStatusActive)
	_, err = s.pool.Exec(ctx, `UPDATE user_subscriptions SET current_period_end = NOW() - INTERVAL '1 day' WHERE user_id = $1`, user.ID)
	s.Require().NoError(err)

	result, err := s.svc.Run(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.StuckFilesFailed)
	s.Equal(int64(1), result.InvitesExpired)
	s.Equal(1, result.SubscriptionsExpired)

	stuck, err := s.knowledge.GetFile(ctx, stuckID)
	s.Require().NoError(err)
	s.Equal(domain.KnowledgeStatusFailed, stuck.Status)

	fresh, err := s.knowledge.GetFile(ctx, freshID)
	s.Require().NoError(err)
	s.Equal(domain.KnowledgeStatusProcessing, fresh.Status)

	ent, err := s.entitlements.Resolve(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(domain.FreePlanCode, ent.Plan.Code)

	// A second run finds nothing to do.
	result, err = s.svc.Run(ctx)
	s.Require().NoError(err)
	s.Zero(result.StuckFilesFailed)
	s.Zero(result.InvitesExpired)
	s.Zero(result.SubscriptionsExpired)
}

func TestMaintenanceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MaintenanceServiceTestSuite))
}
