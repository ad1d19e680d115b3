package service_test

import (
	"context"
	"testing"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/service"
	"github.com/stretchr/testify/suite"
)

type UsageServiceTestSuite struct {
	dbSuite
	svc *service.UsageService
}

func (s *UsageServiceTestSuite) SetupSuite() {
	s.dbSuite.SetupSuite()
	s.svc = service.NewUsageService(s.usage, s.messages, s.entitlements)
}

func (s *UsageServiceTestSuite) TestReport() {
	ctx := context.Background()
	user := s.createUser("owner@example.com")
	agent := s.createAgent(user.ID, false)
	other := s.createAgent(user.ID, true)

	var convID string
	s.Require().NoError(s.pool.QueryRow(ctx,
		`INSERT INTO conversations (agent_id, user_id) VALUES ($1, $2) RETURNING id`, agent.ID, user.ID).Scan(&convID))
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (conversation_id, role, content)
		VALUES ($1, 'user', 'q1'), ($1, 'assistant', 'a1'), ($1, 'user', 'q2')
	`, convID)
	s.Require().NoError(err)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO knowledge_files (agent_id, owner_id, source, file_name, status)
		VALUES ($1, $2, 'upload', 'a.txt', 'completed'), ($1, $2, 'upload', 'b.txt', 'failed')
	`, agent.ID, user.ID)
	s.Require().NoError(err)

	report, err := s.svc.Report(ctx, user.ID, service.UsagePeriodDay, nil)
	s.Require().NoError(err)
	s.Len(report.Agents, 2)
	s.Equal(1, report.TotalConversations)
	s.Equal(2, report.TotalUserMessages)
	s.Equal(1, report.TotalReplies)
	s.Equal(2, report.MessagesThisMonth)
	s.Equal(2, report.KnowledgeFileCount)
	s.Equal(1, report.KnowledgeByStatus["failed"])
	s.Equal(domain.FreePlanCode, report.Entitlement.Plan.Code)

	report, err = s.svc.Report(ctx, user.ID, service.UsagePeriodAll, &other.ID)
	s.Require().NoError(err)
	s.Require().Len(report.Agents, 1)
	s.Zero(report.TotalConversations)

	_, err = s.svc.Report(ctx, user.ID, "year", nil)
	s.ErrorIs(err, domain.ErrValidation)
}

func TestUsageServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UsageServiceTestSuite))
}
