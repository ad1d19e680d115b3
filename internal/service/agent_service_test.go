package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/service"
	"github.com/stretchr/testify/suite"
)

type AgentServiceTestSuite struct {
	dbSuite
	agentService *service.AgentService
}

func (s *AgentServiceTestSuite) SetupSuite() {
	s.dbSuite.SetupSuite()
	s.agentService = service.NewAgentService(s.pool, s.agents, s.users, s.entitlements, "gpt-4o-mini")
}

func (s *AgentServiceTestSuite) TestCreate_Defaults() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")

	agent, err := s.agentService.Create(ctx, owner.ID, service.CreateAgentInput{
		Name:         "  Helpdesk  ",
		SystemPrompt: "Be helpful.",
	})
	s.Require().NoError(err)
	s.Equal("Helpdesk", agent.Name)
	s.Equal("gpt-4o-mini", agent.Model)
	s.InDelta(0.7, agent.Temperature, 1e-9)
	s.NotEmpty(agent.ID)

	stored, err := s.agents.GetByID(ctx, agent.ID)
	s.Require().NoError(err)
	s.Equal(owner.ID, stored.OwnerID)
}

func (s *AgentServiceTestSuite) TestCreate_Validation() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")
	hot := 2.5

	cases := map[string]service.CreateAgentInput{
		"short name":     {Name: "x", SystemPrompt: "p"},
		"missing prompt": {Name: "Agent"},
		"temperature":    {Name: "Agent", SystemPrompt: "p", Temperature: &hot},
	}
	for name, in := range cases {
		_, err := s.agentService.Create(ctx, owner.ID, in)
		s.ErrorIs(err, domain.ErrValidation, name)
	}
}

func (s *AgentServiceTestSuite) TestCreate_PlanLimit() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")

	_, err := s.agentService.Create(ctx, owner.ID, service.CreateAgentInput{Name: "First", SystemPrompt: "p"})
	s.Require().NoError(err)

	_, err = s.agentService.Create(ctx, owner.ID, service.CreateAgentInput{Name: "Second", SystemPrompt: "p"})
	s.ErrorIs(err, domain.ErrPlanLimitReached)

	s.subscribe(owner.ID, "pro", domain.SubscriptionStatusActive)
	_, err = s.agentService.Create(ctx, owner.ID, service.CreateAgentInput{Name: "Second", SystemPrompt: "p"})
	s.NoError(err)
}

// TestCreate_ConcurrentLimit checks that the row lock keeps the count consistent.
func (s *AgentServiceTestSuite) TestCreate_ConcurrentLimit() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.agentService.Create(ctx, owner.ID, service.CreateAgentInput{Name: "Racer", SystemPrompt: "p"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			s.ErrorIs(err, domain.ErrPlanLimitReached)
		}
	}
	s.Equal(1, successCount, "free plan allows exactly one agent")
}

func (s *AgentServiceTestSuite) TestGet_Visibility() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")
	other := s.createUser("other@example.com")
	private := s.createAgent(owner.ID, false)
	public := s.createAgent(owner.ID, true)

	_, err := s.agentService.Get(ctx, other.ID, private.ID)
	s.ErrorIs(err, domain.ErrAgentNotFound)

	got, err := s.agentService.Get(ctx, other.ID, public.ID)
	s.Require().NoError(err)
	s.Equal(public.ID, got.ID)

	_, err = s.agentService.GetOwned(ctx, other.ID, public.ID)
	s.ErrorIs(err, domain.ErrNotAgentOwner)
}

func (s *AgentServiceTestSuite) TestList_IncludePublic() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")
	other := s.createUser("other@example.com")
	s.createAgent(owner.ID, false)
	s.createAgent(other.ID, true)
	s.createAgent(other.ID, false)

	own, total, err := s.agentService.List(ctx, owner.ID, false, 50, 0)
	s.Require().NoError(err)
	s.Len(own, 1)
	s.Equal(1, total)

	all, total, err := s.agentService.List(ctx, owner.ID, true, 50, 0)
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal(2, total)
}

func (s *AgentServiceTestSuite) TestUpdate() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")
	other := s.createUser("other@example.com")
	agent := s.createAgent(owner.ID, false)

	name := "Renamed"
	public := true
	updated, err := s.agentService.Update(ctx, owner.ID, agent.ID, service.UpdateAgentInput{Name: &name, IsPublic: &public})
	s.Require().NoError(err)
	s.Equal("Renamed", updated.Name)
	s.True(updated.IsPublic)
	s.Equal(agent.SystemPrompt, updated.SystemPrompt)

	_, err = s.agentService.Update(ctx, other.ID, agent.ID, service.UpdateAgentInput{Name: &name})
	s.ErrorIs(err, domain.ErrNotAgentOwner)

	empty := ""
	_, err = s.agentService.Update(ctx, owner.ID, agent.ID, service.UpdateAgentInput{SystemPrompt: &empty})
	s.ErrorIs(err, domain.ErrValidation)
}

func (s *AgentServiceTestSuite) TestDelete() {
	ctx := context.Background()
	owner := s.createUser("owner@example.com")
	agent := s.createAgent(owner.ID, false)

	s.Require().NoError(s.agentService.Delete(ctx, owner.ID, agent.ID))

	_, err := s.agents.GetByID(ctx, agent.ID)
	s.ErrorIs(err, domain.ErrAgentNotFound)

	err = s.agentService.Delete(ctx, owner.ID, agent.ID)
	s.ErrorIs(err, domain.ErrAgentNotFound)
}

func TestAgentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AgentServiceTestSuite))
}
