package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/agentdesk/internal/database"
	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/repository"
)

const (
	minAgentNameLength  = 2
	maxAgentNameLength  = 100
	maxSystemPromptLen  = 20000
	maxDescriptionLen   = 1000
	defaultTemperature  = 0.7
	maxAgentTemperature = 2.0
)

// CreateAgentInput holds fields for a new agent. Zero Model and nil Temperature take defaults.
type CreateAgentInput struct {
	Name         string
	Description  string
	SystemPrompt string
	Model        string
	Temperature  *float64
	Voice        string
	IsPublic     bool
}

// UpdateAgentInput holds optional agent changes; nil fields are left as is.
type UpdateAgentInput struct {
	Name         *string
	Description  *string
	SystemPrompt *string
	Model        *string
	Temperature  *float64
	Voice        *string
	IsPublic     *bool
}

// AgentService manages agents.
type AgentService struct {
	pool         *pgxpool.Pool
	agents       *repository.AgentRepository
	users        *repository.UserRepository
	entitlements *Entitlements
	defaultModel string
}

// NewAgentService creates a new AgentService.
func NewAgentService(
	pool *pgxpool.Pool,
	agents *repository.AgentRepository,
	users *repository.UserRepository,
	entitlements *Entitlements,
	defaultModel string,
) *AgentService {
	return &AgentService{
		pool:         pool,
		agents:       agents,
		users:        users,
		entitlements: entitlements,
		defaultModel: defaultModel,
	}
}

func validateAgent(a *domain.Agent) error {
	n := utf8.RuneCountInString(a.Name)
	if n < minAgentNameLength || n > maxAgentNameLength {
		return fmt.Errorf("%w: name must be %d-%d characters", domain.ErrValidation, minAgentNameLength, maxAgentNameLength)
	}
	if strings.TrimSpace(a.SystemPrompt) == "" {
		return fmt.Errorf("%w: system_prompt is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(a.SystemPrompt) > maxSystemPromptLen {
		return fmt.Errorf("%w: system_prompt exceeds %d characters", domain.ErrValidation, maxSystemPromptLen)
	}
	if utf8.RuneCountInString(a.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", domain.ErrValidation, maxDescriptionLen)
	}
	if a.Temperature < 0 || a.Temperature > maxAgentTemperature {
		return fmt.Errorf("%w: temperature must be between 0 and %.0f", domain.ErrValidation, maxAgentTemperature)
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("%w: model is required", domain.ErrValidation)
	}
	return nil
}

// Create adds an agent for ownerID within the plan's agent limit.
func (s *AgentService) Create(ctx context.Context, ownerID string, in CreateAgentInput) (*domain.Agent, error) {
	agent := &domain.Agent{
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		SystemPrompt: in.SystemPrompt,
		Model:        strings.TrimSpace(in.Model),
		Temperature:  defaultTemperature,
		Voice:        strings.TrimSpace(in.Voice),
		IsPublic:     in.IsPublic,
	}
	if agent.Model == "" {
		agent.Model = s.defaultModel
	}
	if in.Temperature != nil {
		agent.Temperature = *in.Temperature
	}
	if err := validateAgent(agent); err != nil {
		return nil, err
	}

	ent, err := s.entitlements.Resolve(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.users.LockForUpdate(ctx, tx, ownerID); err != nil {
			return err
		}
		count, err := s.agents.CountByOwner(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if err := CheckAgentLimit(ent.Plan, count); err != nil {
			return err
		}
		return s.agents.Create(ctx, tx, agent)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("agent created", "agent_id", agent.ID, "owner_id", ownerID, "model", agent.Model)
	return agent, nil
}

// Get returns an agent the user owns or a public one. Private agents of others
// are reported as not found.
func (s *AgentService) Get(ctx context.Context, userID, agentID string) (*domain.Agent, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsVisibleTo(userID) {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

// GetOwned returns an agent only if userID owns it.
func (s *AgentService) GetOwned(ctx context.Context, userID, agentID string) (*domain.Agent, error) {
	agent, err := s.Get(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: agent %s", domain.ErrNotAgentOwner, agentID)
	}
	return agent, nil
}

// List returns the user's agents, plus public agents when includePublic is set.
func (s *AgentService) List(ctx context.Context, userID string, includePublic bool, limit, offset int) ([]*domain.Agent, int, error) {
	return s.agents.List(ctx, repository.AgentListFilters{
		OwnerID:       userID,
		IncludePublic: includePublic,
		Limit:         limit,
		Offset:        offset,
	})
}

// Update applies changes to an owned agent.
func (s *AgentService) Update(ctx context.Context, userID, agentID string, in UpdateAgentInput) (*domain.Agent, error) {
	agent, err := s.GetOwned(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		agent.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		agent.Description = strings.TrimSpace(*in.Description)
	}
	if in.SystemPrompt != nil {
		agent.SystemPrompt = *in.SystemPrompt
	}
	if in.Model != nil {
		agent.Model = strings.TrimSpace(*in.Model)
	}
	if in.Temperature != nil {
		agent.Temperature = *in.Temperature
	}
	if in.Voice != nil {
		agent.Voice = strings.TrimSpace(*in.Voice)
	}
	if in.IsPublic != nil {
		agent.IsPublic = *in.IsPublic
	}
	if err := validateAgent(agent); err != nil {
		return nil, err
	}

	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, err
	}

	slog.Info("agent updated", "agent_id", agent.ID, "owner_id", userID)
	return agent, nil
}

// Delete removes an owned agent with its conversations and knowledge.
func (s *AgentService) Delete(ctx context.Context, userID, agentID string) error {
	if _, err := s.GetOwned(ctx, userID, agentID); err != nil {
		return err
	}
	if err := s.agents.Delete(ctx, agentID); err != nil {
		return err
	}
	slog.Info("agent deleted", "agent_id", agentID, "owner_id", userID)
	return nil
}
