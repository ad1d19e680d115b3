package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/integrations/github"
	"github.com/mtlprog/agentdesk/internal/integrations/linear"
	"github.com/mtlprog/agentdesk/internal/repository"
)

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// GitHubAPI is the GitHub client surface used by the service.
type GitHubAPI interface {
	Login(ctx context.Context, token string) (string, error)
	CreateRepository(ctx context.Context, token string, in github.CreateRepoInput) (*github.Repository, error)
}

// LinearAPI is the Linear client surface used by the service.
type LinearAPI interface {
	Viewer(ctx context.Context, token string) (string, error)
	CreateIssue(ctx context.Context, token string, in linear.CreateIssueInput) (*linear.Issue, error)
}

// IntegrationService stores provider tokens and performs actions with them.
type IntegrationService struct {
	integrations *repository.IntegrationRepository
	github       GitHubAPI
	linear       LinearAPI
}

// NewIntegrationService creates a new IntegrationService.
func NewIntegrationService(integrations *repository.IntegrationRepository, gh GitHubAPI, lin LinearAPI) *IntegrationService {
	return &IntegrationService{integrations: integrations, github: gh, linear: lin}
}

// Connect verifies the token with the provider and stores it.
func (s *IntegrationService) Connect(ctx context.Context, userID string, provider domain.IntegrationProvider, token string) (*domain.Integration, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: access_token is required", domain.ErrValidation)
	}

	var (
		account string
		err     error
	)
	switch provider {
	case domain.IntegrationGitHub:
		account, err = s.github.Login(ctx, token)
	case domain.IntegrationLinear:
		account, err = s.linear.Viewer(ctx, token)
	}
	if err != nil {
		return nil, err
	}

	integration := &domain.Integration{
		UserID:          userID,
		Provider:        provider,
		AccessToken:     token,
		ExternalAccount: account,
	}
	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return nil, err
	}

	slog.Info("integration connected", "user_id", userID, "provider", provider, "account", account)
	return integration, nil
}

// CreateGitHubRepo creates a repository with the user's stored GitHub token.
func (s *IntegrationService) CreateGitHubRepo(ctx context.Context, userID string, in github.CreateRepoInput) (*github.Repository, error) {
	in.Name = strings.TrimSpace(in.Name)
	if !repoNamePattern.MatchString(in.Name) {
		return nil, fmt.Errorf("%w: name may contain letters, digits, '.', '-' and '_' only", domain.ErrValidation)
	}

	integration, err := s.integrations.Get(ctx, userID, domain.IntegrationGitHub)
	if err != nil {
		return nil, err
	}

	repo, err := s.github.CreateRepository(ctx, integration.AccessToken, in)
	if err != nil {
		return nil, err
	}

	slog.Info("github repository created", "user_id", userID, "repo", repo.FullName)
	return repo, nil
}

// CreateLinearIssue files an issue with the user's stored Linear token.
func (s *IntegrationService) CreateLinearIssue(ctx context.Context, userID string, in linear.CreateIssueInput) (*linear.Issue, error) {
	in.TeamID = strings.TrimSpace(in.TeamID)
	in.Title = strings.TrimSpace(in.Title)
	if in.TeamID == "" || in.Title == "" {
		return nil, fmt.Errorf("%w: team_id and title are required", domain.ErrValidation)
	}

	integration, err := s.integrations.Get(ctx, userID, domain.IntegrationLinear)
	if err != nil {
		return nil, err
	}

	issue, err := s.linear.CreateIssue(ctx, integration.AccessToken, in)
	if err != nil {
		return nil, err
	}

	slog.Info("linear issue created", "user_id", userID, "issue", issue.Identifier)
	return issue, nil
}
