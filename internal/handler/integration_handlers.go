package handler

import (
	"net/http"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/integrations/github"
	"github.com/mtlprog/agentdesk/internal/integrations/linear"
)

// handleConnectIntegration stores a verified access token for a provider.
// @Summary Connect an integration
// @Description Verifies the token with the provider and stores it. Reconnecting replaces the token.
// @Tags integrations
// @Accept json
// @Produce json
// @Param provider path string true "github or linear"
// @Param request body dto.ConnectIntegrationRequest true "Access token"
// @Success 200 {object} dto.IntegrationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /integrations/{provider} [put]
func (h *Handler) handleConnectIntegration(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.ConnectIntegrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	provider := domain.IntegrationProvider(r.PathValue("provider"))
	integration, err := h.integrations.Connect(r.Context(), user.ID, provider, req.AccessToken)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToIntegrationResponse(integration))
}

// handleCreateGitHubRepo creates a repository with the caller's GitHub token.
// @Summary Create a GitHub repository
// @Tags integrations
// @Accept json
// @Produce json
// @Param request body dto.CreateRepoRequest true "Repository"
// @Success 201 {object} dto.RepositoryResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /integrations/github/repos [post]
func (h *Handler) handleCreateGitHubRepo(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateRepoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	repo, err := h.integrations.CreateGitHubRepo(r.Context(), user.ID, github.CreateRepoInput{
		Name:        req.Name,
		Description: req.Description,
		Private:     req.Private,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToRepositoryResponse(repo))
}

// handleCreateLinearIssue files an issue with the caller's Linear key.
// @Summary Create a Linear issue
// @Tags integrations
// @Accept json
// @Produce json
// @Param request body dto.CreateIssueRequest true "Issue"
// @Success 201 {object} dto.IssueResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /integrations/linear/issues [post]
func (h *Handler) handleCreateLinearIssue(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateIssueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issue, err := h.integrations.CreateLinearIssue(r.Context(), user.ID, linear.CreateIssueInput{
		TeamID:      req.TeamID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToIssueResponse(issue))
}
