package handler

import (
	"net/http"

	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/service"
)

// handleCreateAgent creates a new agent.
// @Summary Create an agent
// @Description Creates an agent owned by the caller. Model and temperature default when omitted.
// @Tags agents
// @Accept json
// @Produce json
// @Param request body dto.CreateAgentRequest true "Agent creation request"
// @Success 201 {object} dto.AgentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents [post]
func (h *Handler) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	agent, err := h.agents.Create(r.Context(), user.ID, service.CreateAgentInput{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Temperature:  req.Temperature,
		Voice:        req.Voice,
		IsPublic:     req.IsPublic,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToAgentResponse(agent, user.ID))
}

// handleListAgents lists the caller's agents.
// @Summary List agents
// @Description Lists agents owned by the caller. With public=true, public agents of other users are included.
// @Tags agents
// @Produce json
// @Param public query bool false "Include public agents"
// @Param limit query int false "Page size (1-200, default 50)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.AgentsListResponse
// @Security BearerAuth
// @Router /agents [get]
func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	includePublic := r.URL.Query().Get("public") == "true"

	agents, total, err := h.agents.List(r.Context(), user.ID, includePublic, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.AgentsListResponse{
		Agents: make([]dto.AgentResponse, 0, len(agents)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, a := range agents {
		resp.Agents = append(resp.Agents, dto.ToAgentResponse(a, user.ID))
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleGetAgent returns one agent.
// @Summary Get an agent
// @Description Returns an agent owned by the caller or a public agent. The system prompt is shown to the owner only.
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID"
// @Success 200 {object} dto.AgentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents/{id} [get]
func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	agent, err := h.agents.Get(r.Context(), user.ID, agentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToAgentResponse(agent, user.ID))
}

// handleUpdateAgent applies a partial update.
// @Summary Update an agent
// @Tags agents
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Param request body dto.UpdateAgentRequest true "Fields to change"
// @Success 200 {object} dto.AgentResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents/{id} [patch]
func (h *Handler) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.UpdateAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	agent, err := h.agents.Update(r.Context(), user.ID, agentID, service.UpdateAgentInput{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Temperature:  req.Temperature,
		Voice:        req.Voice,
		IsPublic:     req.IsPublic,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToAgentResponse(agent, user.ID))
}

// handleDeleteAgent deletes an agent with its conversations and knowledge.
// @Summary Delete an agent
// @Tags agents
// @Param id path string true "Agent ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents/{id} [delete]
func (h *Handler) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.agents.Delete(r.Context(), user.ID, agentID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
