package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/agentdesk/internal/realtime"
)

// handleRealtime upgrades to a websocket and relays a voice session with an agent.
// @Summary Realtime voice session
// @Description Websocket relay to the realtime model. Browsers may pass the API token as ?token=.
// @Tags realtime
// @Param agent_id query string true "Agent ID"
// @Success 101
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /realtime [get]
func (h *Handler) handleRealtime(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if h.relay == nil {
		respondError(w, http.StatusServiceUnavailable, "REALTIME_NOT_CONFIGURED", "Realtime voice is not configured")
		return
	}

	agentID := r.URL.Query().Get("agent_id")
	if !isUUID(agentID) {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "agent_id must be a valid UUID")
		return
	}

	agent, err := h.agents.Get(r.Context(), user.ID, agentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// Chat models cannot serve voice sessions.
	model := h.realtimeModel
	if strings.Contains(agent.Model, "realtime") {
		model = agent.Model
	}

	// After the upgrade errors can only be logged.
	err = h.relay.Serve(w, r, realtime.Session{
		UserID:       user.ID,
		AgentID:      agent.ID,
		Model:        model,
		Instructions: agent.SystemPrompt,
		Voice:        agent.Voice,
	})
	if err != nil {
		slog.Warn("realtime session ended with error", "agent_id", agent.ID, "user_id", user.ID, "error", err)
	}
}
