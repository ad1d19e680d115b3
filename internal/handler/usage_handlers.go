package handler

import (
	"net/http"

	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/service"
)

// handleGetUsage returns usage statistics for the caller.
// @Summary Get usage statistics
// @Description Per-agent conversation and message counts for the period, plus plan consumption.
// @Tags usage
// @Produce json
// @Param period query string false "day, week (default), month or all"
// @Param agent_id query string false "Restrict to one agent"
// @Success 200 {object} dto.UsageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /usage [get]
func (h *Handler) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := queryUUID(w, r, "agent_id")
	if !ok {
		return
	}

	period := service.UsagePeriod(r.URL.Query().Get("period"))
	report, err := h.usage.Report(r.Context(), user.ID, period, agentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToUsageResponse(report))
}
