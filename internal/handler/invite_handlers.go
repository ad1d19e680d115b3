package handler

import (
	"log/slog"
	"net/http"

	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/service"
)

// handleCreateInvite invites someone by email, optionally to one of the caller's agents.
// @Summary Create an invite
// @Description The invite is stored even when the email cannot be sent; email_sent reports delivery.
// @Tags invites
// @Accept json
// @Produce json
// @Param request body dto.CreateInviteRequest true "Invite"
// @Success 201 {object} dto.CreateInviteResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /invites [post]
func (h *Handler) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AgentID != nil && !isUUID(*req.AgentID) {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "agent_id must be a valid UUID")
		return
	}

	invite, err := h.invites.Create(r.Context(), user, req.Email, req.AgentID)
	if err != nil && invite == nil {
		respondDomainError(w, err)
		return
	}
	if err != nil {
		slog.Warn("invite stored but email not sent", "invite_id", invite.ID, "error", err)
	}

	respondJSON(w, http.StatusCreated, dto.CreateInviteResponse{
		Invite:    dto.ToInviteResponse(invite, true),
		EmailSent: err == nil && h.invites.MailerConfigured(),
	})
}

// handleListInvites lists invites sent by the caller.
// @Summary List invites
// @Tags invites
// @Produce json
// @Success 200 {object} dto.InvitesListResponse
// @Security BearerAuth
// @Router /invites [get]
func (h *Handler) handleListInvites(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	invites, err := h.invites.List(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.InvitesListResponse{Invites: make([]dto.InviteResponse, 0, len(invites))}
	for _, i := range invites {
		resp.Invites = append(resp.Invites, dto.ToInviteResponse(i, true))
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleAcceptInvite accepts a pending invite.
// @Summary Accept an invite
// @Tags invites
// @Produce json
// @Param token path string true "Invite token"
// @Success 200 {object} dto.InviteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /invites/{token}/accept [post]
func (h *Handler) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	invite, err := h.invites.Accept(r.Context(), user.ID, r.PathValue("token"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToInviteResponse(invite, false))
}

// handleSendEmail sends a plain-text email through SES.
// @Summary Send an email
// @Description Recipients are limited to the caller's own address and people the caller invited.
// @Tags invites
// @Accept json
// @Produce json
// @Param request body dto.SendEmailRequest true "Email"
// @Success 202 {object} dto.EmailResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /email [post]
func (h *Handler) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.SendEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	messageID, err := h.invites.SendEmail(r.Context(), user, service.EmailInput{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dto.EmailResponse{MessageID: messageID})
}
