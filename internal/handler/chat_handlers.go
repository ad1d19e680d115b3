package handler

import (
	"log/slog"
	"net/http"

	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/service"
)

// handleStartConversation opens a conversation with an agent.
// @Summary Start a conversation
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.StartConversationRequest true "Agent to talk to"
// @Success 201 {object} dto.ConversationResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /conversations [post]
func (h *Handler) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.StartConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !isUUID(req.AgentID) {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "agent_id must be a valid UUID")
		return
	}

	conversation, err := h.chat.StartConversation(r.Context(), user.ID, req.AgentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToConversationResponse(conversation))
}

// handleListConversations lists the caller's conversations, most recent first.
// @Summary List conversations
// @Tags chat
// @Produce json
// @Param agent_id query string false "Filter by agent"
// @Param limit query int false "Page size (1-200, default 50)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.ConversationsListResponse
// @Security BearerAuth
// @Router /conversations [get]
func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := queryUUID(w, r, "agent_id")
	if !ok {
		return
	}
	limit, offset := pagination(r)

	conversations, err := h.chat.ListConversations(r.Context(), user.ID, agentID, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.ConversationsListResponse{
		Conversations: make([]dto.ConversationResponse, 0, len(conversations)),
		Limit:         limit,
		Offset:        offset,
	}
	for _, c := range conversations {
		resp.Conversations = append(resp.Conversations, dto.ToConversationResponse(c))
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleGetConversation returns a conversation with its transcript.
// @Summary Get a conversation
// @Tags chat
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} dto.ConversationDetailResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /conversations/{id} [get]
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	conversationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	conversation, messages, err := h.chat.GetConversation(r.Context(), user.ID, conversationID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.ConversationDetailResponse{
		Conversation: dto.ToConversationResponse(conversation),
		Messages:     make([]dto.MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, dto.ToMessageResponse(m))
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleSendMessage sends a user message and relays the agent reply.
// @Summary Send a message
// @Description With stream=true the reply is sent as server-sent events: "token" events carry
// @Description text chunks, then a single "done" event with the stored message id, or an "error" event.
// @Tags chat
// @Accept json
// @Produce json
// @Produce text/event-stream
// @Param id path string true "Conversation ID"
// @Param request body dto.SendMessageRequest true "Message"
// @Success 201 {object} dto.SendMessageResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /conversations/{id}/messages [post]
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	conversationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Rejections are plain JSON errors; nothing has been written yet.
	prepared, err := h.chat.Prepare(ctx, user.ID, conversationID, req.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if !req.Stream {
		result, err := h.chat.Run(ctx, prepared, nil)
		if err != nil {
			if service.IsClientGone(err) {
				return
			}
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, dto.SendMessageResponse{
			UserMessage:      dto.ToMessageResponse(result.UserMessage),
			AssistantMessage: dto.ToMessageResponse(result.AssistantMessage),
		})
		return
	}

	sse := newSSEWriter(w)
	var writeErr error
	result, err := h.chat.Run(ctx, prepared, func(chunk string) error {
		if err := sse.send(dto.StreamEvent{Type: "token", Content: chunk}); err != nil {
			writeErr = err
			return err
		}
		return nil
	})
	if err != nil {
		if writeErr != nil || service.IsClientGone(err) {
			slog.Info("stream client went away", "conversation_id", conversationID, "error", err)
			return
		}
		_, code, message := dto.MapDomainError(err)
		_ = sse.send(dto.StreamEvent{Type: "error", Code: code, Message: message})
		return
	}

	_ = sse.send(dto.StreamEvent{Type: "done", MessageID: result.AssistantMessage.ID})
}
