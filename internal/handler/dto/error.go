package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mtlprog/agentdesk/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	switch {
	// Auth errors
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", message
	case errors.Is(err, domain.ErrUserInactive):
		return http.StatusUnauthorized, "USER_INACTIVE", message
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", message

	// Agent and conversation errors
	case errors.Is(err, domain.ErrAgentNotFound):
		return http.StatusNotFound, "AGENT_NOT_FOUND", message
	case errors.Is(err, domain.ErrNotAgentOwner):
		return http.StatusForbidden, "INSUFFICIENT_ACCESS", message
	case errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound, "CONVERSATION_NOT_FOUND", message
	case errors.Is(err, domain.ErrNotConversationOwner):
		return http.StatusForbidden, "INSUFFICIENT_ACCESS", message

	// Knowledge errors
	case errors.Is(err, domain.ErrKnowledgeFileNotFound):
		return http.StatusNotFound, "KNOWLEDGE_FILE_NOT_FOUND", message
	case errors.Is(err, domain.ErrInvalidKnowledgeState):
		return http.StatusConflict, "INVALID_KNOWLEDGE_STATE", message
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", message
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", message
	case errors.Is(err, domain.ErrNoExtractableText):
		return http.StatusUnprocessableEntity, "NO_EXTRACTABLE_TEXT", message

	// Billing and limits
	case errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound, "PLAN_NOT_FOUND", message
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return http.StatusNotFound, "SUBSCRIPTION_NOT_FOUND", message
	case errors.Is(err, domain.ErrPlanLimitReached):
		return http.StatusPaymentRequired, "PLAN_LIMIT_REACHED", message
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", message
	case errors.Is(err, domain.ErrInvalidWebhook):
		return http.StatusBadRequest, "INVALID_WEBHOOK", message

	// Integrations and invites
	case errors.Is(err, domain.ErrIntegrationNotFound):
		return http.StatusNotFound, "INTEGRATION_NOT_FOUND", message
	case errors.Is(err, domain.ErrInvalidProvider):
		return http.StatusBadRequest, "INVALID_PROVIDER", message
	case errors.Is(err, domain.ErrInviteNotFound):
		return http.StatusNotFound, "INVITE_NOT_FOUND", message
	case errors.Is(err, domain.ErrInviteNotAcceptable):
		return http.StatusConflict, "INVITE_NOT_ACCEPTABLE", message

	// Unconfigured features and upstream failures
	case errors.Is(err, domain.ErrBillingNotConfigured):
		return http.StatusServiceUnavailable, "BILLING_NOT_CONFIGURED", message
	case errors.Is(err, domain.ErrMailerNotConfigured):
		return http.StatusServiceUnavailable, "EMAIL_NOT_CONFIGURED", message
	case errors.Is(err, domain.ErrUpstreamFailed):
		return http.StatusBadGateway, "UPSTREAM_FAILED", message

	// Validation errors
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message

	// Default: internal server error
	default:
		slog.Error("unmapped domain error returned to client",
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
		)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
