package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserInactive = errors.New("user is inactive")
	ErrInvalidToken = errors.New("invalid authentication token")

	// Agent errors
	ErrAgentNotFound = errors.New("agent not found")
	ErrNotAgentOwner = errors.New("not agent owner")

	// Conversation errors
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotConversationOwner = errors.New("not conversation owner")

	// Knowledge errors
	ErrKnowledgeFileNotFound = errors.New("knowledge file not found")
	ErrInvalidKnowledgeState = errors.New("invalid knowledge file state")
	ErrUnsupportedFileType   = errors.New("unsupported file type")
	ErrFileTooLarge          = errors.New("file too large")
	ErrNoExtractableText     = errors.New("no extractable text")

	// Billing errors
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanLimitReached     = errors.New("plan limit reached")
	ErrBillingNotConfigured = errors.New("billing is not configured")
	ErrInvalidWebhook       = errors.New("invalid webhook signature")

	// Rate limiting
	ErrRateLimited = errors.New("rate limit exceeded")

	// Integration errors
	ErrIntegrationNotFound = errors.New("integration not connected")
	ErrInvalidProvider     = errors.New("invalid integration provider")
	ErrUpstreamFailed      = errors.New("upstream service failed")

	// Invite errors
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteNotAcceptable = errors.New("invite is not pending or has expired")

	// Email errors
	ErrMailerNotConfigured = errors.New("email is not configured")

	// Validation errors
	ErrValidation = errors.New("validation failed")
)
