package dto

// CreateAgentRequest represents the request body for POST /agents.
type CreateAgentRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Voice        string   `json:"voice,omitempty"`
	IsPublic     bool     `json:"is_public"`
}

// UpdateAgentRequest represents the request body for PATCH /agents/{id}.
// Omitted fields are left unchanged.
type UpdateAgentRequest struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
	Model        *string  `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Voice        *string  `json:"voice,omitempty"`
	IsPublic     *bool    `json:"is_public,omitempty"`
}

// StartConversationRequest represents the request body for POST /conversations.
type StartConversationRequest struct {
	AgentID string `json:"agent_id"`
}

// SendMessageRequest represents the request body for POST /conversations/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
	Stream  bool   `json:"stream"`
}

// AddURLRequest represents the request body for POST /agents/{id}/knowledge/urls.
type AddURLRequest struct {
	URL string `json:"url"`
}

// CheckoutRequest represents the request body for POST /billing/checkout.
type CheckoutRequest struct {
	PlanCode string `json:"plan_code"`
}

// PayoutRequest represents the request body for POST /billing/payouts.
type PayoutRequest struct {
	AmountCents        int64  `json:"amount_cents"`
	Currency           string `json:"currency,omitempty"`
	DestinationAccount string `json:"destination_account"`
}

// ConnectIntegrationRequest represents the request body for PUT /integrations/{provider}.
type ConnectIntegrationRequest struct {
	AccessToken string `json:"access_token"`
}

// CreateRepoRequest represents the request body for POST /integrations/github/repos.
type CreateRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
}

// CreateIssueRequest represents the request body for POST /integrations/linear/issues.
type CreateIssueRequest struct {
	TeamID      string `json:"team_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CreateInviteRequest represents the request body for POST /invites.
type CreateInviteRequest struct {
	Email   string  `json:"email"`
	AgentID *string `json:"agent_id,omitempty"`
}

// SendEmailRequest represents the request body for POST /email.
type SendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
