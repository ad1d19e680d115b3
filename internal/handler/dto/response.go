package dto

import (
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/integrations/github"
	"github.com/mtlprog/agentdesk/internal/integrations/linear"
	"github.com/mtlprog/agentdesk/internal/repository"
	"github.com/mtlprog/agentdesk/internal/service"
)

// AgentResponse represents an agent.
type AgentResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	Voice        string    `json:"voice"`
	IsPublic     bool      `json:"is_public"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AgentsListResponse represents the response for GET /agents.
type AgentsListResponse struct {
	Agents []AgentResponse `json:"agents"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ConversationResponse represents a conversation without messages.
type ConversationResponse struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationsListResponse represents the response for GET /conversations.
type ConversationsListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

// MessageResponse represents a transcript message.
type MessageResponse struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationDetailResponse represents a conversation with its transcript.
type ConversationDetailResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Messages     []MessageResponse    `json:"messages"`
}

// SendMessageResponse is the non-streaming reply to POST /conversations/{id}/messages.
type SendMessageResponse struct {
	UserMessage      MessageResponse `json:"user_message"`
	AssistantMessage MessageResponse `json:"assistant_message"`
}

// StreamEvent is one server-sent event of a streamed reply.
type StreamEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// KnowledgeFileResponse represents a knowledge file without its content.
type KnowledgeFileResponse struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Source     string    `json:"source"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SourceURL  *string   `json:"source_url"`
	Status     string    `json:"status"`
	Error      *string   `json:"error"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// KnowledgeFilesResponse represents the response for GET /agents/{id}/knowledge/files.
type KnowledgeFilesResponse struct {
	Files []KnowledgeFileResponse `json:"files"`
}

// PlanResponse represents a subscription plan. Zero limits mean unlimited.
type PlanResponse struct {
	Code                string `json:"code"`
	Name                string `json:"name"`
	PriceCents          int    `json:"price_cents"`
	MaxAgents           int    `json:"max_agents"`
	MaxMessagesPerMonth int    `json:"max_messages_per_month"`
	MaxKnowledgeFiles   int    `json:"max_knowledge_files"`
	Purchasable         bool   `json:"purchasable"`
}

// PlansResponse represents the response for GET /plans.
type PlansResponse struct {
	Plans []PlanResponse `json:"plans"`
}

// SubscriptionResponse represents the caller's effective plan.
type SubscriptionResponse struct {
	Plan             PlanResponse `json:"plan"`
	Status           string       `json:"status"`
	CurrentPeriodEnd *time.Time   `json:"current_period_end"`
}

// CheckoutResponse carries the Stripe Checkout URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// PayoutResponse represents a payout.
type PayoutResponse struct {
	ID                 string    `json:"id"`
	AmountCents        int64     `json:"amount_cents"`
	Currency           string    `json:"currency"`
	DestinationAccount string    `json:"destination_account"`
	StripeTransferID   *string   `json:"stripe_transfer_id"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// IntegrationResponse represents a connected integration. The token is never returned.
type IntegrationResponse struct {
	Provider        string    `json:"provider"`
	ExternalAccount string    `json:"external_account"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RepositoryResponse represents a created GitHub repository.
type RepositoryResponse struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}

// IssueResponse represents a created Linear issue.
type IssueResponse struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// InviteResponse represents an invite. The token is only shown to the inviter.
type InviteResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	AgentID   *string   `json:"agent_id"`
	Token     string    `json:"token,omitempty"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// InvitesListResponse represents the response for GET /invites.
type InvitesListResponse struct {
	Invites []InviteResponse `json:"invites"`
}

// EmailResponse carries the provider message id.
type EmailResponse struct {
	MessageID string `json:"message_id"`
}

// UsageResponse represents usage statistics for the caller.
type UsageResponse struct {
	Period      string         `json:"period"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Agents      []AgentUsage   `json:"agents"`
	Totals      UsageTotals    `json:"totals"`
	Plan        PlanResponse   `json:"plan"`
	Knowledge   map[string]int `json:"knowledge_by_status"`
}

// AgentUsage represents counters for a single agent.
type AgentUsage struct {
	AgentID           string `json:"agent_id"`
	AgentName         string `json:"agent_name"`
	Conversations     int    `json:"conversations"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	KnowledgeFiles    int    `json:"knowledge_files"`
	KnowledgeChunks   int    `json:"knowledge_chunks"`
}

// UsageTotals sums the per-agent counters.
type UsageTotals struct {
	Conversations     int `json:"conversations"`
	UserMessages      int `json:"user_messages"`
	AssistantMessages int `json:"assistant_messages"`
	MessagesThisMonth int `json:"messages_this_month"`
	KnowledgeFiles    int `json:"knowledge_files"`
}

// ToAgentResponse converts domain.Agent to AgentResponse. The system prompt is only
// included for the owner.
func ToAgentResponse(agent *domain.Agent, viewerID string) AgentResponse {
	resp := AgentResponse{
		ID:          agent.ID,
		OwnerID:     agent.OwnerID,
		Name:        agent.Name,
		Description: agent.Description,
		Model:       agent.Model,
		Temperature: agent.Temperature,
		Voice:       agent.Voice,
		IsPublic:    agent.IsPublic,
		CreatedAt:   agent.CreatedAt,
		UpdatedAt:   agent.UpdatedAt,
	}
	if agent.IsOwnedBy(viewerID) {
		resp.SystemPrompt = agent.SystemPrompt
	}
	return resp
}

// ToConversationResponse converts domain.Conversation to ConversationResponse.
func ToConversationResponse(c *domain.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		AgentID:   c.AgentID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToMessageResponse converts domain.Message to MessageResponse.
func ToMessageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		Role:       string(m.Role),
		Content:    m.Content,
		TokenCount: m.TokenCount,
		CreatedAt:  m.CreatedAt,
	}
}

// ToKnowledgeFileResponse converts domain.KnowledgeFile to KnowledgeFileResponse.
func ToKnowledgeFileResponse(f *domain.KnowledgeFile) KnowledgeFileResponse {
	return KnowledgeFileResponse{
		ID:         f.ID,
		AgentID:    f.AgentID,
		Source:     string(f.Source),
		FileName:   f.FileName,
		MimeType:   f.MimeType,
		SourceURL:  f.SourceURL,
		Status:     string(f.Status),
		Error:      f.Error,
		ChunkCount: f.ChunkCount,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// ToPlanResponse converts domain.SubscriptionPlan to PlanResponse.
func ToPlanResponse(p *domain.SubscriptionPlan) PlanResponse {
	return PlanResponse{
		Code:                p.Code,
		Name:                p.Name,
		PriceCents:          p.PriceCents,
		MaxAgents:           p.MaxAgents,
		MaxMessagesPerMonth: p.MaxMessagesPerMonth,
		MaxKnowledgeFiles:   p.MaxKnowledgeFiles,
		Purchasable:         p.StripePriceID != nil && *p.StripePriceID != "",
	}
}

// ToSubscriptionResponse converts an entitlement to SubscriptionResponse.
func ToSubscriptionResponse(ent *domain.Entitlement) SubscriptionResponse {
	resp := SubscriptionResponse{
		Plan:   ToPlanResponse(ent.Plan),
		Status: "free",
	}
	if ent.Subscription != nil {
		resp.Status = string(ent.Subscription.Status)
		resp.CurrentPeriodEnd = ent.Subscription.CurrentPeriodEnd
	}
	return resp
}

// ToPayoutResponse converts domain.Payout to PayoutResponse.
func ToPayoutResponse(p *domain.Payout) PayoutResponse {
	return PayoutResponse{
		ID:                 p.ID,
		AmountCents:        p.AmountCents,
		Currency:           p.Currency,
		DestinationAccount: p.DestinationAccount,
		StripeTransferID:   p.StripeTransferID,
		Status:             string(p.Status),
		CreatedAt:          p.CreatedAt,
	}
}

// ToIntegrationResponse converts domain.Integration to IntegrationResponse.
func ToIntegrationResponse(i *domain.Integration) IntegrationResponse {
	return IntegrationResponse{
		Provider:        string(i.Provider),
		ExternalAccount: i.ExternalAccount,
		UpdatedAt:       i.UpdatedAt,
	}
}

// ToRepositoryResponse converts github.Repository to RepositoryResponse.
func ToRepositoryResponse(r *github.Repository) RepositoryResponse {
	return RepositoryResponse{
		FullName: r.FullName,
		HTMLURL:  r.HTMLURL,
		CloneURL: r.CloneURL,
		Private:  r.Private,
	}
}

// ToIssueResponse converts linear.Issue to IssueResponse.
func ToIssueResponse(i *linear.Issue) IssueResponse {
	return IssueResponse{
		ID:         i.ID,
		Identifier: i.Identifier,
		Title:      i.Title,
		URL:        i.URL,
	}
}

// ToInviteResponse converts domain.Invite to InviteResponse.
func ToInviteResponse(i *domain.Invite, withToken bool) InviteResponse {
	resp := InviteResponse{
		ID:        i.ID,
		Email:     i.Email,
		AgentID:   i.AgentID,
		Status:    string(i.Status),
		ExpiresAt: i.ExpiresAt,
		CreatedAt: i.CreatedAt,
	}
	if withToken {
		resp.Token = i.Token
	}
	return resp
}

// ToUsageResponse converts service.UsageReport to UsageResponse.
func ToUsageResponse(r *service.UsageReport) UsageResponse {
	agents := make([]AgentUsage, len(r.Agents))
	for i, a := range r.Agents {
		agents[i] = toAgentUsage(a)
	}
	return UsageResponse{
		Period:      string(r.Period),
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		Agents:      agents,
		Totals: UsageTotals{
			Conversations:     r.TotalConversations,
			UserMessages:      r.TotalUserMessages,
			AssistantMessages: r.TotalReplies,
			MessagesThisMonth: r.MessagesThisMonth,
			KnowledgeFiles:    r.KnowledgeFileCount,
		},
		Plan:      ToPlanResponse(r.Entitlement.Plan),
		Knowledge: r.KnowledgeByStatus,
	}
}

func toAgentUsage(a repository.AgentUsageResult) AgentUsage {
	return AgentUsage{
		AgentID:           a.AgentID,
		AgentName:         a.AgentName,
		Conversations:     a.Conversations,
		UserMessages:      a.UserMessages,
		AssistantMessages: a.AssistantMessages,
		KnowledgeFiles:    a.KnowledgeFiles,
		KnowledgeChunks:   a.KnowledgeChunks,
	}
}

// CreateInviteResponse is returned by POST /invites.
type CreateInviteResponse struct {
	Invite    InviteResponse `json:"invite"`
	EmailSent bool           `json:"email_sent"`
}
