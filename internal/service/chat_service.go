package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/llm"
	"github.com/mtlprog/agentdesk/internal/metrics"
	"github.com/mtlprog/agentdesk/internal/repository"
)

const (
	// MaxMessageLength bounds a single user message in characters.
	MaxMessageLength = 32000

	historyLimit   = 20
	contextChunks  = 4
	titleMaxLength = 60
)

// PreparedMessage is a validated message that passed rate and quota checks.
type PreparedMessage struct {
	UserID       string
	Content      string
	Conversation *domain.Conversation
	Agent        *domain.Agent
}

// ChatResult is the outcome of one exchange.
type ChatResult struct {
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
}

// ChatService relays conversations to the LLM provider and persists the transcript.
type ChatService struct {
	agents        *repository.AgentRepository
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	knowledge     *repository.KnowledgeRepository
	entitlements  *Entitlements
	limiter       RateLimiter
	chatter       llm.Chatter
	rateLimit     int
	now           func() time.Time
}

// NewChatService creates a new ChatService. limiter may be nil.
func NewChatService(
	agents *repository.AgentRepository,
	conversations *repository.ConversationRepository,
	messages *repository.MessageRepository,
	knowledge *repository.KnowledgeRepository,
	entitlements *Entitlements,
	limiter RateLimiter,
	chatter llm.Chatter,
	rateLimit int,
) *ChatService {
	return &ChatService{
		agents:        agents,
		conversations: conversations,
		messages:      messages,
		knowledge:     knowledge,
		entitlements:  entitlements,
		limiter:       limiter,
		chatter:       chatter,
		rateLimit:     rateLimit,
		now:           time.Now,
	}
}

// StartConversation opens a conversation with an agent the user can see.
func (s *ChatService) StartConversation(ctx context.Context, userID, agentID string) (*domain.Conversation, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsVisibleTo(userID) {
		return nil, domain.ErrAgentNotFound
	}

	conversation := &domain.Conversation{AgentID: agentID, UserID: userID}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}

	slog.Info("conversation started", "conversation_id", conversation.ID, "agent_id", agentID, "user_id", userID)
	return conversation, nil
}

func (s *ChatService) ownedConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotConversationOwner, conversationID)
	}
	return conversation, nil
}

// GetConversation returns a conversation with its messages in order.
func (s *ChatService) GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, []*domain.Message, error) {
	conversation, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return conversation, messages, nil
}

// ListConversations returns the user's conversations, newest activity first.
func (s *ChatService) ListConversations(ctx context.Context, userID string, agentID *string, limit, offset int) ([]*domain.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID, agentID, limit, offset)
}

// Prepare validates a new message and checks rate and quota limits. Handlers call it
// before committing to a streaming response so errors can still be sent as JSON.
func (s *ChatService) Prepare(ctx context.Context, userID, conversationID, content string) (*PreparedMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", domain.ErrValidation, MaxMessageLength)
	}

	conversation, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	agent, err := s.agents.GetByID(ctx, conversation.AgentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsVisibleTo(userID) {
		return nil, domain.ErrAgentNotFound
	}

	now := s.now()
	ent, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ent.Plan.MaxMessagesPerMonth > 0 {
		sent, err := s.messages.CountUserMessagesSince(ctx, userID, MonthStart(now))
		if err != nil {
			return nil, err
		}
		if err := CheckMessageLimit(ent.Plan, sent); err != nil {
			metrics.ChatRequests.WithLabelValues("quota_exceeded").Inc()
			return nil, err
		}
	}

	// Last check: it consumes a slot in the per-minute window.
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, userID, s.rateLimit, now)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "user_id", userID, "error", err)
		} else if !ok {
			metrics.ChatRequests.WithLabelValues("rate_limited").Inc()
			return nil, fmt.Errorf("%w: %d messages per minute", domain.ErrRateLimited, s.rateLimit)
		}
	}

	return &PreparedMessage{UserID: userID, Content: content, Conversation: conversation, Agent: agent}, nil
}

// SendMessage validates and runs one exchange.
func (s *ChatService) SendMessage(
	ctx context.Context,
	userID, conversationID, content string,
	onToken llm.TokenFunc,
) (*ChatResult, error) {
	prepared, err := s.Prepare(ctx, userID, conversationID, content)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, prepared, onToken)
}

// Run persists the user message and calls the provider. With a non-nil onToken the
// completion is streamed through it. The assistant message is persisted only when
// the provider finishes.
func (s *ChatService) Run(ctx context.Context, p *PreparedMessage, onToken llm.TokenFunc) (*ChatResult, error) {
	conversation, agent, userID, content := p.Conversation, p.Agent, p.UserID, p.Content
	logger := slog.With("conversation_id", conversation.ID, "agent_id", agent.ID, "user_id", userID)

	userMsg := &domain.Message{
		ConversationID: conversation.ID,
		Role:           domain.MessageRoleUser,
		Content:        content,
		TokenCount:     EstimateTokens(content),
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}

	prompt, err := s.buildPrompt(ctx, agent, conversation.ID, content)
	if err != nil {
		return nil, err
	}

	var stream llm.TokenFunc
	if onToken != nil {
		stream = func(chunk string) error {
			metrics.StreamedTokens.Inc()
			return onToken(chunk)
		}
	}

	started := time.Now()
	text, err := s.chatter.Complete(ctx, llm.ChatRequest{
		Model:       agent.Model,
		Temperature: agent.Temperature,
		Messages:    prompt,
	}, stream)
	metrics.LLMLatency.WithLabelValues(agent.Model).Observe(time.Since(started).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			metrics.ChatRequests.WithLabelValues("cancelled").Inc()
			logger.Info("chat cancelled by client")
			return nil, ctx.Err()
		}
		metrics.ChatRequests.WithLabelValues("failed").Inc()
		logger.Error("completion failed", "error", err)
		return nil, fmt.Errorf("%w: completion: %w", domain.ErrUpstreamFailed, err)
	}

	assistantMsg := &domain.Message{
		ConversationID: conversation.ID,
		Role:           domain.MessageRoleAssistant,
		Content:        text,
		TokenCount:     EstimateTokens(text),
	}
	// The reply is complete; store it even if the client went away meanwhile.
	storeCtx := context.WithoutCancel(ctx)
	if err := s.messages.Create(storeCtx, assistantMsg); err != nil {
		return nil, err
	}
	if err := s.conversations.Touch(storeCtx, conversation.ID, ConversationTitle(content)); err != nil {
		logger.Warn("failed to touch conversation", "error", err)
	}

	metrics.ChatRequests.WithLabelValues("completed").Inc()
	logger.Info("chat exchange completed",
		"assistant_message_id", assistantMsg.ID,
		"duration", time.Since(started),
	)

	return &ChatResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *ChatService) buildPrompt(ctx context.Context, agent *domain.Agent, conversationID, query string) ([]llm.Message, error) {
	chunks, err := s.knowledge.SearchChunks(ctx, agent.ID, query, contextChunks)
	if err != nil {
		return nil, err
	}
	history, err := s.messages.ListRecent(ctx, conversationID, historyLimit)
	if err != nil {
		return nil, err
	}
	return BuildPrompt(agent.SystemPrompt, chunks, history), nil
}

// BuildPrompt assembles the provider messages: the system prompt with retrieved
// knowledge appended, then the transcript.
func BuildPrompt(systemPrompt string, chunks []*domain.KnowledgeChunk, history []*domain.Message) []llm.Message {
	system := systemPrompt
	if len(chunks) > 0 {
		var sb strings.Builder
		sb.WriteString(systemPrompt)
		sb.WriteString("\n\nUse the following knowledge base excerpts when they are relevant to the question:\n")
		for i, c := range chunks {
			fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, c.Content)
		}
		system = sb.String()
	}

	prompt := make([]llm.Message, 0, len(history)+1)
	prompt = append(prompt, llm.Message{Role: domain.MessageRoleSystem, Content: system})
	for _, m := range history {
		if m.Role == domain.MessageRoleSystem {
			continue
		}
		prompt = append(prompt, llm.Message{Role: m.Role, Content: m.Content})
	}
	return prompt
}

// ConversationTitle derives a title from the first user message.
func ConversationTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(title) <= titleMaxLength {
		return title
	}
	return string([]rune(title)[:titleMaxLength])
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// IsClientGone reports whether err came from the caller abandoning the request.
func IsClientGone(err error) bool {
	return errors.Is(err, context.Canceled)
}
