package domain

import "time"

// MessageRole identifies the author of a message in a transcript.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// IsValid checks if the role is one of the allowed values.
func (r MessageRole) IsValid() bool {
	switch r {
	case MessageRoleSystem, MessageRoleUser, MessageRoleAssistant:
		return true
	default:
		return false
	}
}

// Conversation is a chat session between a user and an agent.
type Conversation struct {
	ID        string
	AgentID   string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single persisted transcript entry.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	TokenCount     int
	CreatedAt      time.Time
}
