package domain

import "time"

// Agent is a configured assistant: a system prompt plus model settings.
type Agent struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	SystemPrompt string
	Model        string
	Temperature  float64
	Voice        string
	IsPublic     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOwnedBy reports whether the agent belongs to the given user.
func (a *Agent) IsOwnedBy(userID string) bool {
	return a.OwnerID == userID
}

// IsVisibleTo reports whether the user may chat with the agent.
func (a *Agent) IsVisibleTo(userID string) bool {
	return a.IsPublic || a.OwnerID == userID
}
