package domain

import "time"

// InviteStatus is the lifecycle state of an invitation.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRevoked  InviteStatus = "revoked"
	InviteStatusExpired  InviteStatus = "expired"
)

// Invite grants an email address access to the product, optionally to one agent.
type Invite struct {
	ID         string
	InviterID  string
	Email      string
	AgentID    *string
	Token      string
	Status     InviteStatus
	AcceptedBy *string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsAcceptable reports whether the invite can still be accepted at now.
func (i *Invite) IsAcceptable(now time.Time) bool {
	return i.Status == InviteStatusPending && now.Before(i.ExpiresAt)
}
