package domain

import "time"

// FreePlanCode is the plan applied to users without a subscription row.
const FreePlanCode = "free"

// SubscriptionPlan describes a purchasable tier and its limits.
// Zero limits mean unlimited.
type SubscriptionPlan struct {
	ID                  string
	Code                string
	Name                string
	StripePriceID       *string
	PriceCents          int
	MaxAgents           int
	MaxMessagesPerMonth int
	MaxKnowledgeFiles   int
	CreatedAt           time.Time
}

// SubscriptionStatus mirrors the Stripe subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// IsEntitled returns true if the subscription still grants plan limits.
func (s SubscriptionStatus) IsEntitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing || s == SubscriptionStatusPastDue
}

// ParseSubscriptionStatus maps a Stripe status string onto the local enum.
// Statuses without a local counterpart map to canceled.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch SubscriptionStatus(s) {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue,
		SubscriptionStatusCanceled, SubscriptionStatusExpired:
		return SubscriptionStatus(s)
	case "unpaid":
		return SubscriptionStatusPastDue
	default:
		return SubscriptionStatusCanceled
	}
}

// UserSubscription links a user to a plan.
type UserSubscription struct {
	ID                   string
	UserID               string
	PlanID               string
	StripeSubscriptionID *string
	Status               SubscriptionStatus
	CurrentPeriodEnd     *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Entitlement is the effective plan for a user at a point in time.
type Entitlement struct {
	Plan         *SubscriptionPlan
	Subscription *UserSubscription // nil on the free plan
}

// PayoutStatus is the state of a transfer to a connected account.
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

// Payout records a transfer to a user's connected Stripe account.
type Payout struct {
	ID                 string
	UserID             string
	AmountCents        int64
	Currency           string
	DestinationAccount string
	StripeTransferID   *string
	Status             PayoutStatus
	CreatedAt          time.Time
}
