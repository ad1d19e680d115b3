// Package billing talks to Stripe for checkout, subscription webhooks and payouts.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe event types handled by the webhook.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Metadata keys set on checkout sessions and subscriptions.
const (
	MetadataUserID   = "user_id"
	MetadataPlanCode = "plan_code"
)

// CheckoutParams describes a subscription checkout session.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	PlanCode   string
	SuccessURL string
	CancelURL  string
}

// TransferParams describes a payout to a connected account.
type TransferParams struct {
	AmountCents int64
	Currency    string
	Destination string
	PayoutID    string
}

// WebhookEvent is the subset of a Stripe event the service acts on.
type WebhookEvent struct {
	ID               string
	Type             string
	UserID           string
	CustomerID       string
	SubscriptionID   string
	PriceID          string
	PlanCode         string
	Status           string
	CurrentPeriodEnd *time.Time
}

// Stripe is the production gateway.
type Stripe struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

// NewStripe creates a gateway. backends may be nil to use Stripe's API.
func NewStripe(secretKey, webhookSecret string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        slog.Default().With("component", "stripe"),
	}
}

// CreateCustomer registers a Stripe customer for the user.
func (s *Stripe) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userID)
	params.SetIdempotencyKey("customer-" + userID)

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", domain.ErrUpstreamFailed, err)
	}
	return c.ID, nil
}

// CreateCheckoutSession opens a subscription checkout and returns its URL.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserID:   p.UserID,
				MetadataPlanCode: p.PlanCode,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, p.UserID)
	params.AddMetadata(MetadataPlanCode, p.PlanCode)

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %v", domain.ErrUpstreamFailed, err)
	}
	s.logger.Info("checkout session created", "user_id", p.UserID, "plan", p.PlanCode, "session_id", session.ID)
	return session.URL, nil
}

// CreateTransfer moves funds to a connected account and returns the transfer id.
func (s *Stripe) CreateTransfer(ctx context.Context, p TransferParams) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(p.AmountCents),
		Currency:    stripe.String(strings.ToLower(p.Currency)),
		Destination: stripe.String(p.Destination),
	}
	params.Context = ctx
	params.SetIdempotencyKey("payout-" + p.PayoutID)
	params.AddMetadata("payout_id", p.PayoutID)

	t, err := s.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create transfer: %v", domain.ErrUpstreamFailed, err)
	}
	return t.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Unhandled event types are returned with only ID and Type set.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWebhook, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", domain.ErrInvalidWebhook, err)
		}
		out.UserID = session.ClientReferenceID
		if out.UserID == "" {
			out.UserID = session.Metadata[MetadataUserID]
		}
		out.PlanCode = session.Metadata[MetadataPlanCode]
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
		out.Status = string(stripe.SubscriptionStatusActive)

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", domain.ErrInvalidWebhook, err)
		}
		out.SubscriptionID = sub.ID
		out.Status = string(sub.Status)
		out.UserID = sub.Metadata[MetadataUserID]
		out.PlanCode = sub.Metadata[MetadataPlanCode]
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		if sub.CurrentPeriodEnd > 0 {
			end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			out.CurrentPeriodEnd = &end
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			out.PriceID = sub.Items.Data[0].Price.ID
		}
	}

	return out, nil
}
