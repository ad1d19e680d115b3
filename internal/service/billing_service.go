package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mtlprog/agentdesk/internal/billing"
	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/repository"
)

var currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)

// PaymentGateway is the payment provider used for checkout, webhooks and payouts.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error)
	CreateTransfer(ctx context.Context, p billing.TransferParams) (string, error)
	ParseWebhook(payload []byte, signature string) (*billing.WebhookEvent, error)
}

// PayoutInput describes a requested payout.
type PayoutInput struct {
	AmountCents        int64
	Currency           string
	DestinationAccount string
}

// BillingService manages plans, subscriptions and payouts.
type BillingService struct {
	billing      *repository.BillingRepository
	users        *repository.UserRepository
	entitlements *Entitlements
	gateway      PaymentGateway
	appURL       string
}

// NewBillingService creates a new BillingService. gateway may be nil when billing is
// not configured; plan and subscription reads still work.
func NewBillingService(
	billingRepo *repository.BillingRepository,
	users *repository.UserRepository,
	entitlements *Entitlements,
	gateway PaymentGateway,
	appURL string,
) *BillingService {
	return &BillingService{
		billing:      billingRepo,
		users:        users,
		entitlements: entitlements,
		gateway:      gateway,
		appURL:       strings.TrimRight(appURL, "/"),
	}
}

// ListPlans returns all plans by price.
func (s *BillingService) ListPlans(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	return s.billing.ListPlans(ctx)
}

// GetSubscription returns the user's effective plan and subscription.
func (s *BillingService) GetSubscription(ctx context.Context, userID string) (*domain.Entitlement, error) {
	return s.entitlements.Resolve(ctx, userID)
}

// Checkout starts a Stripe Checkout session for the plan and returns its URL.
func (s *BillingService) Checkout(ctx context.Context, user *domain.User, planCode string) (string, error) {
	if s.gateway == nil {
		return "", domain.ErrBillingNotConfigured
	}

	plan, err := s.billing.GetPlanByCode(ctx, strings.TrimSpace(planCode))
	if err != nil {
		return "", err
	}
	if plan.StripePriceID == nil || *plan.StripePriceID == "" {
		return "", fmt.Errorf("%w: plan %s cannot be purchased", domain.ErrValidation, plan.Code)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	return s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		UserID:     user.ID,
		PriceID:    *plan.StripePriceID,
		PlanCode:   plan.Code,
		SuccessURL: s.appURL + "/billing?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.appURL + "/billing?checkout=cancelled",
	})
}

func (s *BillingService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, user.ID, user.Email, user.Name)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	user.StripeCustomerID = &customerID

	slog.Info("stripe customer created", "user_id", user.ID, "customer_id", customerID)
	return customerID, nil
}

// HandleWebhook verifies and applies a Stripe event.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return domain.ErrBillingNotConfigured
	}

	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	logger := slog.With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case billing.EventCheckoutCompleted:
		err = s.applyCheckout(ctx, event)
	case billing.EventSubscriptionUpdated:
		err = s.applySubscriptionUpdate(ctx, event)
	case billing.EventSubscriptionDeleted:
		err = s.applySubscriptionDeleted(ctx, event)
	default:
		logger.Debug("ignoring webhook event")
		return nil
	}
	if err != nil {
		logger.Error("failed to apply webhook event", "error", err)
		return err
	}

	logger.Info("webhook event applied", "subscription_id", event.SubscriptionID)
	return nil
}

func (s *BillingService) userForEvent(ctx context.Context, event *billing.WebhookEvent) (string, error) {
	if event.UserID != "" {
		return event.UserID, nil
	}
	if event.CustomerID != "" {
		user, err := s.users.GetByStripeCustomerID(ctx, event.CustomerID)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	}
	return "", fmt.Errorf("%w: event %s has no user reference", domain.ErrValidation, event.ID)
}

func (s *BillingService) planForEvent(ctx context.Context, event *billing.WebhookEvent) (*domain.SubscriptionPlan, error) {
	if event.PriceID != "" {
		plan, err := s.billing.GetPlanByStripePrice(ctx, event.PriceID)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, domain.ErrPlanNotFound) {
			return nil, err
		}
	}
	if event.PlanCode != "" {
		return s.billing.GetPlanByCode(ctx, event.PlanCode)
	}
	return nil, fmt.Errorf("%w: event %s has no plan reference", domain.ErrPlanNotFound, event.ID)
}

func (s *BillingService) applyCheckout(ctx context.Context, event *billing.WebhookEvent) error {
	userID, err := s.userForEvent(ctx, event)
	if err != nil {
		return err
	}
	plan, err := s.planForEvent(ctx, event)
	if err != nil {
		return err
	}

	sub := &domain.UserSubscription{
		UserID: userID,
		PlanID: plan.ID,
		Status: domain.SubscriptionStatusActive,
	}
	if event.SubscriptionID != "" {
		sub.StripeSubscriptionID = &event.SubscriptionID
	}
	if err := s.billing.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	if event.CustomerID != "" {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.StripeCustomerID == nil {
			if err := s.users.SetStripeCustomerID(ctx, userID, event.CustomerID); err != nil {
				return err
			}
		}
	}

	s.entitlements.Invalidate(ctx, userID)
	return nil
}

func (s *BillingService) applySubscriptionUpdate(ctx context.Context, event *billing.WebhookEvent) error {
	existing, err := s.billing.GetSubscriptionByStripeID(ctx, event.SubscriptionID)
	if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return err
	}

	sub := &domain.UserSubscription{
		StripeSubscriptionID: &event.SubscriptionID,
		Status:               domain.ParseSubscriptionStatus(event.Status),
		CurrentPeriodEnd:     event.CurrentPeriodEnd,
	}
	if existing != nil {
		sub.UserID = existing.UserID
		sub.PlanID = existing.PlanID
	} else {
		if sub.UserID, err = s.userForEvent(ctx, event); err != nil {
			return err
		}
	}

	plan, err := s.planForEvent(ctx, event)
	switch {
	case err == nil:
		sub.PlanID = plan.ID
	case sub.PlanID == "":
		return err
	}

	if err := s.billing.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	s.entitlements.Invalidate(ctx, sub.UserID)
	return nil
}

func (s *BillingService) applySubscriptionDeleted(ctx context.Context, event *billing.WebhookEvent) error {
	sub, err := s.billing.UpdateSubscriptionStatus(ctx, event.SubscriptionID, domain.SubscriptionStatusCanceled, event.CurrentPeriodEnd)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		slog.Info("deleted subscription is unknown, ignoring", "subscription_id", event.SubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}
	s.entitlements.Invalidate(ctx, sub.UserID)
	return nil
}

// CreatePayout transfers funds to a connected Stripe account and records the result.
func (s *BillingService) CreatePayout(ctx context.Context, userID string, in PayoutInput) (*domain.Payout, error) {
	if s.gateway == nil {
		return nil, domain.ErrBillingNotConfigured
	}
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount_cents must be positive", domain.ErrValidation)
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "usd"
	}
	if !currencyPattern.MatchString(currency) {
		return nil, fmt.Errorf("%w: currency must be a 3-letter ISO code", domain.ErrValidation)
	}
	if !strings.HasPrefix(in.DestinationAccount, "acct_") {
		return nil, fmt.Errorf("%w: destination_account must be a Stripe connected account id", domain.ErrValidation)
	}

	payout := &domain.Payout{
		UserID:             userID,
		AmountCents:        in.AmountCents,
		Currency:           currency,
		DestinationAccount: in.DestinationAccount,
	}
	if err := s.billing.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}

	transferID, terr := s.gateway.CreateTransfer(ctx, billing.TransferParams{
		AmountCents: payout.AmountCents,
		Currency:    payout.Currency,
		Destination: payout.DestinationAccount,
		PayoutID:    payout.ID,
	})

	finishCtx := context.WithoutCancel(ctx)
	if terr != nil {
		if err := s.billing.FinishPayout(finishCtx, payout.ID, domain.PayoutStatusFailed, nil); err != nil {
			slog.Error("failed to mark payout failed", "payout_id", payout.ID, "error", err)
		}
		payout.Status = domain.PayoutStatusFailed
		slog.Warn("payout transfer failed", "payout_id", payout.ID, "error", terr)
		return payout, terr
	}

	if err := s.billing.FinishPayout(finishCtx, payout.ID, domain.PayoutStatusPaid, &transferID); err != nil {
		return nil, err
	}
	payout.Status = domain.PayoutStatusPaid
	payout.StripeTransferID = &transferID

	slog.Info("payout completed", "payout_id", payout.ID, "user_id", userID, "amount_cents", payout.AmountCents)
	return payout, nil
}
