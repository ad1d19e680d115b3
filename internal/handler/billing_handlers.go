package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/service"
)

const maxWebhookBytes = 64 << 10

// handleListPlans lists subscription plans.
// @Summary List plans
// @Tags billing
// @Produce json
// @Success 200 {object} dto.PlansResponse
// @Router /plans [get]
func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.ListPlans(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.PlansResponse{Plans: make([]dto.PlanResponse, 0, len(plans))}
	for _, p := range plans {
		resp.Plans = append(resp.Plans, dto.ToPlanResponse(p))
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleGetSubscription returns the caller's effective plan.
// @Summary Get subscription
// @Description Users without an active subscription get the free plan with status "free".
// @Tags billing
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Security BearerAuth
// @Router /billing/subscription [get]
func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ent, err := h.billing.GetSubscription(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToSubscriptionResponse(ent))
}

// handleCheckout starts a Stripe Checkout session.
// @Summary Start checkout
// @Tags billing
// @Accept json
// @Produce json
// @Param request body dto.CheckoutRequest true "Plan to buy"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /billing/checkout [post]
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	url, err := h.billing.Checkout(r.Context(), user, req.PlanCode)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.CheckoutResponse{URL: url})
}

// handleStripeWebhook receives Stripe events. Authenticated by the Stripe-Signature header.
// @Summary Stripe webhook
// @Tags billing
// @Accept json
// @Produce json
// @Success 200
// @Failure 400 {object} dto.ErrorResponse
// @Router /billing/webhook [post]
func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		slog.Warn("failed to read webhook body", "error", err)
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read body")
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// handleCreatePayout transfers funds to a connected account.
// @Summary Create a payout
// @Tags billing
// @Accept json
// @Produce json
// @Param request body dto.PayoutRequest true "Payout"
// @Success 201 {object} dto.PayoutResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /billing/payouts [post]
func (h *Handler) handleCreatePayout(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.PayoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payout, err := h.billing.CreatePayout(r.Context(), user.ID, service.PayoutInput{
		AmountCents:        req.AmountCents,
		Currency:           req.Currency,
		DestinationAccount: req.DestinationAccount,
	})
	if err != nil {
		// A failed transfer is recorded; the error still reaches the caller.
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToPayoutResponse(payout))
}
