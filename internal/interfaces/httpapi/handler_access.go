package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/dugouthq/lineup-api/internal/usecase"
)

type paymentEventRequest struct {
	ProviderKey string    `json:"provider_key" validate:"required"`
	TeamID      string    `json:"team_id" validate:"required"`
	UserID      string    `json:"user_id"`
	AmountCents int64     `json:"amount_cents" validate:"min=0"`
	Currency    string    `json:"currency" validate:"omitempty,len=3"`
	Status      string    `json:"status" validate:"required"`
	PaidAt      time.Time `json:"paid_at"`
}

type paymentEventResponse struct {
	Duplicate bool               `json:"duplicate"`
	Access    usecase.AccessView `json:"access"`
}

type promoRedemptionRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// RecordPaymentEvent is the payment provider webhook. Replays of the same
// provider key return the stored outcome without side effects.
func (h *Handler) RecordPaymentEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RecordPaymentEvent")
	defer span.End()

	var req paymentEventRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.accessService.RecordPayment(ctx, usecase.RecordPaymentInput{
		ProviderKey: req.ProviderKey,
		TeamID:      req.TeamID,
		UserID:      req.UserID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Status:      req.Status,
		PaidAt:      req.PaidAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "record payment event failed", "team_id", req.TeamID, "provider_key", req.ProviderKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeSuccess(ctx, w, status, paymentEventResponse{
		Duplicate: result.Duplicate,
		Access:    result.Access,
	})
}

func (h *Handler) RedeemPromo(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RedeemPromo")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	var req promoRedemptionRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.accessService.RedeemPromo(ctx, usecase.RedeemPromoInput{
		Principal: principal,
		TeamID:    teamID,
		Code:      req.Code,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "promo redemption failed", "team_id", teamID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, view)
}

func (h *Handler) GetTeamAccess(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTeamAccess")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	view, err := h.accessService.GetTeamAccess(ctx, principal, teamID)
	if err != nil {
		h.logger.WarnContext(ctx, "get team access failed", "team_id", teamID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) GetCheckoutQuote(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCheckoutQuote")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.accessService.Quote())
}
