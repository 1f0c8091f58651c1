package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/access"
	"github.com/dugouthq/lineup-api/internal/domain/team"
	"github.com/dugouthq/lineup-api/internal/domain/user"
	"github.com/dugouthq/lineup-api/internal/platform/id"
	"github.com/dugouthq/lineup-api/internal/platform/logging"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// ViewStatusExpired is the read-time status for a grant whose expiry has
// passed. It is never stored.
const ViewStatusExpired = "expired"

type RecordPaymentInput struct {
	ProviderKey string
	TeamID      string
	UserID      string
	AmountCents int64
	Currency    string
	Status      string
	PaidAt      time.Time
}

type RecordPaymentResult struct {
	Duplicate bool
	Access    AccessView
}

type RedeemPromoInput struct {
	Principal user.Principal
	TeamID    string
	Code      string
}

// AccessView is the derived, caller-facing access state. Status folds the
// stored grant and the clock into one of none, paid_active, promo_active
// or expired.
type AccessView struct {
	TeamID    string     `json:"team_id"`
	Status    string     `json:"status"`
	GrantedAt *time.Time `json:"granted_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CheckoutQuote tells a client what a paid grant costs and how long it
// lasts. A zero duration means the grant never expires.
type CheckoutQuote struct {
	AmountCents   int64         `json:"amount_cents"`
	Currency      string        `json:"currency"`
	GrantDuration time.Duration `json:"grant_duration"`
}

// AccessService owns the payment and promo state machine. All status
// transitions happen here; repositories only guarantee atomicity of the
// compound writes.
type AccessService struct {
	accessRepo    access.Repository
	teamRepo      team.Repository
	idGen         id.Generator
	logger        *logging.Logger
	grantDuration time.Duration
	priceCents    int64
	priceCurrency string
	now           func() time.Time
}

func NewAccessService(
	accessRepo access.Repository,
	teamRepo team.Repository,
	idGen id.Generator,
	logger *logging.Logger,
	grantDuration time.Duration,
	priceCents int64,
	priceCurrency string,
) *AccessService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &AccessService{
		accessRepo:    accessRepo,
		teamRepo:      teamRepo,
		idGen:         idGen,
		logger:        logger,
		grantDuration: grantDuration,
		priceCents:    priceCents,
		priceCurrency: priceCurrency,
		now:           time.Now,
	}
}

// RecordPayment applies one provider webhook delivery. Deliveries are
// idempotent on ProviderKey: a replay returns the current access state
// without touching the ledger. Only succeeded payments grant access;
// failed ones are recorded for audit and leave access untouched.
func (s *AccessService) RecordPayment(ctx context.Context, input RecordPaymentInput) (RecordPaymentResult, error) {
	ctx, span := startUsecaseSpan(ctx, "AccessService.RecordPayment")
	defer span.End()

	input.ProviderKey = strings.TrimSpace(input.ProviderKey)
	input.TeamID = strings.TrimSpace(input.TeamID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	status := strings.ToLower(strings.TrimSpace(input.Status))

	if input.ProviderKey == "" {
		return RecordPaymentResult{}, fmt.Errorf("%w: provider_key is required", ErrInvalidInput)
	}
	if input.TeamID == "" {
		return RecordPaymentResult{}, fmt.Errorf("%w: team_id is required", ErrInvalidInput)
	}
	if status != PaymentStatusSucceeded && status != PaymentStatusFailed {
		return RecordPaymentResult{}, fmt.Errorf("%w: status must be %s or %s", ErrInvalidInput, PaymentStatusSucceeded, PaymentStatusFailed)
	}
	if input.AmountCents < 0 {
		return RecordPaymentResult{}, fmt.Errorf("%w: amount_cents cannot be negative", ErrInvalidInput)
	}

	if _, ok, err := s.teamRepo.GetByID(ctx, input.TeamID); err != nil {
		return RecordPaymentResult{}, fmt.Errorf("get team before recording payment: %w", err)
	} else if !ok {
		return RecordPaymentResult{}, fmt.Errorf("%w: team %s", ErrNotFound, input.TeamID)
	}

	if _, exists, err := s.accessRepo.GetPaymentEventByProviderKey(ctx, input.ProviderKey); err != nil {
		return RecordPaymentResult{}, fmt.Errorf("get payment event by provider key: %w", err)
	} else if exists {
		return s.duplicateResult(ctx, input.TeamID, input.ProviderKey)
	}

	now := s.now().UTC()
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	event := access.PaymentEvent{
		ProviderKey: input.ProviderKey,
		TeamID:      input.TeamID,
		UserID:      input.UserID,
		AmountCents: input.AmountCents,
		Currency:    input.Currency,
		Status:      status,
		PaidAt:      paidAt,
	}

	var grant *access.Grant
	if status == PaymentStatusSucceeded {
		grant = s.buildGrant(input.TeamID, access.StatusPaidActive, now)
	}

	if err := s.accessRepo.RecordPaymentAndGrant(ctx, event, grant); err != nil {
		// Lost the race against a concurrent replay of the same delivery.
		if errors.Is(err, access.ErrDuplicateProviderKey) {
			return s.duplicateResult(ctx, input.TeamID, input.ProviderKey)
		}
		return RecordPaymentResult{}, fmt.Errorf("record payment and grant: %w", err)
	}

	s.logger.InfoContext(ctx, "payment event recorded",
		"provider_key", input.ProviderKey,
		"team_id", input.TeamID,
		"status", status,
		"granted", grant != nil,
	)

	view, err := s.viewFor(ctx, input.TeamID)
	if err != nil {
		return RecordPaymentResult{}, err
	}

	return RecordPaymentResult{Access: view}, nil
}

func (s *AccessService) duplicateResult(ctx context.Context, teamID, providerKey string) (RecordPaymentResult, error) {
	s.logger.InfoContext(ctx, "duplicate payment delivery ignored", "provider_key", providerKey, "team_id", teamID)

	view, err := s.viewFor(ctx, teamID)
	if err != nil {
		return RecordPaymentResult{}, err
	}

	return RecordPaymentResult{Duplicate: true, Access: view}, nil
}

// RedeemPromo validates the code against the full rejection ladder and,
// when it passes, records the redemption and grants promo access in one
// atomic write. A team that already has active access is rejected before
// the caller's own redemption history is consulted.
func (s *AccessService) RedeemPromo(ctx context.Context, input RedeemPromoInput) (AccessView, error) {
	ctx, span := startUsecaseSpan(ctx, "AccessService.RedeemPromo")
	defer span.End()

	input.TeamID = strings.TrimSpace(input.TeamID)
	input.Code = strings.TrimSpace(input.Code)
	if input.TeamID == "" {
		return AccessView{}, fmt.Errorf("%w: team_id is required", ErrInvalidInput)
	}
	if input.Code == "" {
		return AccessView{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if input.Principal.UserID == "" {
		return AccessView{}, fmt.Errorf("%w: missing principal", ErrUnauthorized)
	}

	item, ok, err := s.teamRepo.GetByID(ctx, input.TeamID)
	if err != nil {
		return AccessView{}, fmt.Errorf("get team before promo redemption: %w", err)
	}
	if !ok {
		return AccessView{}, fmt.Errorf("%w: team %s", ErrNotFound, input.TeamID)
	}
	if !input.Principal.Admin && item.OwnerUserID != input.Principal.UserID {
		return AccessView{}, fmt.Errorf("%w: only the team owner can redeem a promo code", ErrUnauthorized)
	}

	now := s.now().UTC()

	code, ok, err := s.accessRepo.GetPromoCodeByCode(ctx, input.Code)
	if err != nil {
		return AccessView{}, fmt.Errorf("get promo code: %w", err)
	}
	if !ok {
		return AccessView{}, &PromoInvalidError{Reason: PromoNotFound}
	}
	if !code.IsActive {
		return AccessView{}, &PromoInvalidError{Reason: PromoInactive}
	}
	if code.ExpiresAt != nil && !code.ExpiresAt.After(now) {
		return AccessView{}, &PromoInvalidError{Reason: PromoExpired}
	}
	if code.MaxUses != nil && code.UseCount >= *code.MaxUses {
		return AccessView{}, &PromoInvalidError{Reason: PromoLimitReached}
	}

	current, _, err := s.accessRepo.GetTeamAccess(ctx, input.TeamID)
	if err != nil {
		return AccessView{}, fmt.Errorf("get team access before promo redemption: %w", err)
	}
	if current.IsActiveAt(now) {
		return AccessView{}, ErrAlreadyHasAccess
	}

	used, err := s.accessRepo.CountRedemptions(ctx, input.Principal.UserID, code.ID, input.TeamID)
	if err != nil {
		return AccessView{}, fmt.Errorf("count promo redemptions: %w", err)
	}
	if code.MaxUsesPerUser > 0 && used >= code.MaxUsesPerUser {
		return AccessView{}, &PromoInvalidError{Reason: PromoAlreadyUsed}
	}

	redemptionID, err := s.idGen.NewID()
	if err != nil {
		return AccessView{}, fmt.Errorf("generate redemption id: %w", err)
	}

	redemption := access.PromoRedemption{
		ID:          redemptionID,
		UserID:      input.Principal.UserID,
		PromoCodeID: code.ID,
		TeamID:      input.TeamID,
		RedeemedAt:  now,
	}
	grant := s.buildGrant(input.TeamID, access.StatusPromoActive, now)

	if err := s.accessRepo.RedeemPromoAndGrant(ctx, redemption, grant); err != nil {
		// Activity and the global cap are re-checked under the write; a
		// concurrent redemption may have granted first or taken the last
		// use between the reads above and the transaction.
		if errors.Is(err, access.ErrAccessAlreadyActive) {
			return AccessView{}, ErrAlreadyHasAccess
		}
		if errors.Is(err, access.ErrUseLimitReached) {
			return AccessView{}, &PromoInvalidError{Reason: PromoLimitReached}
		}
		return AccessView{}, fmt.Errorf("redeem promo and grant: %w", err)
	}

	s.logger.InfoContext(ctx, "promo code redeemed",
		"promo_code_id", code.ID,
		"team_id", input.TeamID,
		"user_id", input.Principal.UserID,
	)

	return s.viewFor(ctx, input.TeamID)
}

// GetTeamAccess returns the derived access state for the caller's team.
func (s *AccessService) GetTeamAccess(ctx context.Context, p user.Principal, teamID string) (AccessView, error) {
	ctx, span := startUsecaseSpan(ctx, "AccessService.GetTeamAccess")
	defer span.End()

	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return AccessView{}, fmt.Errorf("%w: team_id is required", ErrInvalidInput)
	}

	item, ok, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return AccessView{}, fmt.Errorf("get team: %w", err)
	}
	if !ok {
		return AccessView{}, fmt.Errorf("%w: team %s", ErrNotFound, teamID)
	}
	if !p.Admin && item.OwnerUserID != p.UserID {
		return AccessView{}, fmt.Errorf("%w: only the team owner can view access", ErrUnauthorized)
	}

	return s.viewFor(ctx, teamID)
}

// HasActiveAccess reports whether the team may export right now.
func (s *AccessService) HasActiveAccess(ctx context.Context, teamID string) (bool, error) {
	acc, _, err := s.accessRepo.GetTeamAccess(ctx, teamID)
	if err != nil {
		return false, fmt.Errorf("get team access: %w", err)
	}

	return acc.IsActiveAt(s.now().UTC()), nil
}

// Quote returns the configured paid-access price.
func (s *AccessService) Quote() CheckoutQuote {
	return CheckoutQuote{
		AmountCents:   s.priceCents,
		Currency:      s.priceCurrency,
		GrantDuration: s.grantDuration,
	}
}

func (s *AccessService) buildGrant(teamID string, status access.Status, now time.Time) *access.Grant {
	grant := &access.Grant{
		TeamID:    teamID,
		Status:    status,
		GrantedAt: now,
	}
	if s.grantDuration > 0 {
		expiresAt := now.Add(s.grantDuration)
		grant.ExpiresAt = &expiresAt
	}

	return grant
}

func (s *AccessService) viewFor(ctx context.Context, teamID string) (AccessView, error) {
	acc, ok, err := s.accessRepo.GetTeamAccess(ctx, teamID)
	if err != nil {
		return AccessView{}, fmt.Errorf("get team access: %w", err)
	}
	if !ok {
		return AccessView{TeamID: teamID, Status: string(access.StatusNone)}, nil
	}

	return deriveView(acc, s.now().UTC()), nil
}

// deriveView folds expiry into the stored status at read time. Expired
// grants are never rewritten in storage.
func deriveView(acc access.TeamAccess, now time.Time) AccessView {
	view := AccessView{
		TeamID:    acc.TeamID,
		Status:    string(acc.Status),
		GrantedAt: acc.GrantedAt,
		ExpiresAt: acc.ExpiresAt,
	}
	if acc.HasEverBeenGranted() && !acc.IsActiveAt(now) {
		view.Status = ViewStatusExpired
	}
	if view.Status == "" {
		view.Status = string(access.StatusNone)
	}

	return view
}
