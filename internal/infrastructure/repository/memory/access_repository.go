package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/dugouthq/lineup-api/internal/domain/access"
)

// AccessRepository keeps the whole ledger behind one mutex so the compound
// writes serialize the same way the postgres transactions do.
type AccessRepository struct {
	mu            sync.Mutex
	accessByTeam  map[string]access.TeamAccess
	paymentsByKey map[string]access.PaymentEvent
	codesByID     map[string]access.PromoCode
	codeIDByCode  map[string]string
	redemptions   []access.PromoRedemption
}

func NewAccessRepository(codes []access.PromoCode) *AccessRepository {
	r := &AccessRepository{
		accessByTeam:  make(map[string]access.TeamAccess),
		paymentsByKey: make(map[string]access.PaymentEvent),
		codesByID:     make(map[string]access.PromoCode, len(codes)),
		codeIDByCode:  make(map[string]string, len(codes)),
	}
	for _, code := range codes {
		r.codesByID[code.ID] = code
		r.codeIDByCode[foldCode(code.Code)] = code.ID
	}

	return r
}

func (r *AccessRepository) GetTeamAccess(_ context.Context, teamID string) (access.TeamAccess, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.accessByTeam[teamID]
	return item, ok, nil
}

func (r *AccessRepository) GetPaymentEventByProviderKey(_ context.Context, providerKey string) (access.PaymentEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.paymentsByKey[providerKey]
	return item, ok, nil
}

func (r *AccessRepository) RecordPaymentAndGrant(_ context.Context, event access.PaymentEvent, grant *access.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.paymentsByKey[event.ProviderKey]; exists {
		return access.ErrDuplicateProviderKey
	}

	r.paymentsByKey[event.ProviderKey] = event
	if grant != nil {
		r.applyGrant(*grant)
	}
	return nil
}

func (r *AccessRepository) GetPromoCodeByCode(_ context.Context, code string) (access.PromoCode, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.codeIDByCode[foldCode(code)]
	if !ok {
		return access.PromoCode{}, false, nil
	}

	return r.codesByID[id], true, nil
}

func (r *AccessRepository) CountRedemptions(_ context.Context, userID, promoCodeID, teamID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, item := range r.redemptions {
		if item.UserID == userID && item.PromoCodeID == promoCodeID && item.TeamID == teamID {
			count++
		}
	}

	return count, nil
}

func (r *AccessRepository) RedeemPromoAndGrant(_ context.Context, redemption access.PromoRedemption, grant *access.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check activity under the lock: two redeemers that both read
	// "inactive" outside must not both grant and charge a use.
	if current, ok := r.accessByTeam[redemption.TeamID]; ok && current.IsActiveAt(redemption.RedeemedAt) {
		return access.ErrAccessAlreadyActive
	}

	code, ok := r.codesByID[redemption.PromoCodeID]
	if !ok {
		return access.ErrUseLimitReached
	}
	if code.MaxUses != nil && code.UseCount >= *code.MaxUses {
		return access.ErrUseLimitReached
	}

	code.UseCount++
	r.codesByID[code.ID] = code
	r.redemptions = append(r.redemptions, redemption)
	if grant != nil {
		r.applyGrant(*grant)
	}
	return nil
}

func (r *AccessRepository) applyGrant(grant access.Grant) {
	grantedAt := grant.GrantedAt
	r.accessByTeam[grant.TeamID] = access.TeamAccess{
		TeamID:    grant.TeamID,
		Status:    grant.Status,
		GrantedAt: &grantedAt,
		ExpiresAt: grant.ExpiresAt,
	}
}

func foldCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
