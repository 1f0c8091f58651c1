package access

import "context"

// Repository owns the access-ledger storage. The compound write methods
// are atomic: either every row lands or none does. Concurrent grant
// attempts against the same team must serialize inside them.
type Repository interface {
	GetTeamAccess(ctx context.Context, teamID string) (TeamAccess, bool, error)

	GetPaymentEventByProviderKey(ctx context.Context, providerKey string) (PaymentEvent, bool, error)
	// RecordPaymentAndGrant inserts the event and applies the grant in one
	// transaction. Returns ErrDuplicateProviderKey when the event already
	// exists, leaving storage untouched.
	RecordPaymentAndGrant(ctx context.Context, event PaymentEvent, grant *Grant) error

	GetPromoCodeByCode(ctx context.Context, code string) (PromoCode, bool, error)
	CountRedemptions(ctx context.Context, userID, promoCodeID, teamID string) (int, error)
	// RedeemPromoAndGrant inserts the redemption, increments the code's
	// use_count re-checking max_uses under the transaction, and applies the
	// grant. Returns ErrUseLimitReached when the counter is already at cap.
	RedeemPromoAndGrant(ctx context.Context, redemption PromoRedemption, grant *Grant) error
}
