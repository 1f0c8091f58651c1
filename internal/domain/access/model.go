package access

import (
	"errors"
	"time"
)

// Status is the stored access state of a team. "Expired" is never stored:
// it is a read-time view derived from ExpiresAt, so no sweeper job is
// needed to rewrite rows.
type Status string

const (
	StatusNone        Status = "none"
	StatusPaidActive  Status = "paid_active"
	StatusPromoActive Status = "promo_active"
)

// Atomic-write conflicts surfaced by the repository layer. The service
// maps them onto its error taxonomy.
var (
	ErrDuplicateProviderKey = errors.New("payment event already recorded for provider key")
	ErrUseLimitReached      = errors.New("promo code use limit reached")
	ErrAccessAlreadyActive  = errors.New("team access is already active")
)

// TeamAccess is a team's export entitlement. GrantedAt is set whenever the
// status is active; a nil ExpiresAt means the grant never expires.
type TeamAccess struct {
	TeamID    string
	Status    Status
	GrantedAt *time.Time
	ExpiresAt *time.Time
}

// IsActiveAt reports whether the team may export at the given instant.
// A populated but past-dated active status reads as expired.
func (a TeamAccess) IsActiveAt(now time.Time) bool {
	if a.Status != StatusPaidActive && a.Status != StatusPromoActive {
		return false
	}
	if a.ExpiresAt == nil {
		return true
	}
	return a.ExpiresAt.After(now)
}

// HasEverBeenGranted distinguishes "never paid/redeemed" from "lapsed" so
// callers can render buy-versus-renew messaging.
func (a TeamAccess) HasEverBeenGranted() bool {
	return a.Status == StatusPaidActive || a.Status == StatusPromoActive
}

// Grant is the access write applied alongside a payment event or promo
// redemption. Re-granting after expiry extends from GrantedAt (now), not
// from the previous expiry.
type Grant struct {
	TeamID    string
	Status    Status
	GrantedAt time.Time
	ExpiresAt *time.Time
}

// PaymentEvent is an immutable record of one upstream payment
// notification, keyed by the provider-assigned idempotency key.
type PaymentEvent struct {
	ProviderKey string
	TeamID      string
	UserID      string
	AmountCents int64
	Currency    string
	Status      string
	PaidAt      time.Time
}

// PromoCode grants promo access. Code matching is case-insensitive. A nil
// MaxUses means unlimited global uses.
type PromoCode struct {
	ID             string
	Code           string
	IsActive       bool
	ExpiresAt      *time.Time
	MaxUses        *int
	MaxUsesPerUser int
	UseCount       int
}

// PromoRedemption is an immutable record of one successful redemption.
type PromoRedemption struct {
	ID          string
	UserID      string
	PromoCodeID string
	TeamID      string
	RedeemedAt  time.Time
}
