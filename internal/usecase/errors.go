package usecase

import (
	"errors"
	"fmt"

	"github.com/dugouthq/lineup-api/internal/domain/access"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	ErrAlreadyHasAccess = errors.New("team already has active access")
	ErrPromoInvalid     = errors.New("promo code cannot be redeemed")
	ErrAccessDenied     = errors.New("access denied")

	ErrOptimizerUnreachable       = errors.New("optimizer unreachable")
	ErrOptimizerRejected          = errors.New("optimizer rejected the request")
	ErrOptimizerMalformedResponse = errors.New("optimizer returned a malformed response")
)

// PromoReason is the machine-readable cause carried by PromoInvalidError.
type PromoReason string

const (
	PromoNotFound     PromoReason = "not_found"
	PromoInactive     PromoReason = "inactive"
	PromoExpired      PromoReason = "expired"
	PromoLimitReached PromoReason = "limit_reached"
	PromoAlreadyUsed  PromoReason = "already_used"
)

// PromoInvalidError wraps ErrPromoInvalid with the specific rejection
// reason so handlers can surface it without string matching.
type PromoInvalidError struct {
	Reason PromoReason
}

func (e *PromoInvalidError) Error() string {
	return fmt.Sprintf("promo code cannot be redeemed: %s", e.Reason)
}

func (e *PromoInvalidError) Unwrap() error {
	return ErrPromoInvalid
}

// AccessDeniedError wraps ErrAccessDenied with the gate's deny reason.
type AccessDeniedError struct {
	Reason access.DenyReason
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrAccessDenied
}
