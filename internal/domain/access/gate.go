package access

import (
	"fmt"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/user"
)

// DenyReason tells the caller which message to render: buy/redeem for
// no_access, renew for expired.
type DenyReason string

const (
	DenyNotOwner DenyReason = "not_owner"
	DenyNoAccess DenyReason = "no_access"
	DenyExpired  DenyReason = "expired"
)

type DeniedError struct {
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("export denied: %s", e.Reason)
}

// AuthorizeExport allows a lineup export iff the principal owns the team
// (or is an admin) and the team's access is currently active.
func AuthorizeExport(p user.Principal, ownerUserID string, acc TeamAccess, now time.Time) error {
	if !p.Admin && p.UserID != ownerUserID {
		return &DeniedError{Reason: DenyNotOwner}
	}
	if acc.IsActiveAt(now) {
		return nil
	}
	if acc.HasEverBeenGranted() {
		return &DeniedError{Reason: DenyExpired}
	}
	return &DeniedError{Reason: DenyNoAccess}
}
