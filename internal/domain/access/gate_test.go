package access

import (
	"errors"
	"testing"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/user"
)

func timePtr(v time.Time) *time.Time { return &v }

func TestAuthorizeExport(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := timePtr(now.Add(time.Hour))
	past := timePtr(now.Add(-time.Second))

	cases := []struct {
		name   string
		p      user.Principal
		owner  string
		acc    TeamAccess
		reason DenyReason
	}{
		{
			name:  "owner with active paid access",
			p:     user.Principal{UserID: "u1"},
			owner: "u1",
			acc:   TeamAccess{Status: StatusPaidActive, GrantedAt: timePtr(now), ExpiresAt: future},
		},
		{
			name:  "admin bypasses ownership but not access",
			p:     user.Principal{UserID: "u2", Admin: true},
			owner: "u1",
			acc:   TeamAccess{Status: StatusPromoActive, GrantedAt: timePtr(now)},
		},
		{
			name:   "non-owner is denied before access is consulted",
			p:      user.Principal{UserID: "u2"},
			owner:  "u1",
			acc:    TeamAccess{Status: StatusPaidActive, GrantedAt: timePtr(now), ExpiresAt: future},
			reason: DenyNotOwner,
		},
		{
			name:   "never granted",
			p:      user.Principal{UserID: "u1"},
			owner:  "u1",
			acc:    TeamAccess{Status: StatusNone},
			reason: DenyNoAccess,
		},
		{
			name:   "expired one second ago still reads paid_active in storage",
			p:      user.Principal{UserID: "u1"},
			owner:  "u1",
			acc:    TeamAccess{Status: StatusPaidActive, GrantedAt: timePtr(now.Add(-time.Hour)), ExpiresAt: past},
			reason: DenyExpired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthorizeExport(tc.p, tc.owner, tc.acc, now)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}

			var denied *DeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("expected DeniedError, got %v", err)
			}
			if denied.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, denied.Reason)
			}
		})
	}
}

func TestTeamAccess_IsActiveAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	indefinite := TeamAccess{Status: StatusPaidActive, GrantedAt: timePtr(now)}
	if !indefinite.IsActiveAt(now.Add(24 * 365 * time.Hour)) {
		t.Fatal("nil expiry must never expire")
	}

	lapsed := TeamAccess{Status: StatusPromoActive, GrantedAt: timePtr(now), ExpiresAt: timePtr(now.Add(-time.Second))}
	if lapsed.IsActiveAt(now) {
		t.Fatal("past-dated expiry must read as inactive without a write")
	}

	none := TeamAccess{Status: StatusNone}
	if none.IsActiveAt(now) {
		t.Fatal("status none is never active")
	}
}
