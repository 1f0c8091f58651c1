package usecase

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/access"
	"github.com/dugouthq/lineup-api/internal/domain/team"
	"github.com/dugouthq/lineup-api/internal/domain/user"
	"github.com/dugouthq/lineup-api/internal/infrastructure/repository/memory"
)

type seqIDGenerator struct {
	prefix string
	next   int
}

func (g *seqIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%03d", g.prefix, g.next), nil
}

func newAccessServiceForTest(grantDuration time.Duration) (*AccessService, *memory.AccessRepository) {
	accessRepo := memory.NewAccessRepository(memory.SeedPromoCodes())
	teamRepo := memory.NewTeamRepository(memory.SeedTeams())
	service := NewAccessService(accessRepo, teamRepo, &seqIDGenerator{prefix: "red"}, nil, grantDuration, 2900, "USD")

	return service, accessRepo
}

func TestAccessService_RecordPayment_IdempotentByProviderKey(t *testing.T) {
	service, accessRepo := newAccessServiceForTest(720 * time.Hour)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	input := RecordPaymentInput{
		ProviderKey: "evt-abc-123",
		TeamID:      memory.TeamIDRiverhawks,
		UserID:      memory.OwnerRiverhawks,
		AmountCents: 2900,
		Currency:    "usd",
		Status:      PaymentStatusSucceeded,
	}

	first, err := service.RecordPayment(t.Context(), input)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if first.Duplicate {
		t.Fatalf("first delivery must not be reported as duplicate")
	}
	if first.Access.Status != string(access.StatusPaidActive) {
		t.Fatalf("expected paid_active, got %s", first.Access.Status)
	}
	if first.Access.ExpiresAt == nil || !first.Access.ExpiresAt.Equal(now.Add(720*time.Hour)) {
		t.Fatalf("unexpected expiry: %v", first.Access.ExpiresAt)
	}

	// Replay of the same delivery a minute later leaves the grant as-is.
	service.now = func() time.Time { return now.Add(time.Minute) }
	second, err := service.RecordPayment(t.Context(), input)
	if err != nil {
		t.Fatalf("record payment replay: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("replayed delivery must be reported as duplicate")
	}
	if second.Access.ExpiresAt == nil || !second.Access.ExpiresAt.Equal(now.Add(720*time.Hour)) {
		t.Fatalf("replay must not extend the grant, got expiry %v", second.Access.ExpiresAt)
	}

	stored, ok, err := accessRepo.GetPaymentEventByProviderKey(t.Context(), "evt-abc-123")
	if err != nil || !ok {
		t.Fatalf("expected stored payment event, ok=%v err=%v", ok, err)
	}
	if stored.Currency != "USD" {
		t.Fatalf("expected normalized currency USD, got %s", stored.Currency)
	}
}

func TestAccessService_RecordPayment_FailedPaymentDoesNotGrant(t *testing.T) {
	service, _ := newAccessServiceForTest(720 * time.Hour)

	result, err := service.RecordPayment(t.Context(), RecordPaymentInput{
		ProviderKey: "evt-failed-1",
		TeamID:      memory.TeamIDRiverhawks,
		UserID:      memory.OwnerRiverhawks,
		AmountCents: 2900,
		Currency:    "USD",
		Status:      PaymentStatusFailed,
	})
	if err != nil {
		t.Fatalf("record failed payment: %v", err)
	}
	if result.Access.Status != string(access.StatusNone) {
		t.Fatalf("failed payment must not grant access, got %s", result.Access.Status)
	}

	// The event itself still lands so a replay stays a no-op.
	replay, err := service.RecordPayment(t.Context(), RecordPaymentInput{
		ProviderKey: "evt-failed-1",
		TeamID:      memory.TeamIDRiverhawks,
		Status:      PaymentStatusFailed,
	})
	if err != nil {
		t.Fatalf("replay failed payment: %v", err)
	}
	if !replay.Duplicate {
		t.Fatalf("expected duplicate on replayed failed payment")
	}
}

func TestAccessService_RecordPayment_Validation(t *testing.T) {
	service, _ := newAccessServiceForTest(0)

	cases := []struct {
		name  string
		input RecordPaymentInput
		want  error
	}{
		{"missing provider key", RecordPaymentInput{TeamID: memory.TeamIDRiverhawks, Status: PaymentStatusSucceeded}, ErrInvalidInput},
		{"missing team", RecordPaymentInput{ProviderKey: "evt-1", Status: PaymentStatusSucceeded}, ErrInvalidInput},
		{"bad status", RecordPaymentInput{ProviderKey: "evt-1", TeamID: memory.TeamIDRiverhawks, Status: "refunded"}, ErrInvalidInput},
		{"unknown team", RecordPaymentInput{ProviderKey: "evt-1", TeamID: "team-ghosts", Status: PaymentStatusSucceeded}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.RecordPayment(t.Context(), tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAccessService_RedeemPromo_GrantsPromoAccess(t *testing.T) {
	service, _ := newAccessServiceForTest(720 * time.Hour)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	// Code matching is case-insensitive.
	view, err := service.RedeemPromo(t.Context(), RedeemPromoInput{
		Principal: user.Principal{UserID: memory.OwnerRiverhawks},
		TeamID:    memory.TeamIDRiverhawks,
		Code:      "save10",
	})
	if err != nil {
		t.Fatalf("redeem promo: %v", err)
	}
	if view.Status != string(access.StatusPromoActive) {
		t.Fatalf("expected promo_active, got %s", view.Status)
	}
	if view.ExpiresAt == nil || !view.ExpiresAt.Equal(now.Add(720*time.Hour)) {
		t.Fatalf("unexpected expiry: %v", view.ExpiresAt)
	}
}

func TestAccessService_RedeemPromo_ActiveAccessCheckedBeforePerUserHistory(t *testing.T) {
	service, _ := newAccessServiceForTest(720 * time.Hour)
	service.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	input := RedeemPromoInput{
		Principal: user.Principal{UserID: memory.OwnerRiverhawks},
		TeamID:    memory.TeamIDRiverhawks,
		Code:      "SAVE10",
	}

	if _, err := service.RedeemPromo(t.Context(), input); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	// While access is active the team-level rejection wins over the
	// caller's own redemption history.
	_, err := service.RedeemPromo(t.Context(), input)
	if !errors.Is(err, ErrAlreadyHasAccess) {
		t.Fatalf("expected ErrAlreadyHasAccess, got %v", err)
	}
	var promoErr *PromoInvalidError
	if errors.As(err, &promoErr) {
		t.Fatalf("active access must not surface as a promo reason, got %s", promoErr.Reason)
	}
}

func TestAccessService_RedeemPromo_AlreadyUsedAfterExpiry(t *testing.T) {
	service, _ := newAccessServiceForTest(time.Hour)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return start }

	input := RedeemPromoInput{
		Principal: user.Principal{UserID: memory.OwnerRiverhawks},
		TeamID:    memory.TeamIDRiverhawks,
		Code:      "LAUNCH",
	}
	if _, err := service.RedeemPromo(t.Context(), input); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	// One second past expiry the team no longer has access, so the
	// per-user limit is what rejects the retry.
	service.now = func() time.Time { return start.Add(time.Hour + time.Second) }

	_, err := service.RedeemPromo(t.Context(), input)
	var promoErr *PromoInvalidError
	if !errors.As(err, &promoErr) || promoErr.Reason != PromoAlreadyUsed {
		t.Fatalf("expected already_used, got %v", err)
	}
}

func TestAccessService_RedeemPromo_RejectionReasons(t *testing.T) {
	yesterday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	zero := 0
	codes := []access.PromoCode{
		{ID: "promo-off", Code: "RETIRED", IsActive: false, MaxUsesPerUser: 1},
		{ID: "promo-old", Code: "SPRING25", IsActive: true, ExpiresAt: &yesterday, MaxUsesPerUser: 1},
		{ID: "promo-full", Code: "FULL", IsActive: true, MaxUses: &zero, MaxUsesPerUser: 1},
	}
	accessRepo := memory.NewAccessRepository(codes)
	teamRepo := memory.NewTeamRepository(memory.SeedTeams())
	service := NewAccessService(accessRepo, teamRepo, &seqIDGenerator{prefix: "red"}, nil, time.Hour, 2900, "USD")
	service.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	cases := []struct {
		name string
		code string
		want PromoReason
	}{
		{"unknown code", "NOPE", PromoNotFound},
		{"inactive code", "RETIRED", PromoInactive},
		{"expired code", "SPRING25", PromoExpired},
		{"global cap reached", "FULL", PromoLimitReached},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.RedeemPromo(t.Context(), RedeemPromoInput{
				Principal: user.Principal{UserID: memory.OwnerRiverhawks},
				TeamID:    memory.TeamIDRiverhawks,
				Code:      tc.code,
			})
			var promoErr *PromoInvalidError
			if !errors.As(err, &promoErr) || promoErr.Reason != tc.want {
				t.Fatalf("expected reason %s, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrPromoInvalid) {
				t.Fatalf("promo error must unwrap to ErrPromoInvalid")
			}
		})
	}
}

func TestAccessService_RedeemPromo_GlobalCapAcrossTeams(t *testing.T) {
	teams := []team.Team{
		{ID: "team-a", OwnerUserID: "user-a", Name: "A"},
		{ID: "team-b", OwnerUserID: "user-b", Name: "B"},
		{ID: "team-c", OwnerUserID: "user-c", Name: "C"},
	}
	accessRepo := memory.NewAccessRepository(memory.SeedPromoCodes())
	service := NewAccessService(accessRepo, memory.NewTeamRepository(teams), &seqIDGenerator{prefix: "red"}, nil, time.Hour, 2900, "USD")
	service.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	// SAVE10 is seeded with max_uses=2.
	for _, tm := range teams[:2] {
		if _, err := service.RedeemPromo(t.Context(), RedeemPromoInput{
			Principal: user.Principal{UserID: tm.OwnerUserID},
			TeamID:    tm.ID,
			Code:      "SAVE10",
		}); err != nil {
			t.Fatalf("redeem for %s: %v", tm.ID, err)
		}
	}

	_, err := service.RedeemPromo(t.Context(), RedeemPromoInput{
		Principal: user.Principal{UserID: "user-c"},
		TeamID:    "team-c",
		Code:      "SAVE10",
	})
	var promoErr *PromoInvalidError
	if !errors.As(err, &promoErr) || promoErr.Reason != PromoLimitReached {
		t.Fatalf("expected limit_reached on third redemption, got %v", err)
	}
}

func TestAccessService_RedeemPromo_RequiresTeamOwner(t *testing.T) {
	service, _ := newAccessServiceForTest(time.Hour)

	_, err := service.RedeemPromo(t.Context(), RedeemPromoInput{
		Principal: user.Principal{UserID: memory.OwnerBobcats},
		TeamID:    memory.TeamIDRiverhawks,
		Code:      "LAUNCH",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAccessService_GetTeamAccess_DerivesExpiredOnRead(t *testing.T) {
	service, _ := newAccessServiceForTest(time.Hour)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return start }

	owner := user.Principal{UserID: memory.OwnerRiverhawks}
	if _, err := service.RedeemPromo(t.Context(), RedeemPromoInput{
		Principal: owner,
		TeamID:    memory.TeamIDRiverhawks,
		Code:      "LAUNCH",
	}); err != nil {
		t.Fatalf("redeem promo: %v", err)
	}

	active, err := service.HasActiveAccess(t.Context(), memory.TeamIDRiverhawks)
	if err != nil || !active {
		t.Fatalf("expected active access, active=%v err=%v", active, err)
	}

	service.now = func() time.Time { return start.Add(time.Hour + time.Second) }

	view, err := service.GetTeamAccess(t.Context(), owner, memory.TeamIDRiverhawks)
	if err != nil {
		t.Fatalf("get team access: %v", err)
	}
	if view.Status != ViewStatusExpired {
		t.Fatalf("expected derived expired status, got %s", view.Status)
	}

	active, err = service.HasActiveAccess(t.Context(), memory.TeamIDRiverhawks)
	if err != nil || active {
		t.Fatalf("expected inactive access one second past expiry, active=%v err=%v", active, err)
	}
}

func TestAccessService_GetTeamAccess_OwnershipAndQuote(t *testing.T) {
	service, _ := newAccessServiceForTest(720 * time.Hour)

	_, err := service.GetTeamAccess(t.Context(), user.Principal{UserID: "user-random"}, memory.TeamIDRiverhawks)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}

	view, err := service.GetTeamAccess(t.Context(), user.Principal{UserID: "user-admin", Admin: true}, memory.TeamIDRiverhawks)
	if err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if view.Status != string(access.StatusNone) {
		t.Fatalf("expected none for ungranted team, got %s", view.Status)
	}

	quote := service.Quote()
	if quote.AmountCents != 2900 || quote.Currency != "USD" || quote.GrantDuration != 720*time.Hour {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}
