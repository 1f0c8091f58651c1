package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/access"
	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/domain/user"
	"github.com/dugouthq/lineup-api/internal/infrastructure/repository/memory"
)

func newLineupServiceForTest() (*LineupService, *memory.LineupRepository, *memory.AccessRepository) {
	lineupRepo := memory.NewLineupRepository()
	accessRepo := memory.NewAccessRepository(memory.SeedPromoCodes())
	service := NewLineupService(
		memory.NewTeamRepository(memory.SeedTeams()),
		memory.NewPlayerRepository(memory.SeedPlayers()),
		memory.NewGameRepository(memory.SeedGames()),
		lineupRepo,
		accessRepo,
		&seqIDGenerator{prefix: "lu"},
		nil,
	)

	return service, lineupRepo, accessRepo
}

func orderOf(n int) *int {
	return &n
}

func openerEntries() []LineupEntryInput {
	return []LineupEntryInput{
		{PlayerID: "rvh-p-01", Assignments: map[int]string{1: "P", 2: "P", 3: "1B", 4: "OUT", 5: "1B", 6: "1B"}, BattingOrder: orderOf(1)},
		{PlayerID: "rvh-p-02", Assignments: map[int]string{1: "SS", 2: "SS", 3: "SS", 4: "SS", 5: "SS", 6: "SS"}, BattingOrder: orderOf(2)},
		{PlayerID: "rvh-p-03", Assignments: map[int]string{1: "C", 2: "C", 3: "C", 4: "C", 5: "BENCH", 6: "BENCH"}, BattingOrder: orderOf(3)},
		{PlayerID: "rvh-p-04", Assignments: map[int]string{1: "OUT", 2: "OUT", 3: "OUT", 4: "OUT", 5: "OUT", 6: "OUT"}},
	}
}

func TestLineupService_Finalize_StampsFinalizedAtOnce(t *testing.T) {
	service, _, _ := newLineupServiceForTest()

	firstNow := time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return firstNow }

	owner := user.Principal{UserID: memory.OwnerRiverhawks}
	created, err := service.Finalize(t.Context(), FinalizeLineupInput{
		Principal: owner,
		GameID:    memory.GameIDOpener,
		Entries:   openerEntries(),
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if created.ID != "lu-001" {
		t.Fatalf("unexpected lineup id %s", created.ID)
	}
	if created.FinalizedAt == nil || !created.FinalizedAt.Equal(firstNow) {
		t.Fatalf("expected FinalizedAt %v, got %v", firstNow, created.FinalizedAt)
	}

	secondNow := firstNow.Add(30 * time.Minute)
	service.now = func() time.Time { return secondNow }

	updated, err := service.Finalize(t.Context(), FinalizeLineupInput{
		Principal: owner,
		GameID:    memory.GameIDOpener,
		Entries:   openerEntries()[:3],
	})
	if err != nil {
		t.Fatalf("finalize again: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("re-save must keep the lineup id, got %s", updated.ID)
	}
	if !updated.FinalizedAt.Equal(firstNow) {
		t.Fatalf("re-save must preserve FinalizedAt, got %v", updated.FinalizedAt)
	}
	if !updated.UpdatedAt.Equal(secondNow) {
		t.Fatalf("expected UpdatedAt %v, got %v", secondNow, updated.UpdatedAt)
	}
	if len(updated.Entries) != 3 {
		t.Fatalf("expected replaced entries, got %d", len(updated.Entries))
	}
}

func TestLineupService_Finalize_RejectsDuplicateLabelInSlot(t *testing.T) {
	service, lineupRepo, _ := newLineupServiceForTest()

	entries := openerEntries()
	// Second shortstop in slot 3, lowercased to prove case folding.
	entries[0].Assignments[3] = "ss"

	_, err := service.Finalize(t.Context(), FinalizeLineupInput{
		Principal: user.Principal{UserID: memory.OwnerRiverhawks},
		GameID:    memory.GameIDOpener,
		Entries:   entries,
	})
	var dup *lineup.DuplicateAssignmentError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAssignmentError, got %v", err)
	}
	if dup.Slot != 3 || dup.Label != "SS" {
		t.Fatalf("unexpected conflict: slot=%d label=%s", dup.Slot, dup.Label)
	}

	if _, ok, _ := lineupRepo.GetByGame(t.Context(), memory.GameIDOpener); ok {
		t.Fatalf("rejected lineup must not be persisted")
	}
}

func TestLineupService_Finalize_Validation(t *testing.T) {
	service, _, _ := newLineupServiceForTest()
	owner := user.Principal{UserID: memory.OwnerRiverhawks}

	t.Run("non-owner", func(t *testing.T) {
		_, err := service.Finalize(t.Context(), FinalizeLineupInput{
			Principal: user.Principal{UserID: memory.OwnerBobcats},
			GameID:    memory.GameIDOpener,
			Entries:   openerEntries(),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown game", func(t *testing.T) {
		_, err := service.Finalize(t.Context(), FinalizeLineupInput{
			Principal: owner,
			GameID:    "game-ghost",
			Entries:   openerEntries(),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("player from another team", func(t *testing.T) {
		entries := openerEntries()
		entries[0].PlayerID = "bob-p-01"
		_, err := service.Finalize(t.Context(), FinalizeLineupInput{Principal: owner, GameID: memory.GameIDOpener, Entries: entries})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("slot out of range", func(t *testing.T) {
		entries := openerEntries()
		entries[0].Assignments[7] = "P"
		_, err := service.Finalize(t.Context(), FinalizeLineupInput{Principal: owner, GameID: memory.GameIDOpener, Entries: entries})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unknown label", func(t *testing.T) {
		entries := openerEntries()
		entries[0].Assignments[1] = "GOALIE"
		_, err := service.Finalize(t.Context(), FinalizeLineupInput{Principal: owner, GameID: memory.GameIDOpener, Entries: entries})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("duplicate player entry", func(t *testing.T) {
		entries := append(openerEntries(), LineupEntryInput{PlayerID: "rvh-p-01", Assignments: map[int]string{1: "OUT"}})
		_, err := service.Finalize(t.Context(), FinalizeLineupInput{Principal: owner, GameID: memory.GameIDOpener, Entries: entries})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestLineupService_Export_GatedByOwnershipAndAccess(t *testing.T) {
	service, _, accessRepo := newLineupServiceForTest()

	now := time.Date(2026, 4, 11, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	owner := user.Principal{UserID: memory.OwnerRiverhawks}
	if _, err := service.Finalize(t.Context(), FinalizeLineupInput{
		Principal: owner,
		GameID:    memory.GameIDOpener,
		Entries:   openerEntries(),
	}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	assertDenied := func(t *testing.T, err error, want access.DenyReason) {
		t.Helper()
		var denied *AccessDeniedError
		if !errors.As(err, &denied) || denied.Reason != want {
			t.Fatalf("expected deny reason %s, got %v", want, err)
		}
		if !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("deny must unwrap to ErrAccessDenied")
		}
	}

	t.Run("not owner", func(t *testing.T) {
		_, err := service.Export(t.Context(), user.Principal{UserID: memory.OwnerBobcats}, memory.GameIDOpener)
		assertDenied(t, err, access.DenyNotOwner)
	})

	t.Run("no access", func(t *testing.T) {
		_, err := service.Export(t.Context(), owner, memory.GameIDOpener)
		assertDenied(t, err, access.DenyNoAccess)
	})

	expiresAt := now.Add(time.Hour)
	grant := &access.Grant{TeamID: memory.TeamIDRiverhawks, Status: access.StatusPaidActive, GrantedAt: now, ExpiresAt: &expiresAt}
	if err := accessRepo.RecordPaymentAndGrant(t.Context(), access.PaymentEvent{ProviderKey: "evt-export", TeamID: memory.TeamIDRiverhawks, Status: PaymentStatusSucceeded, PaidAt: now}, grant); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	t.Run("active access exports", func(t *testing.T) {
		export, err := service.Export(t.Context(), owner, memory.GameIDOpener)
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if export.SlotCount != 6 || export.Opponent != "Bobcats" {
			t.Fatalf("unexpected export header: %+v", export)
		}
		if len(export.Rows) != 4 {
			t.Fatalf("expected 4 rows, got %d", len(export.Rows))
		}
		// Batting order first, unordered players last.
		if export.Rows[0].PlayerID != "rvh-p-01" || export.Rows[3].BattingOrder != nil {
			t.Fatalf("unexpected row ordering: %+v", export.Rows)
		}
		if export.Rows[0].PlayerName != "Avery" {
			t.Fatalf("expected resolved player name, got %q", export.Rows[0].PlayerName)
		}
	})

	t.Run("expired access denies with renew reason", func(t *testing.T) {
		service.now = func() time.Time { return now.Add(time.Hour + time.Second) }
		_, err := service.Export(t.Context(), owner, memory.GameIDOpener)
		assertDenied(t, err, access.DenyExpired)
	})
}
