package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/domain/user"
	"github.com/dugouthq/lineup-api/internal/infrastructure/repository/memory"
)

type fakeAssigner struct {
	fn    func(ctx context.Context, req OptimizeRequest) (OptimizeResponse, error)
	calls int
	last  OptimizeRequest
}

func (f *fakeAssigner) AssignPositions(ctx context.Context, req OptimizeRequest) (OptimizeResponse, error) {
	f.calls++
	f.last = req
	return f.fn(ctx, req)
}

func newOptimizeServiceForTest(assigner PositionAssigner) (*OptimizeService, *memory.LineupRepository) {
	playerRepo := memory.NewPlayerRepository(memory.SeedPlayers())
	gameRepo := memory.NewGameRepository(memory.SeedGames())
	lineupRepo := memory.NewLineupRepository()
	accessRepo := memory.NewAccessRepository(memory.SeedPromoCodes())

	stats := NewStatsService(playerRepo, gameRepo, lineupRepo, nil)
	lineups := NewLineupService(
		memory.NewTeamRepository(memory.SeedTeams()),
		playerRepo,
		gameRepo,
		lineupRepo,
		accessRepo,
		&seqIDGenerator{prefix: "lu"},
		nil,
	)
	lineups.now = func() time.Time { return time.Date(2026, 4, 12, 8, 0, 0, 0, time.UTC) }

	return NewOptimizeService(playerRepo, stats, lineups, assigner, nil), lineupRepo
}

func fullSlotAnswer(playerID, label string, slotCount int) AssignedPlayer {
	assignments := make(map[int]string, slotCount)
	for slot := 1; slot <= slotCount; slot++ {
		assignments[slot] = label
	}
	return AssignedPlayer{PlayerID: playerID, Assignments: assignments}
}

func TestOptimizeService_AutoAssign_ReconcilesOmittedPlayers(t *testing.T) {
	labels := []string{"P", "C", "1B", "2B", "3B", "SS", "LF", "CF"}
	assigner := &fakeAssigner{fn: func(_ context.Context, req OptimizeRequest) (OptimizeResponse, error) {
		// Place eight of the ten roster players, skip the last two.
		resp := OptimizeResponse{}
		for i, label := range labels {
			resp.Players = append(resp.Players, fullSlotAnswer(req.Players[i].PlayerID, label, req.SlotCount))
		}
		return resp, nil
	}}
	service, lineupRepo := newOptimizeServiceForTest(assigner)

	result, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerRiverhawks}, memory.GameIDOpener, nil)
	if err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if assigner.calls != 1 {
		t.Fatalf("expected exactly one optimizer call, got %d", assigner.calls)
	}
	if len(result.Lineup.Entries) != 10 {
		t.Fatalf("expected an entry for every roster player, got %d", len(result.Lineup.Entries))
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings for skipped players, got %v", result.Warnings)
	}

	// Placed players get contiguous batting orders in roster order.
	for i := 0; i < len(labels); i++ {
		entry := result.Lineup.Entries[i]
		if entry.BattingOrder == nil || *entry.BattingOrder != i+1 {
			t.Fatalf("expected batting order %d for entry %d, got %v", i+1, i, entry.BattingOrder)
		}
	}
	// Skipped players sit out every slot with no batting order.
	for _, entry := range result.Lineup.Entries[len(labels):] {
		if entry.BattingOrder != nil {
			t.Fatalf("synthesized entry must have nil batting order")
		}
		for slot := 1; slot <= 6; slot++ {
			if entry.Assignments[slot] != lineup.NotPlayingLabel {
				t.Fatalf("expected %s in slot %d, got %s", lineup.NotPlayingLabel, slot, entry.Assignments[slot])
			}
		}
	}

	if _, ok, _ := lineupRepo.GetByGame(t.Context(), memory.GameIDOpener); !ok {
		t.Fatalf("generated lineup must be persisted")
	}
}

func TestOptimizeService_AutoAssign_BattingOrderFollowsRosterOrder(t *testing.T) {
	labels := []string{"P", "C", "1B", "2B", "3B", "SS", "LF", "CF", "RF", "DH"}
	assigner := &fakeAssigner{fn: func(_ context.Context, req OptimizeRequest) (OptimizeResponse, error) {
		// Answer for every player in reverse of the order they were sent.
		resp := OptimizeResponse{}
		for i := len(req.Players) - 1; i >= 0; i-- {
			resp.Players = append(resp.Players, fullSlotAnswer(req.Players[i].PlayerID, labels[i], req.SlotCount))
		}
		return resp, nil
	}}
	service, _ := newOptimizeServiceForTest(assigner)

	result, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerRiverhawks}, memory.GameIDOpener, nil)
	if err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if len(result.Lineup.Entries) != len(assigner.last.Players) {
		t.Fatalf("expected %d entries, got %d", len(assigner.last.Players), len(result.Lineup.Entries))
	}

	// Batting order 1..N follows the order the players went out in, not
	// the order the optimizer answered in.
	for i, sent := range assigner.last.Players {
		entry := result.Lineup.Entries[i]
		if entry.PlayerID != sent.PlayerID {
			t.Fatalf("entry %d: expected player %s, got %s", i, sent.PlayerID, entry.PlayerID)
		}
		if entry.BattingOrder == nil || *entry.BattingOrder != i+1 {
			t.Fatalf("entry %d (%s): expected batting order %d, got %v", i, entry.PlayerID, i+1, entry.BattingOrder)
		}
	}
}

func TestOptimizeService_AutoAssign_FixedAssignmentsOverrideResponse(t *testing.T) {
	assigner := &fakeAssigner{fn: func(_ context.Context, req OptimizeRequest) (OptimizeResponse, error) {
		return OptimizeResponse{Players: []AssignedPlayer{fullSlotAnswer(req.Players[0].PlayerID, "SS", req.SlotCount)}}, nil
	}}
	service, _ := newOptimizeServiceForTest(assigner)

	fixed := map[string]map[int]string{"rvh-p-01": {1: "c"}}
	result, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerRiverhawks}, memory.GameIDOpener, fixed)
	if err != nil {
		t.Fatalf("auto assign: %v", err)
	}

	got, ok := assigner.last.FixedAssignments["rvh-p-01"]
	if !ok || got[1] != "C" {
		t.Fatalf("expected folded pinned slot in payload, got %v", assigner.last.FixedAssignments)
	}

	entry := result.Lineup.Entries[0]
	if entry.PlayerID != "rvh-p-01" {
		t.Fatalf("expected pinned player first, got %s", entry.PlayerID)
	}
	if entry.Assignments[1] != "C" {
		t.Fatalf("pinned slot must win over the optimizer answer, got %s", entry.Assignments[1])
	}
	if entry.Assignments[2] != "SS" {
		t.Fatalf("unpinned slots keep the optimizer answer, got %s", entry.Assignments[2])
	}
}

func TestOptimizeService_AutoAssign_RejectsBadFixedAssignments(t *testing.T) {
	cases := []struct {
		name  string
		fixed map[string]map[int]string
	}{
		{"unknown player", map[string]map[int]string{"player-ghost": {1: "SS"}}},
		{"slot out of range", map[string]map[int]string{"rvh-p-01": {7: "SS"}}},
		{"unknown label", map[string]map[int]string{"rvh-p-01": {1: "GOALIE"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assigner := &fakeAssigner{fn: func(_ context.Context, req OptimizeRequest) (OptimizeResponse, error) {
				return OptimizeResponse{}, nil
			}}
			service, _ := newOptimizeServiceForTest(assigner)

			_, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerRiverhawks}, memory.GameIDOpener, tc.fixed)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if assigner.calls != 0 {
				t.Fatalf("invalid pinned assignments must not reach the optimizer")
			}
		})
	}
}

func TestOptimizeService_AutoAssign_PayloadCarriesRosterAndStats(t *testing.T) {
	assigner := &fakeAssigner{fn: func(_ context.Context, req OptimizeRequest) (OptimizeResponse, error) {
		return OptimizeResponse{Players: []AssignedPlayer{fullSlotAnswer(req.Players[0].PlayerID, "SS", req.SlotCount)}}, nil
	}}
	service, _ := newOptimizeServiceForTest(assigner)

	if _, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerRiverhawks}, memory.GameIDRival, nil); err != nil {
		t.Fatalf("auto assign: %v", err)
	}

	if assigner.last.SlotCount != 7 {
		t.Fatalf("expected slot count 7, got %d", assigner.last.SlotCount)
	}
	if len(assigner.last.Players) != 10 {
		t.Fatalf("expected full roster in payload, got %d", len(assigner.last.Players))
	}
	for _, pl := range assigner.last.Players {
		if pl.Stats.PositionCounts == nil {
			t.Fatalf("expected stats populated for player %s", pl.PlayerID)
		}
	}
}

func TestOptimizeService_AutoAssign_MalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		fn   func(req OptimizeRequest) OptimizeResponse
	}{
		{"unknown player", func(req OptimizeRequest) OptimizeResponse {
			return OptimizeResponse{Players: []AssignedPlayer{fullSlotAnswer("player-ghost", "SS", req.SlotCount)}}
		}},
		{"duplicate player", func(req OptimizeRequest) OptimizeResponse {
			row := fullSlotAnswer(req.Players[0].PlayerID, "SS", req.SlotCount)
			return OptimizeResponse{Players: []AssignedPlayer{row, row}}
		}},
		{"slot out of range", func(req OptimizeRequest) OptimizeResponse {
			return OptimizeResponse{Players: []AssignedPlayer{{
				PlayerID:    req.Players[0].PlayerID,
				Assignments: map[int]string{req.SlotCount + 1: "SS"},
			}}}
		}},
		{"unknown label", func(req OptimizeRequest) OptimizeResponse {
			return OptimizeResponse{Players: []AssignedPlayer{{
				PlayerID:    req.Players[0].PlayerID,
				Assignments: map[int]string{1: "GOALIE"},
			}}}
		}},
		{"duplicate label in slot", func(req OptimizeRequest) OptimizeResponse {
			return OptimizeResponse{Players: []AssignedPlayer{
				fullSlotAnswer(req.Players[0].PlayerID, "SS", req.SlotCount),
				fullSlotAnswer(req.Players[1].PlayerID, "SS", req.SlotCount),
			}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assigner := &fakeAssigner{fn: func(_ context.Context, req OptimizeRequest) (OptimizeResponse, error) {
				return tc.fn(req), nil
			}}
			service, lineupRepo := newOptimizeServiceForTest(assigner)

			_, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerRiverhawks}, memory.GameIDOpener, nil)
			if !errors.Is(err, ErrOptimizerMalformedResponse) {
				t.Fatalf("expected ErrOptimizerMalformedResponse, got %v", err)
			}
			if _, ok, _ := lineupRepo.GetByGame(t.Context(), memory.GameIDOpener); ok {
				t.Fatalf("malformed response must not persist a lineup")
			}
		})
	}
}

func TestOptimizeService_AutoAssign_PropagatesOptimizerFailure(t *testing.T) {
	assigner := &fakeAssigner{fn: func(context.Context, OptimizeRequest) (OptimizeResponse, error) {
		return OptimizeResponse{}, fmt.Errorf("%w: connect refused", ErrOptimizerUnreachable)
	}}
	service, lineupRepo := newOptimizeServiceForTest(assigner)

	_, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerRiverhawks}, memory.GameIDOpener, nil)
	if !errors.Is(err, ErrOptimizerUnreachable) {
		t.Fatalf("expected ErrOptimizerUnreachable, got %v", err)
	}
	if assigner.calls != 1 {
		t.Fatalf("optimizer failures must not be retried, got %d calls", assigner.calls)
	}
	if _, ok, _ := lineupRepo.GetByGame(t.Context(), memory.GameIDOpener); ok {
		t.Fatalf("failed optimization must not persist a lineup")
	}
}

func TestOptimizeService_AutoAssign_AuthorizesOwner(t *testing.T) {
	assigner := &fakeAssigner{fn: func(_ context.Context, req OptimizeRequest) (OptimizeResponse, error) {
		return OptimizeResponse{}, nil
	}}
	service, _ := newOptimizeServiceForTest(assigner)

	_, err := service.AutoAssign(t.Context(), user.Principal{UserID: memory.OwnerBobcats}, memory.GameIDOpener, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if assigner.calls != 0 {
		t.Fatalf("unauthorized call must not reach the optimizer")
	}
}
