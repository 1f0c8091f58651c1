package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/domain/player"
	"github.com/dugouthq/lineup-api/internal/domain/playerstats"
	"github.com/dugouthq/lineup-api/internal/domain/user"
	"github.com/dugouthq/lineup-api/internal/platform/logging"
)

// OptimizePlayer is one roster row in the outbound optimizer payload.
type OptimizePlayer struct {
	PlayerID            string            `json:"player_id"`
	Name                string            `json:"name"`
	PreferredPositions  []string          `json:"preferred_positions,omitempty"`
	RestrictedPositions []string          `json:"restricted_positions,omitempty"`
	Stats               playerstats.Stats `json:"stats"`
}

// OptimizeRequest is the single outbound call payload. Player order is
// the roster order and is authoritative for batting order downstream.
// FixedAssignments carries caller-pinned slot labels the optimizer must
// respect.
type OptimizeRequest struct {
	GameID           string                    `json:"game_id"`
	TeamID           string                    `json:"team_id"`
	SlotCount        int                       `json:"slot_count"`
	Players          []OptimizePlayer          `json:"players"`
	FixedAssignments map[string]map[int]string `json:"fixed_assignments,omitempty"`
}

// AssignedPlayer is one player's slot map in the optimizer response.
type AssignedPlayer struct {
	PlayerID    string         `json:"player_id"`
	Assignments map[int]string `json:"assignments"`
}

// OptimizeResponse is the optimizer's answer. Players absent from it are
// reconciled locally, never re-requested.
type OptimizeResponse struct {
	Players []AssignedPlayer `json:"players"`
}

// PositionAssigner is the external optimizer. Implementations make exactly
// one attempt per call: no retries, no deduplication of identical
// requests.
type PositionAssigner interface {
	AssignPositions(ctx context.Context, req OptimizeRequest) (OptimizeResponse, error)
}

// AutoAssignResult carries the persisted lineup plus reconciliation
// warnings for players the optimizer skipped.
type AutoAssignResult struct {
	Lineup   lineup.Lineup
	Warnings []string
}

// OptimizeService orchestrates one optimizer round trip: build the
// payload from roster and history, call out once, reconcile the response
// against the full roster and persist through the same validation path as
// a manual save.
type OptimizeService struct {
	playerRepo player.Repository
	stats      *StatsService
	lineups    *LineupService
	assigner   PositionAssigner
	logger     *logging.Logger
	poolSize   int
}

func NewOptimizeService(
	playerRepo player.Repository,
	stats *StatsService,
	lineups *LineupService,
	assigner PositionAssigner,
	logger *logging.Logger,
) *OptimizeService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &OptimizeService{
		playerRepo: playerRepo,
		stats:      stats,
		lineups:    lineups,
		assigner:   assigner,
		logger:     logger,
		poolSize:   runtime.GOMAXPROCS(0),
	}
}

// AutoAssign generates and persists a lineup for the game. Batting order
// numbers run 1, 2, 3... over the players the optimizer placed, in roster
// order, regardless of the order the response lists them in. Omitted
// roster players are written as sitting out every slot with no batting
// order. Entries in fixed win over the optimizer's answer slot by slot.
func (s *OptimizeService) AutoAssign(ctx context.Context, p user.Principal, gameID string, fixed map[string]map[int]string) (AutoAssignResult, error) {
	ctx, span := startUsecaseSpan(ctx, "OptimizeService.AutoAssign")
	defer span.End()

	if s.assigner == nil {
		return AutoAssignResult{}, fmt.Errorf("%w: optimizer is not configured", ErrDependencyUnavailable)
	}

	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return AutoAssignResult{}, fmt.Errorf("%w: game_id is required", ErrInvalidInput)
	}

	s.logger.DebugContext(ctx, "auto assign phase", "phase", "validating", "game_id", gameID)

	g, t, err := s.lineups.authorizeGameWrite(ctx, p, gameID)
	if err != nil {
		return AutoAssignResult{}, err
	}

	roster, err := s.playerRepo.ListByTeam(ctx, t.ID)
	if err != nil {
		return AutoAssignResult{}, fmt.Errorf("list roster: %w", err)
	}
	if len(roster) == 0 {
		return AutoAssignResult{}, fmt.Errorf("%w: team %s has no players", ErrInvalidInput, t.ID)
	}

	fixed, err = normalizeFixedAssignments(fixed, roster, g.SlotCount)
	if err != nil {
		return AutoAssignResult{}, err
	}

	s.logger.DebugContext(ctx, "auto assign phase", "phase", "building_payload", "game_id", gameID, "roster", len(roster))

	payload, err := s.buildPayload(ctx, g.ID, t.ID, g.SlotCount, roster, fixed)
	if err != nil {
		return AutoAssignResult{}, err
	}

	s.logger.DebugContext(ctx, "auto assign phase", "phase", "awaiting_external", "game_id", gameID)

	resp, err := s.assigner.AssignPositions(ctx, payload)
	if err != nil {
		return AutoAssignResult{}, fmt.Errorf("assign positions: %w", err)
	}

	s.logger.DebugContext(ctx, "auto assign phase", "phase", "reconciling", "game_id", gameID, "responded", len(resp.Players))

	entries, warnings, err := s.reconcile(g.SlotCount, roster, fixed, resp)
	if err != nil {
		return AutoAssignResult{}, err
	}

	saved, err := s.lineups.Finalize(ctx, FinalizeLineupInput{
		Principal: p,
		GameID:    gameID,
		Entries:   entries,
	})
	if err != nil {
		var dup *lineup.DuplicateAssignmentError
		if errors.As(err, &dup) {
			return AutoAssignResult{}, fmt.Errorf("%w: %s repeated in slot %d", ErrOptimizerMalformedResponse, dup.Label, dup.Slot)
		}
		return AutoAssignResult{}, err
	}

	s.logger.InfoContext(ctx, "auto assign persisted",
		"phase", "persisted",
		"game_id", gameID,
		"team_id", t.ID,
		"entries", len(saved.Entries),
		"warnings", len(warnings),
	)

	return AutoAssignResult{Lineup: saved, Warnings: warnings}, nil
}

// normalizeFixedAssignments folds every pinned label and rejects unknown
// players, out-of-range slots, and unknown labels before anything leaves
// the process.
func normalizeFixedAssignments(fixed map[string]map[int]string, roster []player.Player, slotCount int) (map[string]map[int]string, error) {
	if len(fixed) == 0 {
		return nil, nil
	}

	rosterIDs := make(map[string]struct{}, len(roster))
	for _, pl := range roster {
		rosterIDs[pl.ID] = struct{}{}
	}

	out := make(map[string]map[int]string, len(fixed))
	for pid, slots := range fixed {
		pid = strings.TrimSpace(pid)
		if _, ok := rosterIDs[pid]; !ok {
			return nil, fmt.Errorf("%w: fixed assignment references unknown player %s", ErrInvalidInput, pid)
		}
		if len(slots) == 0 {
			continue
		}
		folded := make(map[int]string, len(slots))
		for slot, label := range slots {
			if slot < 1 || slot > slotCount {
				return nil, fmt.Errorf("%w: fixed assignment slot %d out of range 1..%d for player %s", ErrInvalidInput, slot, slotCount, pid)
			}
			if !lineup.IsKnownLabel(label) {
				return nil, fmt.Errorf("%w: fixed assignment label %q is not a known position", ErrInvalidInput, label)
			}
			folded[slot] = strings.ToUpper(strings.TrimSpace(label))
		}
		out[pid] = folded
	}

	return out, nil
}

// buildPayload aggregates every roster player's stats concurrently over
// one shared history load.
func (s *OptimizeService) buildPayload(ctx context.Context, gameID, teamID string, slotCount int, roster []player.Player, fixed map[string]map[int]string) (OptimizeRequest, error) {
	history, err := s.stats.TeamHistory(ctx, teamID)
	if err != nil {
		return OptimizeRequest{}, err
	}

	players := make([]OptimizePlayer, len(roster))

	poolSize := s.poolSize
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return OptimizeRequest{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for i, pl := range roster {
		i, pl := i, pl
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			players[i] = OptimizePlayer{
				PlayerID:            pl.ID,
				Name:                pl.Name,
				PreferredPositions:  pl.PreferredPositions,
				RestrictedPositions: pl.RestrictedPositions,
				Stats:               playerstats.Aggregate(history, pl.ID),
			}
		}); err != nil {
			workers.Done()
			return OptimizeRequest{}, fmt.Errorf("submit stats task to worker pool: %w", err)
		}
	}
	workers.Wait()

	return OptimizeRequest{
		GameID:           gameID,
		TeamID:           teamID,
		SlotCount:        slotCount,
		Players:          players,
		FixedAssignments: fixed,
	}, nil
}

// reconcile merges the optimizer answer with the full roster. The roster
// order sent out is authoritative: placed players take consecutive
// batting orders 1..N in that order no matter how the response is
// sorted, and fixed slot labels override whatever the optimizer answered.
// Response rows must reference roster players exactly once with in-range
// slots and known labels; anything else is a malformed response, not a
// local bug.
func (s *OptimizeService) reconcile(slotCount int, roster []player.Player, fixed map[string]map[int]string, resp OptimizeResponse) ([]LineupEntryInput, []string, error) {
	rosterIDs := make(map[string]player.Player, len(roster))
	for _, pl := range roster {
		rosterIDs[pl.ID] = pl
	}

	answers := make(map[string]AssignedPlayer, len(resp.Players))
	for _, answer := range resp.Players {
		pid := strings.TrimSpace(answer.PlayerID)
		if pid == "" {
			return nil, nil, fmt.Errorf("%w: response entry missing player_id", ErrOptimizerMalformedResponse)
		}
		if _, ok := rosterIDs[pid]; !ok {
			return nil, nil, fmt.Errorf("%w: unknown player %s in response", ErrOptimizerMalformedResponse, pid)
		}
		if _, dup := answers[pid]; dup {
			return nil, nil, fmt.Errorf("%w: player %s appears twice in response", ErrOptimizerMalformedResponse, pid)
		}
		answers[pid] = answer
	}

	entries := make([]LineupEntryInput, 0, len(roster))
	var warnings []string
	nextOrder := 1

	for _, pl := range roster {
		answer, placed := answers[pl.ID]
		if !placed {
			assignments := make(map[int]string, slotCount)
			for slot := 1; slot <= slotCount; slot++ {
				assignments[slot] = lineup.NotPlayingLabel
			}
			entries = append(entries, LineupEntryInput{
				PlayerID:    pl.ID,
				Assignments: assignments,
			})
			warnings = append(warnings, fmt.Sprintf("player %s (%s) was not placed by the optimizer and is marked %s for all slots", pl.Name, pl.ID, lineup.NotPlayingLabel))
			continue
		}

		assignments := make(map[int]string, slotCount)
		for slot, label := range answer.Assignments {
			if slot < 1 || slot > slotCount {
				return nil, nil, fmt.Errorf("%w: slot %d out of range 1..%d for player %s", ErrOptimizerMalformedResponse, slot, slotCount, pl.ID)
			}
			folded := strings.ToUpper(strings.TrimSpace(label))
			if folded == "" || !lineup.IsKnownLabel(folded) {
				return nil, nil, fmt.Errorf("%w: unknown label %q for player %s", ErrOptimizerMalformedResponse, label, pl.ID)
			}
			assignments[slot] = folded
		}
		for slot, label := range fixed[pl.ID] {
			assignments[slot] = label
		}
		// Slots left unassigned read as sitting out.
		for slot := 1; slot <= slotCount; slot++ {
			if _, ok := assignments[slot]; !ok {
				assignments[slot] = lineup.NotPlayingLabel
			}
		}

		order := nextOrder
		nextOrder++
		entries = append(entries, LineupEntryInput{
			PlayerID:     pl.ID,
			Assignments:  assignments,
			BattingOrder: &order,
		})
	}

	return entries, warnings, nil
}
