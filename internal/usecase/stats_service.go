package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/game"
	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/domain/player"
	"github.com/dugouthq/lineup-api/internal/domain/playerstats"
	"github.com/dugouthq/lineup-api/internal/platform/logging"
)

// StatsService recomputes player participation stats from finalized
// lineups on every call. Nothing here is cached: a stale percentage is
// worse than the extra reads.
type StatsService struct {
	playerRepo player.Repository
	gameRepo   game.Repository
	lineupRepo lineup.Repository
	logger     *logging.Logger
	now        func() time.Time
}

func NewStatsService(
	playerRepo player.Repository,
	gameRepo game.Repository,
	lineupRepo lineup.Repository,
	logger *logging.Logger,
) *StatsService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &StatsService{
		playerRepo: playerRepo,
		gameRepo:   gameRepo,
		lineupRepo: lineupRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// PlayerStats aggregates one player's history across every finalized
// lineup of their team. A player with no team yields the zero value.
func (s *StatsService) PlayerStats(ctx context.Context, playerID string) (playerstats.Stats, error) {
	ctx, span := startUsecaseSpan(ctx, "StatsService.PlayerStats")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return playerstats.Stats{}, fmt.Errorf("%w: player_id is required", ErrInvalidInput)
	}

	item, ok, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return playerstats.Stats{}, fmt.Errorf("get player: %w", err)
	}
	if !ok {
		return playerstats.Stats{}, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if strings.TrimSpace(item.TeamID) == "" {
		return playerstats.Stats{PositionCounts: map[string]int{}}, nil
	}

	history, err := s.TeamHistory(ctx, item.TeamID)
	if err != nil {
		return playerstats.Stats{}, err
	}

	return playerstats.Aggregate(history, playerID), nil
}

// TeamHistory loads every finalized lineup of a team together with its
// game's slot count. Lineups whose game can no longer be resolved are
// skipped rather than failing the whole aggregation.
func (s *StatsService) TeamHistory(ctx context.Context, teamID string) ([]playerstats.FinalizedLineup, error) {
	lineups, err := s.lineupRepo.ListFinalizedByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list finalized lineups: %w", err)
	}

	history := make([]playerstats.FinalizedLineup, 0, len(lineups))
	for _, item := range lineups {
		g, ok, err := s.gameRepo.GetByID(ctx, item.GameID)
		if err != nil {
			return nil, fmt.Errorf("get game %s for lineup history: %w", item.GameID, err)
		}
		if !ok || g.SlotCount <= 0 {
			s.logger.WarnContext(ctx, "skipping finalized lineup with unresolved game",
				"lineup_id", item.ID,
				"game_id", item.GameID,
			)
			continue
		}

		history = append(history, playerstats.FinalizedLineup{
			SlotCount: g.SlotCount,
			Entries:   item.Entries,
		})
	}

	return history, nil
}
