package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/access"
	"github.com/dugouthq/lineup-api/internal/domain/game"
	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/domain/player"
	"github.com/dugouthq/lineup-api/internal/domain/team"
	"github.com/dugouthq/lineup-api/internal/domain/user"
	"github.com/dugouthq/lineup-api/internal/platform/id"
	"github.com/dugouthq/lineup-api/internal/platform/logging"
)

type LineupEntryInput struct {
	PlayerID     string
	Assignments  map[int]string
	BattingOrder *int
}

type FinalizeLineupInput struct {
	Principal user.Principal
	GameID    string
	Entries   []LineupEntryInput
}

// ExportRow is one player's line on the printable sheet.
type ExportRow struct {
	PlayerID     string         `json:"player_id"`
	PlayerName   string         `json:"player_name"`
	Assignments  map[int]string `json:"assignments"`
	BattingOrder *int           `json:"batting_order,omitempty"`
}

// LineupExport is the full export view of a finalized lineup.
type LineupExport struct {
	GameID      string      `json:"game_id"`
	TeamID      string      `json:"team_id"`
	Opponent    string      `json:"opponent"`
	SlotCount   int         `json:"slot_count"`
	FinalizedAt *time.Time  `json:"finalized_at,omitempty"`
	Rows        []ExportRow `json:"rows"`
}

// LineupService validates and persists lineups and serves the gated
// export view. Every persist path, manual or generated, runs the same
// validation.
type LineupService struct {
	teamRepo   team.Repository
	playerRepo player.Repository
	gameRepo   game.Repository
	lineupRepo lineup.Repository
	accessRepo access.Repository
	idGen      id.Generator
	logger     *logging.Logger
	now        func() time.Time
}

func NewLineupService(
	teamRepo team.Repository,
	playerRepo player.Repository,
	gameRepo game.Repository,
	lineupRepo lineup.Repository,
	accessRepo access.Repository,
	idGen id.Generator,
	logger *logging.Logger,
) *LineupService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &LineupService{
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		gameRepo:   gameRepo,
		lineupRepo: lineupRepo,
		accessRepo: accessRepo,
		idGen:      idGen,
		logger:     logger,
		now:        time.Now,
	}
}

// Finalize validates and saves the full lineup for a game. The first save
// stamps FinalizedAt; later edits replace the entries but keep the stamp.
// Duplicate non-excluded labels within a slot fail with
// *lineup.DuplicateAssignmentError before anything is written.
func (s *LineupService) Finalize(ctx context.Context, input FinalizeLineupInput) (lineup.Lineup, error) {
	ctx, span := startUsecaseSpan(ctx, "LineupService.Finalize")
	defer span.End()

	input.GameID = strings.TrimSpace(input.GameID)
	if input.GameID == "" {
		return lineup.Lineup{}, fmt.Errorf("%w: game_id is required", ErrInvalidInput)
	}
	if len(input.Entries) == 0 {
		return lineup.Lineup{}, fmt.Errorf("%w: lineup must contain at least one entry", ErrInvalidInput)
	}

	g, t, err := s.authorizeGameWrite(ctx, input.Principal, input.GameID)
	if err != nil {
		return lineup.Lineup{}, err
	}

	entries, err := s.normalizeEntries(ctx, t.ID, g.SlotCount, input.Entries)
	if err != nil {
		return lineup.Lineup{}, err
	}

	if err := lineup.ValidateExclusivity(entries, g.SlotCount); err != nil {
		return lineup.Lineup{}, err
	}

	now := s.now().UTC()
	item := lineup.Lineup{
		GameID:    g.ID,
		TeamID:    t.ID,
		Entries:   entries,
		UpdatedAt: now,
	}

	existing, exists, err := s.lineupRepo.GetByGame(ctx, g.ID)
	if err != nil {
		return lineup.Lineup{}, fmt.Errorf("get existing lineup: %w", err)
	}
	if exists {
		item.ID = existing.ID
		item.FinalizedAt = existing.FinalizedAt
	} else {
		newID, err := s.idGen.NewID()
		if err != nil {
			return lineup.Lineup{}, fmt.Errorf("generate lineup id: %w", err)
		}
		item.ID = newID
	}
	if item.FinalizedAt == nil {
		item.FinalizedAt = &now
	}

	if err := s.lineupRepo.Upsert(ctx, item); err != nil {
		return lineup.Lineup{}, fmt.Errorf("save lineup: %w", err)
	}

	s.logger.InfoContext(ctx, "lineup finalized",
		"lineup_id", item.ID,
		"game_id", g.ID,
		"team_id", t.ID,
		"entries", len(item.Entries),
	)

	return item, nil
}

// Export returns the printable lineup sheet. The caller must own the team
// and the team must hold currently active access; a lapsed grant denies
// with reason expired so the client can prompt a renewal.
func (s *LineupService) Export(ctx context.Context, p user.Principal, gameID string) (LineupExport, error) {
	ctx, span := startUsecaseSpan(ctx, "LineupService.Export")
	defer span.End()

	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return LineupExport{}, fmt.Errorf("%w: game_id is required", ErrInvalidInput)
	}

	g, ok, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return LineupExport{}, fmt.Errorf("get game: %w", err)
	}
	if !ok {
		return LineupExport{}, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}

	t, ok, err := s.teamRepo.GetByID(ctx, g.TeamID)
	if err != nil {
		return LineupExport{}, fmt.Errorf("get team: %w", err)
	}
	if !ok {
		return LineupExport{}, fmt.Errorf("%w: team %s", ErrNotFound, g.TeamID)
	}

	acc, _, err := s.accessRepo.GetTeamAccess(ctx, t.ID)
	if err != nil {
		return LineupExport{}, fmt.Errorf("get team access: %w", err)
	}
	if err := access.AuthorizeExport(p, t.OwnerUserID, acc, s.now().UTC()); err != nil {
		var denied *access.DeniedError
		if errors.As(err, &denied) {
			return LineupExport{}, &AccessDeniedError{Reason: denied.Reason}
		}
		return LineupExport{}, err
	}

	item, ok, err := s.lineupRepo.GetByGame(ctx, gameID)
	if err != nil {
		return LineupExport{}, fmt.Errorf("get lineup: %w", err)
	}
	if !ok {
		return LineupExport{}, fmt.Errorf("%w: no lineup for game %s", ErrNotFound, gameID)
	}

	playerIDs := make([]string, 0, len(item.Entries))
	for _, entry := range item.Entries {
		playerIDs = append(playerIDs, entry.PlayerID)
	}
	players, err := s.playerRepo.GetByIDs(ctx, t.ID, playerIDs)
	if err != nil {
		return LineupExport{}, fmt.Errorf("get players for export: %w", err)
	}
	namesByID := make(map[string]string, len(players))
	for _, pl := range players {
		namesByID[pl.ID] = pl.Name
	}

	rows := make([]ExportRow, 0, len(item.Entries))
	for _, entry := range item.Entries {
		rows = append(rows, ExportRow{
			PlayerID:     entry.PlayerID,
			PlayerName:   namesByID[entry.PlayerID],
			Assignments:  entry.Assignments,
			BattingOrder: entry.BattingOrder,
		})
	}
	sortExportRows(rows)

	return LineupExport{
		GameID:      g.ID,
		TeamID:      t.ID,
		Opponent:    g.Opponent,
		SlotCount:   g.SlotCount,
		FinalizedAt: item.FinalizedAt,
		Rows:        rows,
	}, nil
}

func (s *LineupService) authorizeGameWrite(ctx context.Context, p user.Principal, gameID string) (game.Game, team.Team, error) {
	g, ok, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return game.Game{}, team.Team{}, fmt.Errorf("get game: %w", err)
	}
	if !ok {
		return game.Game{}, team.Team{}, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}

	t, ok, err := s.teamRepo.GetByID(ctx, g.TeamID)
	if err != nil {
		return game.Game{}, team.Team{}, fmt.Errorf("get team: %w", err)
	}
	if !ok {
		return game.Game{}, team.Team{}, fmt.Errorf("%w: team %s", ErrNotFound, g.TeamID)
	}
	if !p.Admin && t.OwnerUserID != p.UserID {
		return game.Game{}, team.Team{}, fmt.Errorf("%w: only the team owner can write this lineup", ErrUnauthorized)
	}

	return g, t, nil
}

// normalizeEntries folds labels to their canonical form and rejects
// unknown players, duplicate players, out-of-range slots and unknown
// labels before any business rule runs.
func (s *LineupService) normalizeEntries(ctx context.Context, teamID string, slotCount int, inputs []LineupEntryInput) ([]lineup.Entry, error) {
	playerIDs := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		pid := strings.TrimSpace(in.PlayerID)
		if pid == "" {
			return nil, fmt.Errorf("%w: entry player_id cannot be empty", ErrInvalidInput)
		}
		if _, dup := seen[pid]; dup {
			return nil, fmt.Errorf("%w: duplicate entry for player %s", ErrInvalidInput, pid)
		}
		seen[pid] = struct{}{}
		playerIDs = append(playerIDs, pid)
	}

	players, err := s.playerRepo.GetByIDs(ctx, teamID, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("get players by ids: %w", err)
	}
	if len(players) != len(playerIDs) {
		return nil, fmt.Errorf("%w: some players do not belong to team %s", ErrInvalidInput, teamID)
	}

	entries := make([]lineup.Entry, 0, len(inputs))
	for _, in := range inputs {
		assignments := make(map[int]string, len(in.Assignments))
		for slot, label := range in.Assignments {
			if slot < 1 || slot > slotCount {
				return nil, fmt.Errorf("%w: slot %d out of range 1..%d", ErrInvalidInput, slot, slotCount)
			}
			folded := strings.ToUpper(strings.TrimSpace(label))
			if folded == "" {
				continue
			}
			if !lineup.IsKnownLabel(folded) {
				return nil, fmt.Errorf("%w: unknown position label %q", ErrInvalidInput, label)
			}
			assignments[slot] = folded
		}

		var battingOrder *int
		if in.BattingOrder != nil {
			if *in.BattingOrder < 1 {
				return nil, fmt.Errorf("%w: batting order must be >= 1", ErrInvalidInput)
			}
			order := *in.BattingOrder
			battingOrder = &order
		}

		entries = append(entries, lineup.Entry{
			PlayerID:     strings.TrimSpace(in.PlayerID),
			Assignments:  assignments,
			BattingOrder: battingOrder,
		})
	}

	return entries, nil
}

func sortExportRows(rows []ExportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		oi, oj := rows[i].BattingOrder, rows[j].BattingOrder
		switch {
		case oi != nil && oj != nil && *oi != *oj:
			return *oi < *oj
		case oi != nil && oj == nil:
			return true
		case oi == nil && oj != nil:
			return false
		}
		return rows[i].PlayerName < rows[j].PlayerName
	})
}
