package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
)

type lineupTableModel struct {
	ID          string     `db:"id"`
	GameID      string     `db:"game_id"`
	TeamID      string     `db:"team_id"`
	Entries     []byte     `db:"entries"`
	FinalizedAt *time.Time `db:"finalized_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// lineupEntryModel is the JSONB shape of one entry. Slot keys are
// stringified 1-based numbers because JSON objects cannot key on ints.
type lineupEntryModel struct {
	PlayerID     string            `json:"player_id"`
	Assignments  map[string]string `json:"assignments"`
	BattingOrder *int              `json:"batting_order,omitempty"`
}

type LineupRepository struct {
	db *sqlx.DB
}

func NewLineupRepository(db *sqlx.DB) *LineupRepository {
	return &LineupRepository{db: db}
}

func (r *LineupRepository) GetByGame(ctx context.Context, gameID string) (lineup.Lineup, bool, error) {
	const query = `SELECT id, game_id, team_id, entries, finalized_at, updated_at FROM lineups WHERE game_id = $1`

	var row lineupTableModel
	if err := r.db.GetContext(ctx, &row, query, gameID); err != nil {
		if isNotFound(err) {
			return lineup.Lineup{}, false, nil
		}
		return lineup.Lineup{}, false, fmt.Errorf("get lineup by game: %w", err)
	}

	item, err := lineupFromRow(row)
	if err != nil {
		return lineup.Lineup{}, false, err
	}
	return item, true, nil
}

func (r *LineupRepository) ListFinalizedByTeam(ctx context.Context, teamID string) ([]lineup.Lineup, error) {
	const query = `SELECT id, game_id, team_id, entries, finalized_at, updated_at
FROM lineups
WHERE team_id = $1 AND finalized_at IS NOT NULL
ORDER BY finalized_at`

	var rows []lineupTableModel
	if err := r.db.SelectContext(ctx, &rows, query, teamID); err != nil {
		return nil, fmt.Errorf("list finalized lineups: %w", err)
	}

	out := make([]lineup.Lineup, 0, len(rows))
	for _, row := range rows {
		item, err := lineupFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *LineupRepository) Upsert(ctx context.Context, item lineup.Lineup) error {
	entries, err := encodeEntries(item.Entries)
	if err != nil {
		return err
	}

	const query = `INSERT INTO lineups (id, game_id, team_id, entries, finalized_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (game_id)
DO UPDATE SET
    entries = EXCLUDED.entries,
    finalized_at = EXCLUDED.finalized_at,
    updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, item.ID, item.GameID, item.TeamID, entries, item.FinalizedAt, item.UpdatedAt); err != nil {
		return fmt.Errorf("upsert lineup: %w", err)
	}
	return nil
}

func encodeEntries(entries []lineup.Entry) ([]byte, error) {
	models := make([]lineupEntryModel, 0, len(entries))
	for _, entry := range entries {
		assignments := make(map[string]string, len(entry.Assignments))
		for slot, label := range entry.Assignments {
			assignments[strconv.Itoa(slot)] = label
		}
		models = append(models, lineupEntryModel{
			PlayerID:     entry.PlayerID,
			Assignments:  assignments,
			BattingOrder: entry.BattingOrder,
		})
	}

	raw, err := sonic.Marshal(models)
	if err != nil {
		return nil, fmt.Errorf("encode lineup entries: %w", err)
	}
	return raw, nil
}

func lineupFromRow(row lineupTableModel) (lineup.Lineup, error) {
	var models []lineupEntryModel
	if len(row.Entries) > 0 {
		if err := sonic.Unmarshal(row.Entries, &models); err != nil {
			return lineup.Lineup{}, fmt.Errorf("decode lineup %s entries: %w", row.ID, err)
		}
	}

	entries := make([]lineup.Entry, 0, len(models))
	for _, model := range models {
		assignments := make(map[int]string, len(model.Assignments))
		for key, label := range model.Assignments {
			slot, err := strconv.Atoi(key)
			if err != nil {
				return lineup.Lineup{}, fmt.Errorf("decode lineup %s: bad slot key %q", row.ID, key)
			}
			assignments[slot] = label
		}
		entries = append(entries, lineup.Entry{
			PlayerID:     model.PlayerID,
			Assignments:  assignments,
			BattingOrder: model.BattingOrder,
		})
	}

	return lineup.Lineup{
		ID:          row.ID,
		GameID:      row.GameID,
		TeamID:      row.TeamID,
		Entries:     entries,
		FinalizedAt: row.FinalizedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
