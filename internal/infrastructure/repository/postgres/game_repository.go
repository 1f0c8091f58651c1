package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dugouthq/lineup-api/internal/domain/game"
)

type gameTableModel struct {
	ID        string    `db:"id"`
	TeamID    string    `db:"team_id"`
	Opponent  string    `db:"opponent"`
	SlotCount int       `db:"slot_count"`
	StartsAt  time.Time `db:"starts_at"`
}

type GameRepository struct {
	db *sqlx.DB
}

func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) GetByID(ctx context.Context, gameID string) (game.Game, bool, error) {
	const query = `SELECT id, team_id, opponent, slot_count, starts_at FROM games WHERE id = $1`

	var row gameTableModel
	if err := r.db.GetContext(ctx, &row, query, gameID); err != nil {
		if isNotFound(err) {
			return game.Game{}, false, nil
		}
		return game.Game{}, false, fmt.Errorf("get game: %w", err)
	}

	return gameFromRow(row), true, nil
}

func (r *GameRepository) ListByTeam(ctx context.Context, teamID string) ([]game.Game, error) {
	const query = `SELECT id, team_id, opponent, slot_count, starts_at FROM games WHERE team_id = $1 ORDER BY starts_at`

	var rows []gameTableModel
	if err := r.db.SelectContext(ctx, &rows, query, teamID); err != nil {
		return nil, fmt.Errorf("list games by team: %w", err)
	}

	out := make([]game.Game, 0, len(rows))
	for _, row := range rows {
		out = append(out, gameFromRow(row))
	}
	return out, nil
}

func gameFromRow(row gameTableModel) game.Game {
	return game.Game{
		ID:        row.ID,
		TeamID:    row.TeamID,
		Opponent:  row.Opponent,
		SlotCount: row.SlotCount,
		StartsAt:  row.StartsAt,
	}
}
