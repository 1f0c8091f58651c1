package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dugouthq/lineup-api/internal/domain/player"
)

type playerTableModel struct {
	ID                  string         `db:"id"`
	TeamID              string         `db:"team_id"`
	Name                string         `db:"name"`
	PreferredPositions  pq.StringArray `db:"preferred_positions"`
	RestrictedPositions pq.StringArray `db:"restricted_positions"`
}

type PlayerRepository struct {
	db *sqlx.DB
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (player.Player, bool, error) {
	const query = `SELECT id, team_id, name, preferred_positions, restricted_positions FROM players WHERE id = $1`

	var row playerTableModel
	if err := r.db.GetContext(ctx, &row, query, playerID); err != nil {
		if isNotFound(err) {
			return player.Player{}, false, nil
		}
		return player.Player{}, false, fmt.Errorf("get player: %w", err)
	}

	return playerFromRow(row), true, nil
}

func (r *PlayerRepository) GetByIDs(ctx context.Context, teamID string, playerIDs []string) ([]player.Player, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	const query = `SELECT id, team_id, name, preferred_positions, restricted_positions
FROM players
WHERE team_id = $1 AND id = ANY($2)
ORDER BY id`

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, teamID, pq.Array(playerIDs)); err != nil {
		return nil, fmt.Errorf("get players by ids: %w", err)
	}

	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, playerFromRow(row))
	}
	return out, nil
}

func (r *PlayerRepository) ListByTeam(ctx context.Context, teamID string) ([]player.Player, error) {
	const query = `SELECT id, team_id, name, preferred_positions, restricted_positions
FROM players
WHERE team_id = $1
ORDER BY id`

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, teamID); err != nil {
		return nil, fmt.Errorf("list players by team: %w", err)
	}

	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, playerFromRow(row))
	}
	return out, nil
}

func playerFromRow(row playerTableModel) player.Player {
	return player.Player{
		ID:                  row.ID,
		TeamID:              row.TeamID,
		Name:                row.Name,
		PreferredPositions:  []string(row.PreferredPositions),
		RestrictedPositions: []string(row.RestrictedPositions),
	}
}
