package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dugouthq/lineup-api/internal/domain/team"
)

type teamTableModel struct {
	ID          string    `db:"id"`
	OwnerUserID string    `db:"owner_user_id"`
	Name        string    `db:"name"`
	CreatedAt   time.Time `db:"created_at"`
}

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) GetByID(ctx context.Context, teamID string) (team.Team, bool, error) {
	const query = `SELECT id, owner_user_id, name, created_at FROM teams WHERE id = $1`

	var row teamTableModel
	if err := r.db.GetContext(ctx, &row, query, teamID); err != nil {
		if isNotFound(err) {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("get team: %w", err)
	}

	return team.Team{
		ID:          row.ID,
		OwnerUserID: row.OwnerUserID,
		Name:        row.Name,
		CreatedAt:   row.CreatedAt,
	}, true, nil
}
