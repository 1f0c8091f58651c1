package lineup

import "context"

// Repository exposes lineup persistence operations.
type Repository interface {
	GetByGame(ctx context.Context, gameID string) (Lineup, bool, error)
	ListFinalizedByTeam(ctx context.Context, teamID string) ([]Lineup, error)
	Upsert(ctx context.Context, item Lineup) error
}
