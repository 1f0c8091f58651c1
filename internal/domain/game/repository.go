package game

import "context"

// Repository exposes game persistence operations.
type Repository interface {
	GetByID(ctx context.Context, gameID string) (Game, bool, error)
	ListByTeam(ctx context.Context, teamID string) ([]Game, error)
}
