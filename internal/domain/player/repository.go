package player

import "context"

// Repository exposes player persistence operations.
type Repository interface {
	GetByID(ctx context.Context, playerID string) (Player, bool, error)
	GetByIDs(ctx context.Context, teamID string, playerIDs []string) ([]Player, error)
	ListByTeam(ctx context.Context, teamID string) ([]Player, error)
}
