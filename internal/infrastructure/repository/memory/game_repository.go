package memory

import (
	"context"
	"sync"

	"github.com/dugouthq/lineup-api/internal/domain/game"
)

type GameRepository struct {
	mu    sync.RWMutex
	items map[string]game.Game
}

func NewGameRepository(games []game.Game) *GameRepository {
	items := make(map[string]game.Game, len(games))
	for _, item := range games {
		items[item.ID] = item
	}

	return &GameRepository{items: items}
}

func (r *GameRepository) GetByID(_ context.Context, gameID string) (game.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[gameID]
	return item, ok, nil
}

func (r *GameRepository) ListByTeam(_ context.Context, teamID string) ([]game.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]game.Game, 0, len(r.items))
	for _, item := range r.items {
		if item.TeamID == teamID {
			out = append(out, item)
		}
	}

	return out, nil
}
