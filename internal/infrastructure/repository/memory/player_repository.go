package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dugouthq/lineup-api/internal/domain/player"
)

type PlayerRepository struct {
	mu    sync.RWMutex
	items map[string]player.Player
}

func NewPlayerRepository(players []player.Player) *PlayerRepository {
	items := make(map[string]player.Player, len(players))
	for _, item := range players {
		items[item.ID] = item
	}

	return &PlayerRepository{items: items}
}

func (r *PlayerRepository) GetByID(_ context.Context, playerID string) (player.Player, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[playerID]
	return clonePlayer(item), ok, nil
}

func (r *PlayerRepository) GetByIDs(_ context.Context, teamID string, playerIDs []string) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(playerIDs))
	for _, id := range playerIDs {
		item, ok := r.items[id]
		if !ok || item.TeamID != teamID {
			continue
		}
		out = append(out, clonePlayer(item))
	}

	return out, nil
}

func (r *PlayerRepository) ListByTeam(_ context.Context, teamID string) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(r.items))
	for _, item := range r.items {
		if item.TeamID == teamID {
			out = append(out, clonePlayer(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func clonePlayer(item player.Player) player.Player {
	copied := item
	copied.PreferredPositions = append([]string(nil), item.PreferredPositions...)
	copied.RestrictedPositions = append([]string(nil), item.RestrictedPositions...)
	return copied
}
