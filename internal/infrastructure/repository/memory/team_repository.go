package memory

import (
	"context"
	"sync"

	"github.com/dugouthq/lineup-api/internal/domain/team"
)

type TeamRepository struct {
	mu    sync.RWMutex
	items map[string]team.Team
}

func NewTeamRepository(teams []team.Team) *TeamRepository {
	items := make(map[string]team.Team, len(teams))
	for _, item := range teams {
		items[item.ID] = item
	}

	return &TeamRepository{items: items}
}

func (r *TeamRepository) GetByID(_ context.Context, teamID string) (team.Team, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[teamID]
	return item, ok, nil
}
