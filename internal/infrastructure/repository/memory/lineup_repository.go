package memory

import (
	"context"
	"sync"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
)

type LineupRepository struct {
	mu    sync.RWMutex
	items map[string]lineup.Lineup
}

func NewLineupRepository() *LineupRepository {
	return &LineupRepository{items: make(map[string]lineup.Lineup)}
}

func (r *LineupRepository) GetByGame(_ context.Context, gameID string) (lineup.Lineup, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[gameID]
	if !ok {
		return lineup.Lineup{}, false, nil
	}

	return cloneLineup(item), true, nil
}

func (r *LineupRepository) ListFinalizedByTeam(_ context.Context, teamID string) ([]lineup.Lineup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]lineup.Lineup, 0, len(r.items))
	for _, item := range r.items {
		if item.TeamID != teamID || item.FinalizedAt == nil {
			continue
		}
		out = append(out, cloneLineup(item))
	}

	return out, nil
}

func (r *LineupRepository) Upsert(_ context.Context, item lineup.Lineup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[item.GameID] = cloneLineup(item)
	return nil
}

func cloneLineup(item lineup.Lineup) lineup.Lineup {
	copied := item
	copied.Entries = make([]lineup.Entry, 0, len(item.Entries))
	for _, entry := range item.Entries {
		entryCopy := entry
		entryCopy.Assignments = make(map[int]string, len(entry.Assignments))
		for slot, label := range entry.Assignments {
			entryCopy.Assignments[slot] = label
		}
		if entry.BattingOrder != nil {
			order := *entry.BattingOrder
			entryCopy.BattingOrder = &order
		}
		copied.Entries = append(copied.Entries, entryCopy)
	}
	return copied
}
