package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
)

func TestLineupEntriesCodec(t *testing.T) {
	t.Parallel()

	order := 4
	original := []lineup.Entry{
		{
			PlayerID:     "rvh-p-01",
			Assignments:  map[int]string{1: "SS", 2: "OUT", 6: "2B"},
			BattingOrder: &order,
		},
		{
			PlayerID:    "rvh-p-02",
			Assignments: map[int]string{1: "OUT"},
		},
	}

	raw, err := encodeEntries(original)
	require.NoError(t, err)

	finalized := time.Date(2026, 4, 12, 12, 0, 0, 0, time.UTC)
	item, err := lineupFromRow(lineupTableModel{
		ID:          "lu-001",
		GameID:      "game-opener",
		TeamID:      "team-riverhawks",
		Entries:     raw,
		FinalizedAt: &finalized,
		UpdatedAt:   finalized,
	})
	require.NoError(t, err)

	require.Len(t, item.Entries, 2)
	require.Equal(t, original[0].Assignments, item.Entries[0].Assignments)
	require.NotNil(t, item.Entries[0].BattingOrder)
	require.Equal(t, 4, *item.Entries[0].BattingOrder)
	require.Nil(t, item.Entries[1].BattingOrder)
	require.NotNil(t, item.FinalizedAt)
}

func TestLineupFromRow_RejectsBadSlotKey(t *testing.T) {
	t.Parallel()

	_, err := lineupFromRow(lineupTableModel{
		ID:      "lu-bad",
		Entries: []byte(`[{"player_id":"rvh-p-01","assignments":{"first":"SS"}}]`),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad slot key")
}

func TestLineupFromRow_EmptyEntries(t *testing.T) {
	t.Parallel()

	item, err := lineupFromRow(lineupTableModel{ID: "lu-empty"})
	require.NoError(t, err)
	require.Empty(t, item.Entries)
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	require.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	require.True(t, isUniqueViolation(fmt.Errorf("insert payment event: %w", &pq.Error{Code: "23505"})))
	require.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, isUniqueViolation(fmt.Errorf("plain error")))
}
