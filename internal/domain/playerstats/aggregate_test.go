package playerstats

import (
	"testing"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
)

func intPtr(v int) *int { return &v }

func TestAggregate_ComputesParticipationAndCounts(t *testing.T) {
	lineups := []FinalizedLineup{
		{
			SlotCount: 6,
			Entries: []lineup.Entry{
				{
					PlayerID:     "p1",
					Assignments:  map[int]string{1: "SS", 2: "SS", 3: "2B", 4: "OUT", 5: "BENCH", 6: ""},
					BattingOrder: intPtr(3),
				},
			},
		},
		{
			SlotCount: 6,
			Entries: []lineup.Entry{
				{
					PlayerID:     "p1",
					Assignments:  map[int]string{1: "ss", 2: "2B", 3: "2B", 4: "2B"},
					BattingOrder: intPtr(4),
				},
			},
		},
	}

	stats := Aggregate(lineups, "p1")

	// 7 played slots out of 12 available.
	if stats.PctSlotsPlayed != 58.3 {
		t.Fatalf("unexpected pct_slots_played: %v", stats.PctSlotsPlayed)
	}
	if stats.PositionCounts["SS"] != 3 || stats.PositionCounts["2B"] != 4 {
		t.Fatalf("unexpected position counts: %v", stats.PositionCounts)
	}
	if stats.TopPosition != "2B" {
		t.Fatalf("unexpected top position: %s", stats.TopPosition)
	}
	if stats.AvgBattingOrder == nil || *stats.AvgBattingOrder != 4 {
		t.Fatalf("unexpected avg batting order: %v", stats.AvgBattingOrder)
	}
}

func TestAggregate_PlayerAbsentFromAllLineups(t *testing.T) {
	lineups := []FinalizedLineup{
		{SlotCount: 6, Entries: []lineup.Entry{{PlayerID: "other", Assignments: map[int]string{1: "C"}}}},
	}

	stats := Aggregate(lineups, "p1")
	if stats.PctSlotsPlayed != 0 {
		t.Fatalf("expected 0%% participation, got %v", stats.PctSlotsPlayed)
	}
	if stats.TopPosition != "" {
		t.Fatalf("expected no top position, got %q", stats.TopPosition)
	}
	if stats.AvgBattingOrder != nil {
		t.Fatalf("expected nil batting order, got %v", *stats.AvgBattingOrder)
	}
}

func TestAggregate_TieBreaksLexicographically(t *testing.T) {
	lineups := []FinalizedLineup{
		{
			SlotCount: 2,
			Entries: []lineup.Entry{
				{PlayerID: "p1", Assignments: map[int]string{1: "SS", 2: "CF"}},
			},
		},
	}

	stats := Aggregate(lineups, "p1")
	if stats.TopPosition != "CF" {
		t.Fatalf("expected lexicographic tie-break to pick CF, got %s", stats.TopPosition)
	}
}

func TestAggregate_SkipsMalformedEntries(t *testing.T) {
	lineups := []FinalizedLineup{
		{
			SlotCount: 3,
			Entries: []lineup.Entry{
				{PlayerID: "", Assignments: map[int]string{1: "SS"}},
				{PlayerID: "p1", Assignments: map[int]string{1: "C", 2: "C", 3: "C"}},
			},
		},
	}

	stats := Aggregate(lineups, "p1")
	if stats.PctSlotsPlayed != 100 {
		t.Fatalf("expected full participation, got %v", stats.PctSlotsPlayed)
	}
}

func TestAggregate_IsDeterministic(t *testing.T) {
	lineups := []FinalizedLineup{
		{
			SlotCount: 4,
			Entries: []lineup.Entry{
				{PlayerID: "p1", Assignments: map[int]string{1: "LF", 2: "RF", 3: "LF", 4: "RF"}, BattingOrder: intPtr(2)},
			},
		},
	}

	first := Aggregate(lineups, "p1")
	second := Aggregate(lineups, "p1")

	if first.PctSlotsPlayed != second.PctSlotsPlayed || first.TopPosition != second.TopPosition {
		t.Fatalf("aggregate is not deterministic: %+v vs %+v", first, second)
	}
}
