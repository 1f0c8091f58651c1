package playerstats

import (
	"math"
	"strings"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
)

// FinalizedLineup pairs a finalized lineup's entries with the slot count of
// its game, which is the denominator unit for participation.
type FinalizedLineup struct {
	SlotCount int
	Entries   []lineup.Entry
}

// Aggregate computes a player's historical stats over a set of finalized
// lineups. Entries without a player link are skipped; a player absent from
// every lineup yields the zero Stats value.
//
// Top-position ties break toward the lexicographically smallest label so
// the result is independent of map iteration order.
func Aggregate(lineups []FinalizedLineup, playerID string) Stats {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return Stats{PositionCounts: map[string]int{}}
	}

	counts := make(map[string]int)
	battingOrders := make([]int, 0, len(lineups))
	played := 0
	available := 0

	for _, item := range lineups {
		entry, ok := findEntry(item.Entries, playerID)
		if !ok {
			continue
		}
		available += item.SlotCount

		for slot := 1; slot <= item.SlotCount; slot++ {
			label, ok := entry.Assignments[slot]
			if !ok {
				continue
			}
			folded := strings.ToUpper(strings.TrimSpace(label))
			if folded == "" || lineup.IsExcludedLabel(folded) {
				continue
			}
			played++
			counts[folded]++
		}

		if entry.BattingOrder != nil {
			battingOrders = append(battingOrders, *entry.BattingOrder)
		}
	}

	stats := Stats{PositionCounts: counts}
	if available > 0 {
		stats.PctSlotsPlayed = round1(100 * float64(played) / float64(available))
	}
	stats.TopPosition = topPosition(counts)
	if len(battingOrders) > 0 {
		sum := 0
		for _, order := range battingOrders {
			sum += order
		}
		avg := int(math.Round(float64(sum) / float64(len(battingOrders))))
		stats.AvgBattingOrder = &avg
	}

	return stats
}

func findEntry(entries []lineup.Entry, playerID string) (lineup.Entry, bool) {
	for _, entry := range entries {
		if strings.TrimSpace(entry.PlayerID) == "" {
			continue
		}
		if entry.PlayerID == playerID {
			return entry, true
		}
	}
	return lineup.Entry{}, false
}

func topPosition(counts map[string]int) string {
	best := ""
	bestCount := 0
	for label, count := range counts {
		if count > bestCount || (count == bestCount && bestCount > 0 && label < best) {
			best = label
			bestCount = count
		}
	}
	return best
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
