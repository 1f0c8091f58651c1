package lineup

import (
	"strings"
	"time"
)

// NotPlayingLabel marks a slot in which the player sits out. Synthesized
// entries for players the optimizer skipped use it for every slot.
const NotPlayingLabel = "OUT"

// Entry records one player's row in a lineup: slot index (1-based) to
// position label, plus an optional batting-order number.
type Entry struct {
	PlayerID     string
	Assignments  map[int]string
	BattingOrder *int
}

// Lineup is the full per-game assignment sheet. FinalizedAt is set on the
// first successful save and preserved on later edits.
type Lineup struct {
	ID          string
	GameID      string
	TeamID      string
	Entries     []Entry
	FinalizedAt *time.Time
	UpdatedAt   time.Time
}

var knownLabels = map[string]struct{}{
	"P": {}, "C": {}, "1B": {}, "2B": {}, "3B": {}, "SS": {},
	"LF": {}, "CF": {}, "RF": {}, "DH": {},
	"OUT": {}, "BENCH": {},
}

var excludedLabels = map[string]struct{}{
	"OUT":   {},
	"BENCH": {},
}

// IsKnownLabel reports whether label is a recognized assignment value.
// Comparison is case-insensitive.
func IsKnownLabel(label string) bool {
	_, ok := knownLabels[foldLabel(label)]
	return ok
}

// IsExcludedLabel reports whether label means "not actively playing" and is
// therefore exempt from slot exclusivity.
func IsExcludedLabel(label string) bool {
	_, ok := excludedLabels[foldLabel(label)]
	return ok
}

func foldLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
