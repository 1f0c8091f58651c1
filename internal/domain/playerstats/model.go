package playerstats

// Stats is a player's historical participation view, recomputed on demand
// from finalized lineups. It is never persisted and never cached across
// requests.
type Stats struct {
	PctSlotsPlayed  float64        `json:"pct_slots_played"`
	TopPosition     string         `json:"top_position,omitempty"`
	AvgBattingOrder *int           `json:"avg_batting_order,omitempty"`
	PositionCounts  map[string]int `json:"position_counts"`
}
