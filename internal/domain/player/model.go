package player

// Player belongs to exactly one team. Preference sets drive the
// auto-assign payload; they never gate manual lineups.
type Player struct {
	ID                  string
	TeamID              string
	Name                string
	PreferredPositions  []string
	RestrictedPositions []string
}
