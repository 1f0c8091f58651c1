package game

import "time"

// Game is one scheduled match. SlotCount is the number of innings the
// lineup covers; every lineup written for the game spans exactly this
// many slots.
type Game struct {
	ID        string
	TeamID    string
	Opponent  string
	SlotCount int
	StartsAt  time.Time
}
