package memory

import (
	"fmt"
	"time"

	"github.com/dugouthq/lineup-api/internal/domain/access"
	"github.com/dugouthq/lineup-api/internal/domain/game"
	"github.com/dugouthq/lineup-api/internal/domain/player"
	"github.com/dugouthq/lineup-api/internal/domain/team"
)

// Seed fixtures shared by dev mode and the usecase tests.
const (
	TeamIDRiverhawks = "team-riverhawks"
	TeamIDBobcats    = "team-bobcats"

	OwnerRiverhawks = "user-coach-dana"
	OwnerBobcats    = "user-coach-marty"

	GameIDOpener = "game-opener"
	GameIDRival  = "game-rival"
)

func SeedTeams() []team.Team {
	return []team.Team{
		{ID: TeamIDRiverhawks, OwnerUserID: OwnerRiverhawks, Name: "Riverhawks"},
		{ID: TeamIDBobcats, OwnerUserID: OwnerBobcats, Name: "Bobcats"},
	}
}

func SeedPlayers() []player.Player {
	names := []string{"Avery", "Blake", "Casey", "Drew", "Emery", "Finley", "Gray", "Harper", "Indy", "Jules"}
	out := make([]player.Player, 0, len(names)+2)
	for i, name := range names {
		out = append(out, player.Player{
			ID:                 playerID(i + 1),
			TeamID:             TeamIDRiverhawks,
			Name:               name,
			PreferredPositions: []string{"SS", "2B"},
		})
	}
	out = append(out,
		player.Player{ID: "bob-p-01", TeamID: TeamIDBobcats, Name: "Kai"},
		player.Player{ID: "bob-p-02", TeamID: TeamIDBobcats, Name: "Lou"},
	)
	return out
}

func SeedGames() []game.Game {
	return []game.Game{
		{ID: GameIDOpener, TeamID: TeamIDRiverhawks, Opponent: "Bobcats", SlotCount: 6, StartsAt: time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC)},
		{ID: GameIDRival, TeamID: TeamIDRiverhawks, Opponent: "Otters", SlotCount: 7, StartsAt: time.Date(2026, 4, 19, 10, 0, 0, 0, time.UTC)},
	}
}

func SeedPromoCodes() []access.PromoCode {
	two := 2
	return []access.PromoCode{
		{ID: "promo-save10", Code: "SAVE10", IsActive: true, MaxUses: &two, MaxUsesPerUser: 1},
		{ID: "promo-launch", Code: "LAUNCH", IsActive: true, MaxUsesPerUser: 1},
	}
}

func playerID(n int) string {
	return fmt.Sprintf("rvh-p-%02d", n)
}
