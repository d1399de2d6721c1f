package game

import (
	"fmt"
	"math/rand"
)

// GenConfig controls world generation.
type GenConfig struct {
	PlayerCount int
	AICount     int
}

func (c GenConfig) validate() error {
	if c.PlayerCount < 2 || c.PlayerCount > 8 {
		return fmt.Errorf("player count %d out of range 2..8", c.PlayerCount)
	}
	if c.AICount < 0 || c.AICount >= c.PlayerCount {
		return fmt.Errorf("ai count %d must be in 0..%d", c.AICount, c.PlayerCount-1)
	}
	return nil
}

// Generate builds the round-zero snapshot: a fixed roster of planets at
// random positions, one home planet and one scout per player, and starting
// credit balances. The caller supplies the random source so generation stays
// reproducible under test.
func Generate(cfg GenConfig, rng *rand.Rand) (*GameState, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	state := &GameState{
		Round:       0,
		Planets:     make([]*Planet, 0, planetCount),
		Ships:       make([]*Ship, 0, cfg.PlayerCount),
		Credits:     make(map[Owner]int, cfg.PlayerCount),
		Tech:        make(map[Owner]map[TechKind]int, cfg.PlayerCount),
		PlayerCount: cfg.PlayerCount,
		AIPlayers:   make(map[Owner]bool),
	}

	for i := 0; i < planetCount; i++ {
		pos := Vec2{
			X: gridMargin + rng.Float64()*(gridWidth-2*gridMargin),
			Y: gridMargin + rng.Float64()*(gridHeight-2*gridMargin),
		}
		state.Planets = append(state.Planets, &Planet{
			ID:    fmt.Sprintf("pl-%d", i+1),
			Name:  planetNames[i%len(planetNames)],
			Pos:   pos,
			Owner: Neutral,
		})
	}

	for i := 1; i <= cfg.PlayerCount; i++ {
		tag := PlayerTag(i)
		home := state.Planets[i-1]
		home.Owner = tag
		home.Population = homePopulation
		home.Factories = 1
		home.Mines = 1

		state.Credits[tag] = startCredits
		state.Tech[tag] = map[TechKind]int{}
		state.Ships = append(state.Ships, &Ship{
			ID:       fmt.Sprintf("sh-%d", i),
			Name:     fmt.Sprintf("%s Scout", home.Name),
			Type:     Scout,
			Owner:    tag,
			Pos:      home.Pos,
			PlanetID: home.ID,
			CargoCap: Scout.CargoCap(),
			HP:       Scout.MaxHP(),
			MaxHP:    Scout.MaxHP(),
			Status:   StatusOrbiting,
		})
	}

	// The trailing seats are machine-controlled.
	for i := cfg.PlayerCount - cfg.AICount + 1; i <= cfg.PlayerCount; i++ {
		state.AIPlayers[PlayerTag(i)] = true
	}

	return state, nil
}
