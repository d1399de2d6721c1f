package game

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestGenerateSeatsAndHomes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	state, err := Generate(GenConfig{PlayerCount: 4, AICount: 1}, rng)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(state.Planets) != planetCount {
		t.Fatalf("expected %d planets, got %d", planetCount, len(state.Planets))
	}
	if len(state.Ships) != 4 {
		t.Fatalf("expected one starter ship per player, got %d", len(state.Ships))
	}

	for i := 1; i <= 4; i++ {
		tag := PlayerTag(i)
		home := state.Planets[i-1]
		if home.Owner != tag {
			t.Errorf("planet %d owner = %s, want %s", i-1, home.Owner, tag)
		}
		if home.Population <= 0 {
			t.Errorf("home planet %s has no population", home.Name)
		}
		if state.Credits[tag] != startCredits {
			t.Errorf("%s credits = %d, want %d", tag, state.Credits[tag], startCredits)
		}
	}
	for _, p := range state.Planets[4:] {
		if p.Owner != Neutral {
			t.Errorf("planet %s should start neutral, owner = %s", p.Name, p.Owner)
		}
		if p.Population != 0 || p.Factories != 0 || p.Mines != 0 {
			t.Errorf("neutral planet %s should start empty", p.Name)
		}
	}

	// Only the trailing seat is AI.
	if !state.AIPlayers["P4"] {
		t.Error("P4 should be AI controlled")
	}
	for _, tag := range []Owner{"P1", "P2", "P3"} {
		if state.AIPlayers[tag] {
			t.Errorf("%s should be human", tag)
		}
	}
}

func TestGenerateStarterShipsOrbitHome(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	state, err := Generate(GenConfig{PlayerCount: 2}, rng)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, sh := range state.Ships {
		home := state.Planets[i]
		if sh.Type != Scout {
			t.Errorf("starter ship %s type = %s, want SCOUT", sh.ID, sh.Type)
		}
		if sh.Status != StatusOrbiting || sh.PlanetID != home.ID {
			t.Errorf("starter ship %s should orbit %s, got status=%s planet=%q", sh.ID, home.ID, sh.Status, sh.PlanetID)
		}
		if sh.Pos != home.Pos {
			t.Errorf("starter ship %s not at home position", sh.ID)
		}
		if sh.HP != Scout.MaxHP() {
			t.Errorf("starter ship %s hp = %v, want %v", sh.ID, sh.HP, Scout.MaxHP())
		}
	}
}

func TestGeneratePositionsWithinMargin(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	state, err := Generate(GenConfig{PlayerCount: 2}, rng)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, p := range state.Planets {
		if p.Pos.X < gridMargin || p.Pos.X > gridWidth-gridMargin ||
			p.Pos.Y < gridMargin || p.Pos.Y > gridHeight-gridMargin {
			t.Errorf("planet %s at (%v, %v) outside margins", p.Name, p.Pos.X, p.Pos.Y)
		}
	}
}

func TestGenerateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		cfg  GenConfig
	}{
		{"too few players", GenConfig{PlayerCount: 1}},
		{"too many players", GenConfig{PlayerCount: 9}},
		{"all AI", GenConfig{PlayerCount: 4, AICount: 4}},
		{"more AI than seats", GenConfig{PlayerCount: 2, AICount: 3}},
		{"negative AI", GenConfig{PlayerCount: 2, AICount: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Generate(tc.cfg, rand.New(rand.NewSource(1))); err == nil {
				t.Fatalf("Generate(%+v) should fail", tc.cfg)
			}
		})
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	a, err := Generate(GenConfig{PlayerCount: 3, AICount: 1}, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(GenConfig{PlayerCount: 3, AICount: 1}, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed should generate identical worlds")
	}
}
