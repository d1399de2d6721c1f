package game

import (
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

// twoPlayerState builds a small fixed world: two home planets in opposite
// corners, one neutral planet 100 units east of P1's home, and a scout
// orbiting each home.
func twoPlayerState() *GameState {
	home1 := &Planet{ID: "pl-1", Name: "Sol", Pos: Vec2{X: 100, Y: 100}, Owner: "P1", Population: 100, Factories: 1, Mines: 1}
	home2 := &Planet{ID: "pl-2", Name: "Sirius", Pos: Vec2{X: 900, Y: 900}, Owner: "P2", Population: 100, Factories: 1, Mines: 1}
	neutral := &Planet{ID: "pl-3", Name: "Vega", Pos: Vec2{X: 200, Y: 100}, Owner: Neutral}
	return &GameState{
		Round:   0,
		Planets: []*Planet{home1, home2, neutral},
		Ships: []*Ship{
			{ID: "sh-1", Name: "Sol Scout", Type: Scout, Owner: "P1", Pos: home1.Pos, PlanetID: "pl-1", HP: 50, MaxHP: 50, Status: StatusOrbiting},
			{ID: "sh-2", Name: "Sirius Scout", Type: Scout, Owner: "P2", Pos: home2.Pos, PlanetID: "pl-2", HP: 50, MaxHP: 50, Status: StatusOrbiting},
		},
		Credits:     map[Owner]int{"P1": 1000, "P2": 1000},
		Tech:        map[Owner]map[TechKind]int{"P1": {}, "P2": {}},
		PlayerCount: 2,
		AIPlayers:   map[Owner]bool{},
	}
}

func rngFor(t *testing.T) *rand.Rand {
	t.Helper()
	return rand.New(rand.NewSource(1))
}

func TestResolveTurnIncrementsRound(t *testing.T) {
	state := twoPlayerState()
	next := ResolveTurn(state, nil, rngFor(t))
	if next.Round != state.Round+1 {
		t.Fatalf("round = %d, want %d", next.Round, state.Round+1)
	}
	if state.Round != 0 {
		t.Fatal("input snapshot was mutated")
	}
	again := ResolveTurn(next, nil, rngFor(t))
	if again.Round != 2 {
		t.Fatalf("round = %d, want 2", again.Round)
	}
}

func TestScoutColonizesNeutralPlanet(t *testing.T) {
	state := twoPlayerState()
	orders := map[Owner][]Order{
		"P1": {{Kind: OrderSetCourse, ShipID: "sh-1", TargetID: "pl-3"}},
	}
	// 100 units at scout speed 120 arrives in one round
	next := ResolveTurn(state, orders, rngFor(t))

	sh := next.Ship("sh-1")
	if sh == nil {
		t.Fatal("scout vanished")
	}
	if sh.Status != StatusOrbiting || sh.PlanetID != "pl-3" || sh.TargetID != "" {
		t.Fatalf("scout should orbit pl-3, got status=%s planet=%q target=%q", sh.Status, sh.PlanetID, sh.TargetID)
	}
	target := next.Planet("pl-3")
	if sh.Pos != target.Pos {
		t.Error("arriving ship should snap onto the planet position")
	}
	if target.Owner != "P1" {
		t.Fatalf("planet owner = %s, want P1", target.Owner)
	}
	if target.Population <= 0 {
		t.Fatal("colonized planet should have seeded population")
	}
}

func TestWarshipDoesNotColonize(t *testing.T) {
	state := twoPlayerState()
	state.Ships[0].Type = Warship
	orders := map[Owner][]Order{
		"P1": {{Kind: OrderSetCourse, ShipID: "sh-1", TargetID: "pl-3"}},
	}
	// warship speed 80: two rounds to cover 100 units
	next := ResolveTurn(state, orders, rngFor(t))
	next = ResolveTurn(next, nil, rngFor(t))

	if p := next.Planet("pl-3"); p.Owner != Neutral {
		t.Fatalf("warship arrival changed owner to %s", p.Owner)
	}
	if sh := next.Ship("sh-1"); sh.Status != StatusOrbiting || sh.PlanetID != "pl-3" {
		t.Fatalf("warship should still arrive, got status=%s planet=%q", sh.Status, sh.PlanetID)
	}
}

func TestMovementAdvancesPartWay(t *testing.T) {
	state := twoPlayerState()
	orders := map[Owner][]Order{
		"P2": {{Kind: OrderSetCourse, ShipID: "sh-2", TargetID: "pl-3"}},
	}
	next := ResolveTurn(state, orders, rngFor(t))
	sh := next.Ship("sh-2")
	if sh.Status != StatusMoving || sh.TargetID != "pl-3" || sh.PlanetID != "" {
		t.Fatalf("ship should be under way, got status=%s planet=%q target=%q", sh.Status, sh.PlanetID, sh.TargetID)
	}
	moved := math.Hypot(sh.Pos.X-900, sh.Pos.Y-900)
	if math.Abs(moved-Scout.Speed()) > 1e-9 {
		t.Fatalf("ship moved %v units, want %v", moved, Scout.Speed())
	}
}

func TestEconomyAndBoomGrowth(t *testing.T) {
	state := twoPlayerState()
	home := state.Planets[0]
	home.Factories = 5
	home.Mines = 10
	home.Population = 1000

	next := ResolveTurn(state, nil, rngFor(t))

	if got := next.Planet("pl-1").Population; got != 1001.0 {
		t.Fatalf("population = %v, want 1001.0", got)
	}
	wantIncome := 10*incomePerMine + 5*incomePerFactory + 1000*incomePerPopulation
	if wantIncome != 50600 {
		t.Fatalf("income formula drifted: %d", wantIncome)
	}
	if delta := next.Credits["P1"] - state.Credits["P1"]; delta != wantIncome {
		t.Fatalf("credits delta = %d, want %d", delta, wantIncome)
	}
}

func TestSimultaneousCombat(t *testing.T) {
	state := twoPlayerState()
	// Two warships of different owners over the same neutral planet. P1
	// fields 10 factories in total, P2 none.
	state.Planets[0].Factories = 10
	state.Planets[1].Factories = 0
	state.Ships = []*Ship{
		{ID: "sh-1", Name: "A", Type: Warship, Owner: "P1", Pos: Vec2{X: 200, Y: 100}, PlanetID: "pl-3", HP: 150, MaxHP: 150, Status: StatusOrbiting},
		{ID: "sh-2", Name: "B", Type: Warship, Owner: "P2", Pos: Vec2{X: 200, Y: 100}, PlanetID: "pl-3", HP: 150, MaxHP: 150, Status: StatusOrbiting},
	}

	next := ResolveTurn(state, nil, rngFor(t))

	a, b := next.Ship("sh-1"), next.Ship("sh-2")
	if a == nil || b == nil {
		t.Fatal("both ships should survive one exchange")
	}
	// P1's warship deals 25 + 0.5*10 = 30; P2's deals 25. Both hits land in
	// the same pass.
	if got := 150 - b.HP; got != 30 {
		t.Errorf("P2 ship took %v damage, want 30", got)
	}
	if got := 150 - a.HP; got != 25 {
		t.Errorf("P1 ship took %v damage, want 25", got)
	}
}

func TestCombatRemovesDeadShips(t *testing.T) {
	state := twoPlayerState()
	state.Ships = []*Ship{
		{ID: "sh-1", Name: "A", Type: Warship, Owner: "P1", Pos: Vec2{X: 200, Y: 100}, PlanetID: "pl-3", HP: 150, MaxHP: 150, Status: StatusOrbiting},
		{ID: "sh-2", Name: "B", Type: Scout, Owner: "P2", Pos: Vec2{X: 200, Y: 100}, PlanetID: "pl-3", HP: 10, MaxHP: 50, Status: StatusOrbiting},
	}

	next := ResolveTurn(state, nil, rngFor(t))

	if next.Ship("sh-2") != nil {
		t.Fatal("ship at 10hp taking 25 damage should be removed")
	}
	for _, sh := range next.Ships {
		if sh.HP <= 0 || sh.HP > sh.MaxHP {
			t.Errorf("ship %s hp %v out of bounds", sh.ID, sh.HP)
		}
	}
	found := false
	for _, line := range next.Log {
		if strings.Contains(line, "destroyed") {
			found = true
		}
	}
	if !found {
		t.Error("destruction should be logged")
	}
}

func TestMutualDestructionSameRound(t *testing.T) {
	state := twoPlayerState()
	state.Ships = []*Ship{
		{ID: "sh-1", Name: "A", Type: Warship, Owner: "P1", Pos: Vec2{X: 200, Y: 100}, PlanetID: "pl-3", HP: 20, MaxHP: 150, Status: StatusOrbiting},
		{ID: "sh-2", Name: "B", Type: Warship, Owner: "P2", Pos: Vec2{X: 200, Y: 100}, PlanetID: "pl-3", HP: 20, MaxHP: 150, Status: StatusOrbiting},
	}

	next := ResolveTurn(state, nil, rngFor(t))
	if len(next.Ships) != 0 {
		t.Fatalf("both warships at 20hp should destroy each other, %d survived", len(next.Ships))
	}
}

func TestBombardmentReducesPopulation(t *testing.T) {
	state := twoPlayerState()
	// P2 warship over P1's undefended home; P1 has too few factories for a
	// shield chance, so the loss always lands.
	state.Planets[0].Factories = 1
	state.Ships = []*Ship{
		{ID: "sh-2", Name: "B", Type: Warship, Owner: "P2", Pos: Vec2{X: 100, Y: 100}, PlanetID: "pl-1", HP: 150, MaxHP: 150, Status: StatusOrbiting},
	}

	next := ResolveTurn(state, nil, rngFor(t))

	want := 100 * (1 - bombardFraction)
	if got := next.Planet("pl-1").Population; math.Abs(got-want) > 1e-9 {
		t.Fatalf("population after bombardment = %v, want %v", got, want)
	}
}

func TestShieldsCanNegateBombardment(t *testing.T) {
	state := twoPlayerState()
	state.Planets[0].Factories = shieldFactoryMin
	state.Ships = []*Ship{
		{ID: "sh-2", Name: "B", Type: Warship, Owner: "P2", Pos: Vec2{X: 100, Y: 100}, PlanetID: "pl-1", HP: 150, MaxHP: 150, Status: StatusOrbiting},
	}

	// The shield roll is the only random draw this round, so scan for a seed
	// whose first value lands inside the shield window.
	var seed int64
	for s := int64(1); s < 10000; s++ {
		if rand.New(rand.NewSource(s)).Float64() < shieldChance {
			seed = s
			break
		}
	}
	if seed == 0 {
		t.Fatal("no seed found inside the shield window")
	}

	next := ResolveTurn(state, nil, rand.New(rand.NewSource(seed)))
	if got := next.Planet("pl-1").Population; got != 100 {
		t.Fatalf("shielded population = %v, want 100", got)
	}
	held := false
	for _, line := range next.Log {
		if strings.Contains(line, "shields held") {
			held = true
		}
	}
	if !held {
		t.Fatalf("expected a shield log line, got %v", next.Log)
	}
}

func TestSiegeBlocksBoomGrowth(t *testing.T) {
	state := twoPlayerState()
	home := state.Planets[0]
	home.Factories = 5
	home.Mines = 10
	home.Population = 1000
	state.Ships = append(state.Ships, &Ship{
		ID: "sh-3", Name: "Raider", Type: Warship, Owner: "P2",
		Pos: home.Pos, PlanetID: "pl-1", HP: 150, MaxHP: 150, Status: StatusOrbiting,
	})

	// The defending scout forces a battle, so no bombardment lands, but the
	// siege still suppresses the boom growth.
	next := ResolveTurn(state, nil, rngFor(t))
	if got := next.Planet("pl-1").Population; got != 1000 {
		t.Fatalf("besieged planet population = %v, want 1000 (no boom, no bombardment)", got)
	}
}

func TestBuildOrders(t *testing.T) {
	state := twoPlayerState()
	orders := map[Owner][]Order{
		"P1": {
			{Kind: OrderBuildMine, PlanetID: "pl-1"},
			{Kind: OrderBuildFactory, PlanetID: "pl-1"},
			{Kind: OrderBuildShip, PlanetID: "pl-1", ShipType: Warship},
		},
	}
	next := ResolveTurn(state, orders, rngFor(t))

	home := next.Planet("pl-1")
	if home.Mines != 2 || home.Factories != 2 {
		t.Fatalf("mines=%d factories=%d, want 2/2", home.Mines, home.Factories)
	}
	var built *Ship
	for _, sh := range next.Ships {
		if sh.Type == Warship && sh.Owner == "P1" {
			built = sh
		}
	}
	if built == nil {
		t.Fatal("warship was not built")
	}
	if built.Status != StatusOrbiting || built.PlanetID != "pl-1" {
		t.Fatalf("new ship should orbit its yard, got status=%s planet=%q", built.Status, built.PlanetID)
	}

	spent := MineCost + FactoryCost + Warship.Cost()
	income := 2*incomePerMine + 2*incomePerFactory + 100*incomePerPopulation
	if got := next.Credits["P1"]; got != 1000-spent+income {
		t.Fatalf("credits = %d, want %d", got, 1000-spent+income)
	}
}

func TestBuildOrderInsufficientCredits(t *testing.T) {
	state := twoPlayerState()
	state.Credits["P1"] = 50

	next := ResolveTurn(state, map[Owner][]Order{
		"P1": {{Kind: OrderBuildFactory, PlanetID: "pl-1"}},
	}, rngFor(t))

	if next.Planet("pl-1").Factories != 1 {
		t.Fatal("factory should not be built without credits")
	}
	if next.Credits["P1"] < 0 {
		t.Fatalf("credits went negative: %d", next.Credits["P1"])
	}
}

func TestUnauthorizedOrderDropped(t *testing.T) {
	state := twoPlayerState()

	next := ResolveTurn(state, map[Owner][]Order{
		"P2": {{Kind: OrderBuildFactory, PlanetID: "pl-1"}}, // not P2's planet
	}, rngFor(t))

	home := next.Planet("pl-1")
	if home.Factories != 1 || home.Mines != 1 {
		t.Fatal("foreign build order must not change the planet")
	}
	income2 := 1*incomePerMine + 1*incomePerFactory + 100*incomePerPopulation
	if got := next.Credits["P2"]; got != 1000+income2 {
		t.Fatalf("issuer should not be charged, credits = %d, want %d", got, 1000+income2)
	}
	found := false
	for _, line := range next.Log {
		if strings.Contains(line, "rejected") {
			found = true
		}
	}
	if !found {
		t.Error("rejection should be logged")
	}
}

func TestOrdersForMissingIDsNeverFatal(t *testing.T) {
	state := twoPlayerState()
	next := ResolveTurn(state, map[Owner][]Order{
		"P1": {
			{Kind: OrderSetCourse, ShipID: "no-such-ship", TargetID: "pl-3"},
			{Kind: OrderBuildMine, PlanetID: "no-such-planet"},
			{Kind: "WARP_DRIVE"},
			{Kind: OrderBuildMine, PlanetID: "pl-1"}, // still applies
		},
		"NEUTRAL": {{Kind: OrderBuildMine, PlanetID: "pl-3"}},
	}, rngFor(t))

	if next.Round != 1 {
		t.Fatal("bad orders must not abort resolution")
	}
	if next.Planet("pl-1").Mines != 2 {
		t.Fatal("valid order in a batch with bad ones should still apply")
	}
}

func TestResearchTech(t *testing.T) {
	state := twoPlayerState()
	next := ResolveTurn(state, map[Owner][]Order{
		"P1": {{Kind: OrderResearchTech, Tech: TechEngines}},
	}, rngFor(t))

	if got := next.TechLevel("P1", TechEngines); got != 1 {
		t.Fatalf("engine tech = %d, want 1", got)
	}

	// Engine tech speeds ships up: 120 * 1.1 = 132 units per round.
	next.Credits["P1"] = 0
	moved := ResolveTurn(next, map[Owner][]Order{
		"P1": {{Kind: OrderSetCourse, ShipID: "sh-1", TargetID: "pl-2"}},
	}, rngFor(t))
	sh := moved.Ship("sh-1")
	dist := math.Hypot(sh.Pos.X-100, sh.Pos.Y-100)
	if math.Abs(dist-132) > 1e-9 {
		t.Fatalf("ship with engine tech moved %v, want 132", dist)
	}
}

func TestRenamePlanet(t *testing.T) {
	state := twoPlayerState()
	next := ResolveTurn(state, map[Owner][]Order{
		"P1": {{Kind: OrderRenamePlanet, PlanetID: "pl-1", Name: "New Terra"}},
		"P2": {{Kind: OrderRenamePlanet, PlanetID: "pl-1", Name: "Stolen"}},
	}, rngFor(t))

	if got := next.Planet("pl-1").Name; got != "New Terra" {
		t.Fatalf("planet name = %q, want %q", got, "New Terra")
	}
}

func TestShipRepairAtFriendlyPlanet(t *testing.T) {
	state := twoPlayerState()
	state.Ships[0].HP = 20

	next := ResolveTurn(state, nil, rngFor(t))
	if got := next.Ship("sh-1").HP; got != 20+0.25*50 {
		t.Fatalf("hp after repair = %v, want %v", got, 20+0.25*50)
	}

	// Repair caps at max.
	state.Ships[0].HP = 45
	next = ResolveTurn(state, nil, rngFor(t))
	if got := next.Ship("sh-1").HP; got != 50 {
		t.Fatalf("hp should cap at max, got %v", got)
	}
}

func TestResolveTurnDeterministic(t *testing.T) {
	orders := map[Owner][]Order{
		"P1": {{Kind: OrderSetCourse, ShipID: "sh-1", TargetID: "pl-3"}},
		"P2": {{Kind: OrderSetCourse, ShipID: "sh-2", TargetID: "pl-3"}},
	}
	a := ResolveTurn(twoPlayerState(), orders, rand.New(rand.NewSource(123)))
	b := ResolveTurn(twoPlayerState(), orders, rand.New(rand.NewSource(123)))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same state, orders and seed must resolve identically")
	}
}
