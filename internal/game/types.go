package game

// Owner tags a planet or ship with the player that controls it. Planets that
// nobody has colonized yet carry Neutral.
type Owner string

const Neutral Owner = "NEUTRAL"

// PlayerTag returns the owner tag for a 1-based player index (P1..P8).
func PlayerTag(i int) Owner {
	tags := [...]Owner{"P1", "P2", "P3", "P4", "P5", "P6", "P7", "P8"}
	if i < 1 || i > len(tags) {
		return Neutral
	}
	return tags[i-1]
}

// IsPlayer reports whether the tag names an actual player seat.
func (o Owner) IsPlayer() bool {
	switch o {
	case "P1", "P2", "P3", "P4", "P5", "P6", "P7", "P8":
		return true
	}
	return false
}

type ShipType string

const (
	Scout     ShipType = "SCOUT"
	Freighter ShipType = "FREIGHTER"
	Warship   ShipType = "WARSHIP"
)

// shipStats holds the fixed per-type tuning values.
type shipStats struct {
	Speed    float64
	Cost     int
	MaxHP    float64
	CargoCap int
}

var shipStatsByType = map[ShipType]shipStats{
	Scout:     {Speed: 120, Cost: 100, MaxHP: 50, CargoCap: 10},
	Freighter: {Speed: 60, Cost: 200, MaxHP: 75, CargoCap: 100},
	Warship:   {Speed: 80, Cost: 300, MaxHP: 150, CargoCap: 20},
}

func (t ShipType) Valid() bool {
	_, ok := shipStatsByType[t]
	return ok
}

func (t ShipType) Speed() float64 { return shipStatsByType[t].Speed }
func (t ShipType) Cost() int      { return shipStatsByType[t].Cost }
func (t ShipType) MaxHP() float64 { return shipStatsByType[t].MaxHP }
func (t ShipType) CargoCap() int  { return shipStatsByType[t].CargoCap }

type ShipStatus string

const (
	StatusIdle     ShipStatus = "IDLE"
	StatusMoving   ShipStatus = "MOVING"
	StatusOrbiting ShipStatus = "ORBITING"
)

type TechKind string

const (
	TechEngines TechKind = "ENGINES"
	TechWeapons TechKind = "WEAPONS"
)

func (t TechKind) Valid() bool {
	return t == TechEngines || t == TechWeapons
}

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Planet is a stationary colonizable body. Planets are created once at world
// generation and never destroyed; only ownership changes.
type Planet struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Pos        Vec2    `json:"pos"`
	Owner      Owner   `json:"owner"`
	Population float64 `json:"population"`
	// Credits is a legacy per-planet stockpile kept for display only; the
	// authoritative balances live on GameState.
	Credits   int     `json:"credits"`
	Factories int     `json:"factories"`
	Mines     int     `json:"mines"`
	Defense   float64 `json:"defense"`
}

// Ship is a mobile unit owned by exactly one player.
//
// Status invariants: MOVING implies TargetID set and PlanetID empty;
// ORBITING implies PlanetID set and TargetID empty.
type Ship struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     ShipType   `json:"type"`
	Owner    Owner      `json:"owner"`
	Pos      Vec2       `json:"pos"`
	PlanetID string     `json:"planetId,omitempty"`
	TargetID string     `json:"targetId,omitempty"`
	Cargo    int        `json:"cargo"`
	CargoCap int        `json:"cargoCap"`
	HP       float64    `json:"hp"`
	MaxHP    float64    `json:"maxHp"`
	Status   ShipStatus `json:"status"`
}

// GameState is the authoritative snapshot for one round. ResolveTurn builds a
// brand-new snapshot each round; readers never mutate one in place.
type GameState struct {
	Round       int                        `json:"round"`
	Planets     []*Planet                  `json:"planets"`
	Ships       []*Ship                    `json:"ships"`
	Credits     map[Owner]int              `json:"credits"`
	Tech        map[Owner]map[TechKind]int `json:"tech"`
	Log         []string                   `json:"log"`
	PlayerCount int                        `json:"playerCount"`
	AIPlayers   map[Owner]bool             `json:"aiPlayers"`
}

// Planet returns the planet with the given id, or nil.
func (s *GameState) Planet(id string) *Planet {
	for _, p := range s.Planets {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Ship returns the ship with the given id, or nil.
func (s *GameState) Ship(id string) *Ship {
	for _, sh := range s.Ships {
		if sh.ID == id {
			return sh
		}
	}
	return nil
}

// Players returns the player tags in seat order.
func (s *GameState) Players() []Owner {
	tags := make([]Owner, 0, s.PlayerCount)
	for i := 1; i <= s.PlayerCount; i++ {
		tags = append(tags, PlayerTag(i))
	}
	return tags
}

// TechLevel returns a player's level for one tech track.
func (s *GameState) TechLevel(o Owner, kind TechKind) int {
	if s.Tech == nil {
		return 0
	}
	return s.Tech[o][kind]
}

// Clone deep-copies the snapshot so the resolver can build the next round
// without mutating the published one.
func (s *GameState) Clone() *GameState {
	next := &GameState{
		Round:       s.Round,
		Planets:     make([]*Planet, len(s.Planets)),
		Ships:       make([]*Ship, 0, len(s.Ships)),
		Credits:     make(map[Owner]int, len(s.Credits)),
		Tech:        make(map[Owner]map[TechKind]int, len(s.Tech)),
		Log:         append([]string(nil), s.Log...),
		PlayerCount: s.PlayerCount,
		AIPlayers:   make(map[Owner]bool, len(s.AIPlayers)),
	}
	for i, p := range s.Planets {
		cp := *p
		next.Planets[i] = &cp
	}
	for _, sh := range s.Ships {
		cp := *sh
		next.Ships = append(next.Ships, &cp)
	}
	for o, c := range s.Credits {
		next.Credits[o] = c
	}
	for o, tracks := range s.Tech {
		m := make(map[TechKind]int, len(tracks))
		for k, v := range tracks {
			m[k] = v
		}
		next.Tech[o] = m
	}
	for o, ai := range s.AIPlayers {
		next.AIPlayers[o] = ai
	}
	return next
}

type OrderKind string

const (
	OrderSetCourse    OrderKind = "SET_COURSE"
	OrderBuildShip    OrderKind = "BUILD_SHIP"
	OrderBuildMine    OrderKind = "BUILD_MINE"
	OrderBuildFactory OrderKind = "BUILD_FACTORY"
	OrderRenamePlanet OrderKind = "RENAME_PLANET"
	OrderResearchTech OrderKind = "RESEARCH_TECH"
)

// Order is a single player instruction for the current round. Which fields
// are meaningful depends on Kind; the validation pass rejects anything that
// does not line up with the issuer's holdings.
type Order struct {
	Kind     OrderKind `json:"kind" msgpack:"k"`
	ShipID   string    `json:"shipId,omitempty" msgpack:"s,omitempty"`
	PlanetID string    `json:"planetId,omitempty" msgpack:"p,omitempty"`
	TargetID string    `json:"targetId,omitempty" msgpack:"t,omitempty"`
	ShipType ShipType  `json:"shipType,omitempty" msgpack:"st,omitempty"`
	Name     string    `json:"name,omitempty" msgpack:"n,omitempty"`
	Tech     TechKind  `json:"tech,omitempty" msgpack:"tk,omitempty"`
}
