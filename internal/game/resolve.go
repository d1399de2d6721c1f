package game

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// ResolveTurn advances the game by one round. It is a pure function of the
// previous snapshot, the per-player order batches, and the random source:
// the input snapshot is never mutated, and the same (state, orders, seed)
// always yields the same next state.
//
// Passes run in strict order (builds, course-setting, movement, combat,
// bombardment, economy), each reading the state left by the previous pass.
// A malformed or unauthorized order is dropped with a log line and never
// aborts the rest of the batch.
func ResolveTurn(state *GameState, orders map[Owner][]Order, rng *rand.Rand) *GameState {
	next := state.Clone()
	round := state.Round + 1

	logf := func(format string, args ...interface{}) {
		next.Log = append(next.Log, fmt.Sprintf("[r%d] ", round)+fmt.Sprintf(format, args...))
	}

	owners := make([]Owner, 0, len(orders))
	for o := range orders {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	seated := func(o Owner) bool {
		for i := 1; i <= next.PlayerCount; i++ {
			if PlayerTag(i) == o {
				return true
			}
		}
		return false
	}

	// Pass 1: validation and build orders.
	shipSeq := maxShipSeq(next)
	for _, owner := range owners {
		if !seated(owner) {
			logf("dropped %d orders from unknown player %q", len(orders[owner]), owner)
			continue
		}
		for _, ord := range orders[owner] {
			switch ord.Kind {
			case OrderSetCourse:
				// handled in the course-setting pass

			case OrderBuildMine:
				p := next.Planet(ord.PlanetID)
				switch {
				case p == nil || p.Owner != owner:
					logf("%s: build mine rejected, does not own %q", owner, ord.PlanetID)
				case next.Credits[owner] < MineCost:
					logf("%s: build mine on %s rejected, insufficient credits", owner, p.Name)
				case p.Mines >= MaxMines:
					logf("%s: build mine on %s rejected, at capacity", owner, p.Name)
				default:
					next.Credits[owner] -= MineCost
					p.Mines++
				}

			case OrderBuildFactory:
				p := next.Planet(ord.PlanetID)
				switch {
				case p == nil || p.Owner != owner:
					logf("%s: build factory rejected, does not own %q", owner, ord.PlanetID)
				case next.Credits[owner] < FactoryCost:
					logf("%s: build factory on %s rejected, insufficient credits", owner, p.Name)
				case p.Factories >= MaxFactories:
					logf("%s: build factory on %s rejected, at capacity", owner, p.Name)
				default:
					next.Credits[owner] -= FactoryCost
					p.Factories++
				}

			case OrderBuildShip:
				p := next.Planet(ord.PlanetID)
				switch {
				case !ord.ShipType.Valid():
					logf("%s: build ship rejected, unknown type %q", owner, ord.ShipType)
				case p == nil || p.Owner != owner:
					logf("%s: build ship rejected, does not own %q", owner, ord.PlanetID)
				case next.Credits[owner] < ord.ShipType.Cost():
					logf("%s: build %s at %s rejected, insufficient credits", owner, ord.ShipType, p.Name)
				default:
					next.Credits[owner] -= ord.ShipType.Cost()
					shipSeq++
					next.Ships = append(next.Ships, &Ship{
						ID:       fmt.Sprintf("sh-%d", shipSeq),
						Name:     fmt.Sprintf("%s %s", p.Name, shipTypeLabel(ord.ShipType)),
						Type:     ord.ShipType,
						Owner:    owner,
						Pos:      p.Pos,
						PlanetID: p.ID,
						CargoCap: ord.ShipType.CargoCap(),
						HP:       ord.ShipType.MaxHP(),
						MaxHP:    ord.ShipType.MaxHP(),
						Status:   StatusOrbiting,
					})
					logf("%s commissioned a %s at %s", owner, ord.ShipType, p.Name)
				}

			case OrderRenamePlanet:
				p := next.Planet(ord.PlanetID)
				switch {
				case p == nil || p.Owner != owner:
					logf("%s: rename rejected, does not own %q", owner, ord.PlanetID)
				case strings.TrimSpace(ord.Name) == "":
					logf("%s: rename of %s rejected, empty name", owner, p.Name)
				default:
					p.Name = strings.TrimSpace(ord.Name)
				}

			case OrderResearchTech:
				switch {
				case !ord.Tech.Valid():
					logf("%s: research rejected, unknown tech %q", owner, ord.Tech)
				case next.Credits[owner] < ResearchCost:
					logf("%s: research %s rejected, insufficient credits", owner, ord.Tech)
				default:
					next.Credits[owner] -= ResearchCost
					if next.Tech[owner] == nil {
						next.Tech[owner] = map[TechKind]int{}
					}
					next.Tech[owner][ord.Tech]++
					logf("%s advanced %s to level %d", owner, ord.Tech, next.Tech[owner][ord.Tech])
				}

			default:
				logf("%s: dropped order with unknown kind %q", owner, ord.Kind)
			}
		}
	}

	// Pass 2: course-setting.
	for _, owner := range owners {
		if !seated(owner) {
			continue
		}
		for _, ord := range orders[owner] {
			if ord.Kind != OrderSetCourse {
				continue
			}
			sh := next.Ship(ord.ShipID)
			target := next.Planet(ord.TargetID)
			switch {
			case sh == nil || sh.Owner != owner:
				logf("%s: set course rejected, does not own ship %q", owner, ord.ShipID)
			case target == nil:
				logf("%s: set course rejected, no such planet %q", owner, ord.TargetID)
			case sh.PlanetID == target.ID:
				logf("%s: set course rejected, %s already at %s", owner, sh.Name, target.Name)
			default:
				sh.Status = StatusMoving
				sh.PlanetID = ""
				sh.TargetID = target.ID
			}
		}
	}

	// Pass 3: movement and colonization.
	for _, sh := range next.Ships {
		if sh.Status != StatusMoving {
			continue
		}
		target := next.Planet(sh.TargetID)
		if target == nil {
			sh.Status = StatusIdle
			sh.TargetID = ""
			continue
		}
		speed := sh.Type.Speed() * (1 + engineTechBonus*float64(next.TechLevel(sh.Owner, TechEngines)))
		dx := target.Pos.X - sh.Pos.X
		dy := target.Pos.Y - sh.Pos.Y
		dist := math.Hypot(dx, dy)
		if dist <= speed {
			sh.Pos = target.Pos
			sh.Status = StatusOrbiting
			sh.PlanetID = target.ID
			sh.TargetID = ""
			if target.Owner == Neutral && sh.Type != Warship {
				target.Owner = sh.Owner
				target.Population = colonySeedPopulation
				logf("%s colonized %s", sh.Owner, target.Name)
			}
			continue
		}
		sh.Pos.X += dx / dist * speed
		sh.Pos.Y += dy / dist * speed
	}

	// Pass 4: combat. Damage is computed for every attacker against the
	// pre-pass ship set, then applied at once, so mutual destruction in the
	// same round is possible.
	factories := totalFactories(next)
	presence := map[string][]*Ship{}
	for _, sh := range next.Ships {
		if sh.PlanetID != "" {
			presence[sh.PlanetID] = append(presence[sh.PlanetID], sh)
		}
	}
	damage := map[string]float64{}
	battleAt := map[string]bool{}
	inCombat := map[string]bool{}
	for _, p := range next.Planets {
		ships := presence[p.ID]
		if !contested(ships) {
			continue
		}
		battleAt[p.ID] = true
		for _, attacker := range ships {
			inCombat[attacker.ID] = true
			if attacker.Type != Warship {
				continue
			}
			target := lowestEnemy(ships, attacker.Owner)
			if target == nil {
				continue
			}
			dmg := warshipBaseDamage +
				factoryDamageBonus*float64(factories[attacker.Owner]) +
				weaponTechBonus*float64(next.TechLevel(attacker.Owner, TechWeapons))
			damage[target.ID] += dmg
		}
	}
	if len(damage) > 0 {
		survivors := next.Ships[:0]
		for _, sh := range next.Ships {
			if d, ok := damage[sh.ID]; ok {
				sh.HP -= d
			}
			if sh.HP <= 0 {
				logf("%s's %s was destroyed over %s", sh.Owner, sh.Name, planetName(next, sh.PlanetID))
				continue
			}
			survivors = append(survivors, sh)
		}
		next.Ships = survivors
	}

	// Bombardment: hostile warships over an undefended enemy planet chip at
	// its population. Heavy factory presence gives the defender a chance to
	// shrug the hit off.
	underSiege := map[string]bool{}
	for _, p := range next.Planets {
		if !p.Owner.IsPlayer() {
			continue
		}
		hostile := false
		for _, sh := range presence[p.ID] {
			if sh.Type == Warship && sh.Owner != p.Owner && sh.HP > 0 {
				hostile = true
				break
			}
		}
		if !hostile {
			continue
		}
		underSiege[p.ID] = true
		if battleAt[p.ID] {
			continue
		}
		if factories[p.Owner] >= shieldFactoryMin && rng.Float64() < shieldChance {
			logf("%s's shields held against the bombardment of %s", p.Owner, p.Name)
			continue
		}
		loss := p.Population * bombardFraction
		p.Population = math.Max(0, p.Population-loss)
		logf("%s is under bombardment, population down to %.0f", p.Name, p.Population)
	}

	// Pass 5: economy, growth and repair.
	for _, p := range next.Planets {
		if !p.Owner.IsPlayer() {
			continue
		}
		next.Credits[p.Owner] += p.Mines*incomePerMine +
			p.Factories*incomePerFactory +
			int(math.Floor(p.Population))*incomePerPopulation
		if p.Factories >= boomFactoryMin && p.Mines >= boomMineMin && !underSiege[p.ID] {
			p.Population += boomGrowth
		} else {
			p.Population += baselineGrowth
		}
		p.Population = math.Min(p.Population, MaxPopulation)
	}
	for _, sh := range next.Ships {
		if sh.PlanetID == "" || inCombat[sh.ID] {
			continue
		}
		if p := next.Planet(sh.PlanetID); p != nil && p.Owner == sh.Owner {
			sh.HP = math.Min(sh.MaxHP, sh.HP+repairFraction*sh.MaxHP)
		}
	}

	next.Round = round
	return next
}

// totalFactories sums each player's factories across all owned planets.
func totalFactories(s *GameState) map[Owner]int {
	totals := map[Owner]int{}
	for _, p := range s.Planets {
		if p.Owner.IsPlayer() {
			totals[p.Owner] += p.Factories
		}
	}
	return totals
}

// contested reports whether ships from two or more owners share a location.
func contested(ships []*Ship) bool {
	var first Owner
	for _, sh := range ships {
		if first == "" {
			first = sh.Owner
		} else if sh.Owner != first {
			return true
		}
	}
	return false
}

// lowestEnemy picks the enemy ship with the smallest id, the stable
// tie-break that keeps combat deterministic.
func lowestEnemy(ships []*Ship, owner Owner) *Ship {
	var best *Ship
	for _, sh := range ships {
		if sh.Owner == owner {
			continue
		}
		if best == nil || sh.ID < best.ID {
			best = sh
		}
	}
	return best
}

func shipTypeLabel(t ShipType) string {
	switch t {
	case Scout:
		return "Scout"
	case Freighter:
		return "Freighter"
	case Warship:
		return "Warship"
	}
	return string(t)
}

func planetName(s *GameState, id string) string {
	if p := s.Planet(id); p != nil {
		return p.Name
	}
	return "deep space"
}

// maxShipSeq finds the highest numeric suffix among sh-N ids so newly built
// ships get fresh ids.
func maxShipSeq(s *GameState) int {
	max := 0
	for _, sh := range s.Ships {
		if n, err := strconv.Atoi(strings.TrimPrefix(sh.ID, "sh-")); err == nil && n > max {
			max = n
		}
	}
	return max
}
