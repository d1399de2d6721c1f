// Package ai proposes orders for machine-controlled seats. Proposals are
// untrusted input: the turn resolver validates them exactly like orders
// typed by a human, and a proposer that errors or times out simply means
// that seat skips the round.
package ai

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/example/starhold/internal/game"
)

// Proposer turns a player's visible state into a batch of orders.
type Proposer interface {
	Propose(ctx context.Context, view game.PlayerView) ([]game.Order, error)
}

// DefaultTimeout bounds one Propose call so a slow advisor can never hold up
// round advancement.
const DefaultTimeout = 5 * time.Second

// ProposeWithTimeout runs the proposer under a deadline and degrades any
// failure to an empty batch plus the error for logging.
func ProposeWithTimeout(ctx context.Context, p Proposer, view game.PlayerView, timeout time.Duration) ([]game.Order, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	orders, err := p.Propose(ctx, view)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Heuristic is a deterministic rule-based proposer used when no external
// advisor is configured: colonize the nearest neutral worlds, keep building
// on owned worlds, and send warships at the enemy once the economy allows.
type Heuristic struct{}

func (Heuristic) Propose(_ context.Context, view game.PlayerView) ([]game.Order, error) {
	var out []game.Order
	credits := view.Credits

	// Idle ships get somewhere to go.
	ships := append([]*game.Ship(nil), view.Ships...)
	sort.Slice(ships, func(i, j int) bool { return ships[i].ID < ships[j].ID })
	claimed := map[string]bool{}
	for _, sh := range ships {
		if sh.Status == game.StatusMoving {
			continue
		}
		var target *game.Planet
		if sh.Type == game.Warship {
			target = nearestPlanet(sh.Pos, view.EnemyPlanets, nil)
		} else {
			target = nearestPlanet(sh.Pos, view.Neutral, claimed)
		}
		if target == nil || target.ID == sh.PlanetID {
			continue
		}
		claimed[target.ID] = true
		out = append(out, game.Order{Kind: game.OrderSetCourse, ShipID: sh.ID, TargetID: target.ID})
	}

	// Develop owned worlds, cheapest shortfall first.
	planets := append([]*game.Planet(nil), view.Planets...)
	sort.Slice(planets, func(i, j int) bool { return planets[i].ID < planets[j].ID })
	for _, p := range planets {
		if p.Mines < game.MaxMines && credits >= game.MineCost {
			out = append(out, game.Order{Kind: game.OrderBuildMine, PlanetID: p.ID})
			credits -= game.MineCost
		}
		if p.Factories < game.MaxFactories && credits >= game.FactoryCost {
			out = append(out, game.Order{Kind: game.OrderBuildFactory, PlanetID: p.ID})
			credits -= game.FactoryCost
		}
	}

	// With a surplus, expand the fleet from the richest world.
	if len(planets) > 0 && credits >= 2*game.Warship.Cost() {
		out = append(out, game.Order{
			Kind:     game.OrderBuildShip,
			PlanetID: planets[0].ID,
			ShipType: game.Warship,
		})
		credits -= game.Warship.Cost()
	}
	if credits >= 2*game.ResearchCost {
		out = append(out, game.Order{Kind: game.OrderResearchTech, Tech: game.TechEngines})
	}

	return out, nil
}

func nearestPlanet(from game.Vec2, candidates []*game.Planet, skip map[string]bool) *game.Planet {
	var best *game.Planet
	bestDist := math.MaxFloat64
	for _, p := range candidates {
		if skip != nil && skip[p.ID] {
			continue
		}
		d := math.Hypot(p.Pos.X-from.X, p.Pos.Y-from.Y)
		if d < bestDist || (d == bestDist && best != nil && p.ID < best.ID) {
			bestDist = d
			best = p
		}
	}
	return best
}
