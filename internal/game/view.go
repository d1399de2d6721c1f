package game

// PlayerView is the subset of the snapshot one player is allowed to see. It
// is what gets handed to an order proposer for an AI seat, so it carries only
// that player's holdings plus the planets they could plausibly act on.
type PlayerView struct {
	Owner        Owner            `json:"owner"`
	Round        int              `json:"round"`
	Credits      int              `json:"credits"`
	Tech         map[TechKind]int `json:"tech"`
	Planets      []*Planet        `json:"planets"`
	Ships        []*Ship          `json:"ships"`
	Neutral      []*Planet        `json:"neutralPlanets"`
	EnemyPlanets []*Planet        `json:"enemyPlanets"`
}

// ViewFor extracts a player's view from the snapshot. The returned planets
// and ships are copies; mutating them does not touch the snapshot.
func ViewFor(s *GameState, owner Owner) PlayerView {
	view := PlayerView{
		Owner:   owner,
		Round:   s.Round,
		Credits: s.Credits[owner],
		Tech:    map[TechKind]int{},
	}
	for k, v := range s.Tech[owner] {
		view.Tech[k] = v
	}
	for _, p := range s.Planets {
		cp := *p
		switch {
		case p.Owner == owner:
			view.Planets = append(view.Planets, &cp)
		case p.Owner == Neutral:
			view.Neutral = append(view.Neutral, &cp)
		default:
			// Enemy worlds are visible in outline only.
			cp.Population = 0
			cp.Factories = 0
			cp.Mines = 0
			cp.Credits = 0
			view.EnemyPlanets = append(view.EnemyPlanets, &cp)
		}
	}
	for _, sh := range s.Ships {
		if sh.Owner == owner {
			cp := *sh
			view.Ships = append(view.Ships, &cp)
		}
	}
	return view
}
