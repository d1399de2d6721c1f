package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/example/starhold/internal/game"
)

// advisorResponse is the reply shape of the external advisor endpoint:
// ship movements keyed by ship id and build actions keyed by planet id.
// Anything the advisor gets wrong is caught later by order validation.
type advisorResponse struct {
	ShipOrders  map[string]string `json:"shipOrders"`
	BuildOrders map[string]string `json:"buildOrders"`
	Research    string            `json:"research,omitempty"`
}

// HTTPProposer asks an external advisor service for orders. The request body
// is the player's visible state; the response is advisory only.
type HTTPProposer struct {
	URL    string
	Client *http.Client
}

func NewHTTPProposer(url string) *HTTPProposer {
	return &HTTPProposer{URL: url, Client: http.DefaultClient}
}

func (h *HTTPProposer) Propose(ctx context.Context, view game.PlayerView) ([]game.Order, error) {
	body, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("ai: marshal view: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: advisor request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ai: advisor returned %s", resp.Status)
	}

	var parsed advisorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ai: decode advisor response: %w", err)
	}
	return parsed.toOrders(), nil
}

func (r advisorResponse) toOrders() []game.Order {
	var out []game.Order
	for _, shipID := range sortedKeys(r.ShipOrders) {
		out = append(out, game.Order{
			Kind:     game.OrderSetCourse,
			ShipID:   shipID,
			TargetID: r.ShipOrders[shipID],
		})
	}
	for _, planetID := range sortedKeys(r.BuildOrders) {
		switch r.BuildOrders[planetID] {
		case "MINE":
			out = append(out, game.Order{Kind: game.OrderBuildMine, PlanetID: planetID})
		case "FACTORY":
			out = append(out, game.Order{Kind: game.OrderBuildFactory, PlanetID: planetID})
		case "SCOUT", "FREIGHTER", "WARSHIP":
			out = append(out, game.Order{
				Kind:     game.OrderBuildShip,
				PlanetID: planetID,
				ShipType: game.ShipType(r.BuildOrders[planetID]),
			})
		}
		// unknown build kinds are silently skipped; validation would reject
		// them anyway
	}
	if r.Research != "" {
		out = append(out, game.Order{Kind: game.OrderResearchTech, Tech: game.TechKind(r.Research)})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// stable order keeps proposals deterministic for the same response
	sort.Strings(keys)
	return keys
}
