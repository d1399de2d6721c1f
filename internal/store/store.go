// Package store is the synchronization boundary: the host writes each
// resolved snapshot under its session key, remote observers read or watch
// that key, and a lobby listing advertises open sessions for discovery.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/starhold/internal/game"
)

// ErrNotFound is returned when no snapshot or session exists for a key.
var ErrNotFound = errors.New("store: not found")

// SessionInfo is the lobby row for one open game session.
type SessionInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Round       int       `json:"round"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	Started     bool      `json:"started"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store is the shared document store the host publishes through. The host is
// the only writer; everyone else reads or watches.
//
// Implementations must be safe for concurrent use. Close releases the
// underlying resources; the client is constructed explicitly at startup and
// closed at shutdown, never held as a package-level singleton.
type Store interface {
	// PutState publishes the authoritative snapshot for a session.
	PutState(ctx context.Context, sessionID string, state *game.GameState) error
	// GetState loads the latest snapshot for a session.
	GetState(ctx context.Context, sessionID string) (*game.GameState, error)
	// Watch delivers each newly published snapshot for a session until ctx
	// is done. The returned channel is closed on cancellation.
	Watch(ctx context.Context, sessionID string) (<-chan *game.GameState, error)

	UpsertSession(ctx context.Context, info SessionInfo) error
	RemoveSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]SessionInfo, error)

	Close() error
}
