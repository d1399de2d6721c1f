package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/starhold/internal/game"
)

// Memory is an in-process Store used by tests and by single-host games that
// do not need durability.
type Memory struct {
	mu       sync.Mutex
	states   map[string]*game.GameState
	sessions map[string]SessionInfo
	watchers map[string][]chan *game.GameState
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{
		states:   map[string]*game.GameState{},
		sessions: map[string]SessionInfo{},
		watchers: map[string][]chan *game.GameState{},
	}
}

func (m *Memory) PutState(_ context.Context, sessionID string, state *game.GameState) error {
	snap := state.Clone()
	m.mu.Lock()
	m.states[sessionID] = snap
	watchers := append([]chan *game.GameState(nil), m.watchers[sessionID]...)
	m.mu.Unlock()
	for _, ch := range watchers {
		select {
		case ch <- snap.Clone():
		default:
			// a stalled watcher misses this round and catches up on the next
		}
	}
	return nil
}

func (m *Memory) GetState(_ context.Context, sessionID string) (*game.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

func (m *Memory) Watch(ctx context.Context, sessionID string) (<-chan *game.GameState, error) {
	ch := make(chan *game.GameState, 4)
	m.mu.Lock()
	m.watchers[sessionID] = append(m.watchers[sessionID], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		ws := m.watchers[sessionID]
		for i, w := range ws {
			if w == ch {
				m.watchers[sessionID] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) UpsertSession(_ context.Context, info SessionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[info.ID] = info
	return nil
}

func (m *Memory) RemoveSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	delete(m.states, sessionID)
	return nil
}

func (m *Memory) ListSessions(_ context.Context) ([]SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, info := range m.sessions {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
