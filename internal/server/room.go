package server

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/starhold/internal/ai"
	"github.com/example/starhold/internal/game"
	"github.com/example/starhold/internal/store"
)

// Room is one game session. The hosting server process is the single writer
// of room.state; everything else observes published snapshots.
type Room struct {
	ID         string
	Name       string
	MaxPlayers int
	AICount    int
	Started    bool
	Host       PlayerID

	players map[PlayerID]*Player
	seats   map[PlayerID]game.Owner
	state   *game.GameState
	// pending holds this round's accepted order batches; queued holds
	// batches that arrived too late and wait for the next round.
	pending map[game.Owner][]game.Order
	queued  map[game.Owner][]game.Order
	barrier *RoundBarrier
	rng     *rand.Rand

	resolving bool
	closeCh   chan struct{}
	mu        sync.Mutex
}

func (gs *GameServer) createRoom(name string, maxPlayers, aiCount int) *Room {
	if name == "" {
		name = "Game " + uuid.NewString()[:4]
	}
	if maxPlayers < 2 || maxPlayers > 8 {
		maxPlayers = 4
	}
	if aiCount < 0 || aiCount >= maxPlayers {
		aiCount = 0
	}
	room := &Room{
		ID:         uuid.NewString(),
		Name:       name,
		MaxPlayers: maxPlayers,
		AICount:    aiCount,
		players:    map[PlayerID]*Player{},
		seats:      map[PlayerID]game.Owner{},
		pending:    map[game.Owner][]game.Order{},
		queued:     map[game.Owner][]game.Order{},
		barrier:    NewRoundBarrier(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		closeCh:    make(chan struct{}),
	}
	gs.roomsMu.Lock()
	gs.rooms[room.ID] = room
	gs.roomsMu.Unlock()
	gs.publishLobby(room)
	return room
}

func (gs *GameServer) joinRoom(p *Player, roomID string) {
	room := gs.getRoom(roomID)
	if room == nil {
		gs.sendError(p, "no such game")
		return
	}
	// remove from old room
	if p.roomID != "" && p.roomID != roomID {
		if old := gs.getRoom(p.roomID); old != nil {
			gs.leaveRoom(p, old)
		}
	}

	room.mu.Lock()
	if _, rejoining := room.seats[p.ID]; !rejoining {
		humans := room.MaxPlayers - room.AICount
		if room.Started || len(room.seats) >= humans {
			room.mu.Unlock()
			gs.sendError(p, "game is full or already underway")
			return
		}
		room.seats[p.ID] = room.freeSeatLocked()
	}
	if room.Host == "" {
		room.Host = p.ID
	}
	p.roomID = room.ID
	room.players[p.ID] = p
	room.mu.Unlock()

	gs.publishLobby(room)
	gs.broadcastRoom(room)
}

func (gs *GameServer) leaveRoom(p *Player, room *Room) {
	room.mu.Lock()
	delete(room.players, p.ID)
	if seat, ok := room.seats[p.ID]; ok {
		if room.Started {
			// keep the seat for a token rejoin, but stop waiting on it
			room.barrier.Drop(seat)
		} else {
			delete(room.seats, p.ID)
		}
	}
	if room.Host == p.ID {
		room.Host = ""
		for id := range room.players {
			room.Host = id
			break
		}
	}
	empty := len(room.players) == 0
	room.mu.Unlock()
	p.roomID = ""

	if empty {
		gs.closeRoom(room)
		return
	}
	gs.publishLobby(room)
	gs.broadcastRoom(room)
}

func (gs *GameServer) closeRoom(room *Room) {
	gs.roomsMu.Lock()
	delete(gs.rooms, room.ID)
	gs.roomsMu.Unlock()
	close(room.closeCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gs.store.RemoveSession(ctx, room.ID); err != nil {
		log.Printf("room %s: remove session: %v", room.ID, err)
	}
}

func (gs *GameServer) startGame(p *Player) {
	room := gs.getRoom(p.roomID)
	if room == nil {
		return
	}
	room.mu.Lock()
	if room.Host != p.ID {
		room.mu.Unlock()
		gs.sendError(p, "only the host can start the game")
		return
	}
	if room.Started {
		room.mu.Unlock()
		return
	}
	room.compactSeatsLocked()
	humans := len(room.seats)
	cfg := game.GenConfig{PlayerCount: humans + room.AICount, AICount: room.AICount}
	state, err := game.Generate(cfg, room.rng)
	if err != nil {
		room.mu.Unlock()
		gs.sendError(p, "cannot start: "+err.Error())
		return
	}
	room.Started = true
	room.state = state
	room.barrier.Arm(state.Round, room.humanSeatsLocked())
	room.mu.Unlock()

	gs.publishState(room, state)
	gs.publishLobby(room)
	gs.broadcastRoom(room)
}

// freeSeatLocked returns the lowest player tag no current seat holds, so a
// tag freed by a pre-game leave is reused before a new one is handed out.
// Caller holds room.mu and has already checked the room is not full.
func (r *Room) freeSeatLocked() game.Owner {
	used := map[game.Owner]bool{}
	for _, seat := range r.seats {
		used[seat] = true
	}
	for i := 1; i <= 8; i++ {
		if tag := game.PlayerTag(i); !used[tag] {
			return tag
		}
	}
	return game.Neutral
}

// compactSeatsLocked renumbers the surviving seats to P1..Pn in tag order.
// Pre-game leaves can punch holes in the tag sequence, and a seat above the
// generated player count could never act. Caller holds room.mu.
func (r *Room) compactSeatsLocked() {
	ids := make([]PlayerID, 0, len(r.seats))
	for id := range r.seats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.seats[ids[i]] < r.seats[ids[j]] })
	for i, id := range ids {
		r.seats[id] = game.PlayerTag(i + 1)
	}
}

// humanSeatsLocked lists the seats the barrier should wait on. Caller holds
// room.mu.
func (r *Room) humanSeatsLocked() []game.Owner {
	out := make([]game.Owner, 0, len(r.seats))
	for _, seat := range r.seats {
		out = append(out, seat)
	}
	return out
}

// submitOrders accepts one seat's batch for a round. Batches for a round
// that has already advanced (or is advancing right now) are queued for the
// next round, never applied retroactively.
func (gs *GameServer) submitOrders(p *Player, round int, batch []game.Order) {
	room := gs.getRoom(p.roomID)
	if room == nil {
		return
	}
	room.mu.Lock()
	if !room.Started {
		room.mu.Unlock()
		gs.sendError(p, "game has not started")
		return
	}
	seat, ok := room.seats[p.ID]
	if !ok {
		room.mu.Unlock()
		gs.sendError(p, "you have no seat in this game")
		return
	}
	gs.acceptOrdersLocked(room, seat, round, batch, p)
}

// acceptOrdersLocked files a batch under room.mu and releases the lock. It
// may kick off round resolution.
func (gs *GameServer) acceptOrdersLocked(room *Room, seat game.Owner, round int, batch []game.Order, notify *Player) {
	if room.resolving || round != room.state.Round {
		room.queued[seat] = batch
		room.mu.Unlock()
		if notify != nil {
			gs.send(notify, WSOut{Type: "orderAck", Payload: map[string]interface{}{"queued": true, "round": round}})
		}
		return
	}
	room.pending[seat] = batch
	room.barrier.MarkReady(seat, round)
	allReady := room.barrier.AllReady()
	room.mu.Unlock()

	if notify != nil {
		gs.send(notify, WSOut{Type: "orderAck", Payload: map[string]interface{}{"queued": false, "round": round}})
	}
	gs.broadcastRoom(room)
	if allReady {
		go gs.advanceRound(room)
	}
}

// forceAdvance lets the host resolve the round without waiting for the
// remaining seats.
func (gs *GameServer) forceAdvance(p *Player) {
	room := gs.getRoom(p.roomID)
	if room == nil {
		return
	}
	room.mu.Lock()
	host := room.Host == p.ID
	started := room.Started
	room.mu.Unlock()
	if !host {
		gs.sendError(p, "only the host can force the round")
		return
	}
	if !started {
		return
	}
	go gs.advanceRound(room)
}

// advanceRound is the single authoritative mutation point: it gathers the
// collected human batches plus AI proposals, runs the resolver once, and
// publishes the new snapshot.
func (gs *GameServer) advanceRound(room *Room) {
	room.mu.Lock()
	if !room.Started || room.resolving {
		room.mu.Unlock()
		return
	}
	room.resolving = true
	prev := room.state
	batches := make(map[game.Owner][]game.Order, len(room.pending))
	for seat, b := range room.pending {
		batches[seat] = b
	}
	room.mu.Unlock()

	// AI proposals go through the same validation as human orders, so a
	// misbehaving advisor can at worst waste its own turn.
	for seat := range prev.AIPlayers {
		if gs.proposer == nil {
			break
		}
		view := game.ViewFor(prev, seat)
		proposed, err := ai.ProposeWithTimeout(context.Background(), gs.proposer, view, gs.aiTimeout)
		if err != nil {
			log.Printf("room %s: advisor for %s: %v (seat skips the round)", room.ID, seat, err)
			continue
		}
		batches[seat] = proposed
	}

	next := game.ResolveTurn(prev, batches, room.rng)

	room.mu.Lock()
	room.state = next
	room.pending = map[game.Owner][]game.Order{}
	room.barrier.Arm(next.Round, room.humanSeatsLocked())
	// late batches become this round's submissions
	carried := room.queued
	room.queued = map[game.Owner][]game.Order{}
	for seat, b := range carried {
		room.pending[seat] = b
		room.barrier.MarkReady(seat, next.Round)
	}
	allReady := len(carried) > 0 && room.barrier.AllReady()
	room.resolving = false
	room.mu.Unlock()

	gs.publishState(room, next)
	gs.publishLobby(room)
	gs.broadcastRoom(room)
	if allReady {
		go gs.advanceRound(room)
	}
}

// publishState writes the snapshot to the store; failures go on the retry
// queue so a computed round is never lost to a flaky store.
func (gs *GameServer) publishState(room *Room, state *game.GameState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gs.store.PutState(ctx, room.ID, state); err != nil {
		log.Printf("room %s: publish round %d failed, queued for retry: %v", room.ID, state.Round, err)
		gs.queueWrite(publishJob{roomID: room.ID, state: state, closeCh: room.closeCh})
	}
}

func (gs *GameServer) publishLobby(room *Room) {
	room.mu.Lock()
	info := store.SessionInfo{
		ID:          room.ID,
		Name:        room.Name,
		PlayerCount: len(room.seats) + room.AICount,
		MaxPlayers:  room.MaxPlayers,
		Started:     room.Started,
	}
	if room.state != nil {
		info.Round = room.state.Round
	}
	room.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gs.store.UpsertSession(ctx, info); err != nil {
		log.Printf("room %s: lobby update failed: %v", room.ID, err)
	}
}
