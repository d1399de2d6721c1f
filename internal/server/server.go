package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/example/starhold/internal/ai"
	"github.com/example/starhold/internal/auth"
	"github.com/example/starhold/internal/game"
	"github.com/example/starhold/internal/orders"
	"github.com/example/starhold/internal/store"
)

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type WSOut struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type PlayerID string

// Player is one live connection. Identity survives reconnects through the
// session token; the connection itself is transient.
type Player struct {
	ID      PlayerID
	Name    string
	conn    *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter
	roomID  string
}

type publishJob struct {
	roomID  string
	state   *game.GameState
	closeCh chan struct{}
}

// GameServer owns the lobby and all rooms. It is the host process: the only
// writer of authoritative game state.
type GameServer struct {
	rooms     map[string]*Room
	roomsMu   sync.RWMutex
	upgrader  websocket.Upgrader
	store     store.Store
	proposer  ai.Proposer
	aiTimeout time.Duration
	auth      *auth.Config
	retryCh   chan publishJob
	quitCh    chan struct{}
}

func NewGameServer(st store.Store, proposer ai.Proposer, authCfg *auth.Config) *GameServer {
	gs := &GameServer{
		rooms: make(map[string]*Room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		store:     st,
		proposer:  proposer,
		aiTimeout: ai.DefaultTimeout,
		auth:      authCfg,
		retryCh:   make(chan publishJob, 64),
		quitCh:    make(chan struct{}),
	}
	go gs.retryWorker()
	return gs
}

// Close stops background work. The store is owned by the caller.
func (gs *GameServer) Close() {
	close(gs.quitCh)
}

// retryWorker re-attempts store writes that failed, so a resolved round is
// only ever delayed, never lost.
func (gs *GameServer) retryWorker() {
	for {
		select {
		case <-gs.quitCh:
			return
		case job := <-gs.retryCh:
			select {
			case <-job.closeCh:
				continue // room is gone, drop the write
			default:
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := gs.store.PutState(ctx, job.roomID, job.state)
			cancel()
			if err != nil {
				log.Printf("room %s: retry publish round %d failed: %v", job.roomID, job.state.Round, err)
				time.Sleep(2 * time.Second)
				gs.queueWrite(job)
				continue
			}
			log.Printf("room %s: round %d published after retry", job.roomID, job.state.Round)
		}
	}
}

func (gs *GameServer) queueWrite(job publishJob) {
	select {
	case gs.retryCh <- job:
	default:
		log.Printf("room %s: publish retry queue full, dropping round %d write", job.roomID, job.state.Round)
	}
}

// HTTP handlers

func (gs *GameServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}
	// transient identity until the client sends connect
	p := &Player{
		ID:      PlayerID(uuid.NewString()),
		conn:    conn,
		limiter: rate.NewLimiter(10, 20),
	}
	go gs.readLoop(p)
}

// HandleListRooms serves the lobby listing from the store, which also covers
// sessions published by other host processes sharing the same database.
func (gs *GameServer) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	sessions, err := gs.store.ListSessions(r.Context())
	if err != nil {
		http.Error(w, "lobby unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func (gs *GameServer) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		MaxPlayers int    `json:"maxPlayers"`
		AICount    int    `json:"aiCount"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	room := gs.createRoom(req.Name, req.MaxPlayers, req.AICount)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": room.ID, "name": room.Name})
}

// HandleGuestToken mints a session token for a display name, so a device
// can later reclaim its seat after a disconnect.
func (gs *GameServer) HandleGuestToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	playerID := uuid.NewString()
	token, err := gs.auth.IssueToken(playerID, req.Name)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"playerId": playerID, "token": token})
}

// WebSocket read loop

func (gs *GameServer) readLoop(p *Player) {
	defer func() {
		if p.conn != nil {
			p.conn.Close()
		}
		if p.roomID != "" {
			if room := gs.getRoom(p.roomID); room != nil {
				gs.leaveRoom(p, room)
			}
		}
	}()

	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("read:", err)
			}
			return
		}
		if !p.limiter.Allow() {
			log.Printf("player %s: rate limited, dropping %q", p.ID, msg.Type)
			continue
		}
		gs.dispatch(p, msg)
	}
}

func (gs *GameServer) dispatch(p *Player, msg Message) {
	switch msg.Type {
	case "connect":
		var data struct {
			Name  string `json:"name"`
			Token string `json:"token"`
		}
		json.Unmarshal(msg.Payload, &data)
		// Token reclaim only before the player is in a room. Re-keying the
		// identity later would strand the room's player and seat maps under
		// the old id.
		if data.Token != "" && p.roomID == "" {
			if claims, err := gs.auth.ValidateToken(data.Token); err == nil {
				p.ID = PlayerID(claims.PlayerID)
				p.Name = claims.Name
			} else {
				gs.sendError(p, "session token rejected")
			}
		}
		if data.Name != "" {
			p.Name = data.Name
		}
		if p.Name == "" {
			p.Name = "Commander " + string(p.ID[:4])
		}
		token, err := gs.auth.IssueToken(string(p.ID), p.Name)
		if err != nil {
			log.Printf("player %s: issue token: %v", p.ID, err)
		}
		gs.send(p, WSOut{Type: "connected", Payload: map[string]string{
			"playerId": string(p.ID),
			"name":     p.Name,
			"token":    token,
		}})
		gs.sendLobbyState(p)

	case "listRooms":
		gs.sendLobbyState(p)

	case "createRoom":
		var data struct {
			Name       string `json:"name"`
			MaxPlayers int    `json:"maxPlayers"`
			AICount    int    `json:"aiCount"`
		}
		json.Unmarshal(msg.Payload, &data)
		room := gs.createRoom(data.Name, data.MaxPlayers, data.AICount)
		gs.joinRoom(p, room.ID)

	case "joinRoom":
		var data struct {
			RoomID string `json:"roomId"`
		}
		json.Unmarshal(msg.Payload, &data)
		if data.RoomID != "" {
			gs.joinRoom(p, data.RoomID)
		}

	case "startGame":
		gs.startGame(p)

	case "submitOrders":
		var data struct {
			Round  int          `json:"round"`
			Orders []game.Order `json:"orders"`
		}
		if err := json.Unmarshal(msg.Payload, &data); err != nil {
			gs.sendError(p, "malformed order batch")
			return
		}
		gs.submitOrders(p, data.Round, data.Orders)

	case "ready":
		var data struct {
			Round int `json:"round"`
		}
		json.Unmarshal(msg.Payload, &data)
		gs.readyUp(p, data.Round)

	case "forceAdvance":
		gs.forceAdvance(p)

	case "ingestCode":
		var data struct {
			Code string `json:"code"`
		}
		json.Unmarshal(msg.Payload, &data)
		gs.ingestCode(p, data.Code)

	default:
		gs.sendError(p, "unknown message type "+msg.Type)
	}
}

// readyUp marks a seat done for the round without replacing any orders it
// already submitted. An empty submission is a legal turn.
func (gs *GameServer) readyUp(p *Player, round int) {
	room := gs.getRoom(p.roomID)
	if room == nil {
		return
	}
	room.mu.Lock()
	seat, ok := room.seats[p.ID]
	if !ok || !room.Started {
		room.mu.Unlock()
		return
	}
	if _, has := room.pending[seat]; !has {
		room.pending[seat] = nil
	}
	room.barrier.MarkReady(seat, round)
	allReady := room.barrier.AllReady()
	room.mu.Unlock()

	gs.broadcastRoom(room)
	if allReady {
		go gs.advanceRound(room)
	}
}

// ingestCode lets the host relay an out-of-band order transmission (scanned
// or pasted) into the round on behalf of the player who produced it.
func (gs *GameServer) ingestCode(p *Player, code string) {
	room := gs.getRoom(p.roomID)
	if room == nil {
		return
	}
	t, err := orders.Decode(code)
	if err != nil {
		if errors.Is(err, orders.ErrInvalidTransmission) {
			gs.sendError(p, "invalid transmission")
		} else {
			gs.sendError(p, "could not read transmission")
		}
		return
	}
	room.mu.Lock()
	if room.Host != p.ID {
		room.mu.Unlock()
		gs.sendError(p, "only the host can ingest transmissions")
		return
	}
	if !room.Started {
		room.mu.Unlock()
		gs.sendError(p, "game has not started")
		return
	}
	seated := false
	for _, seat := range room.seats {
		if seat == t.Owner {
			seated = true
			break
		}
	}
	if !seated {
		room.mu.Unlock()
		gs.sendError(p, "transmission is for a player not in this game")
		return
	}
	gs.acceptOrdersLocked(room, t.Owner, t.Round, t.Orders, p)
}

// Outbound

func (gs *GameServer) getRoom(id string) *Room {
	if id == "" {
		return nil
	}
	gs.roomsMu.RLock()
	defer gs.roomsMu.RUnlock()
	return gs.rooms[id]
}

func (gs *GameServer) send(p *Player, out WSOut) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.conn == nil {
		return
	}
	if err := p.conn.WriteJSON(out); err != nil {
		log.Printf("player %s: write: %v", p.ID, err)
	}
}

func (gs *GameServer) sendError(p *Player, message string) {
	gs.send(p, WSOut{Type: "error", Payload: map[string]string{"message": message}})
}

func (gs *GameServer) sendLobbyState(p *Player) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sessions, err := gs.store.ListSessions(ctx)
	if err != nil {
		log.Printf("lobby list: %v", err)
		sessions = nil
	}
	gs.send(p, WSOut{Type: "lobbyState", Payload: map[string]interface{}{"rooms": sessions}})
}

// broadcastRoom pushes the current room view to every connected player.
func (gs *GameServer) broadcastRoom(room *Room) {
	room.mu.Lock()
	readySeats := room.barrier.Ready()
	readySet := map[game.Owner]bool{}
	for _, seat := range readySeats {
		readySet[seat] = true
	}
	players := []map[string]interface{}{}
	for id, pp := range room.players {
		seat := room.seats[id]
		players = append(players, map[string]interface{}{
			"id":    id,
			"name":  pp.Name,
			"seat":  seat,
			"host":  id == room.Host,
			"ready": readySet[seat],
		})
	}
	meta := map[string]interface{}{
		"id":         room.ID,
		"name":       room.Name,
		"started":    room.Started,
		"maxPlayers": room.MaxPlayers,
		"aiCount":    room.AICount,
		"players":    players,
		"readySeats": readySeats,
	}
	var state *game.GameState
	if room.state != nil {
		state = room.state.Clone()
	}
	recipients := make([]*Player, 0, len(room.players))
	seats := make(map[PlayerID]game.Owner, len(room.seats))
	for id, pp := range room.players {
		recipients = append(recipients, pp)
		seats[id] = room.seats[id]
	}
	room.mu.Unlock()

	for _, pp := range recipients {
		gs.send(pp, WSOut{Type: "roomState", Payload: map[string]interface{}{
			"room":  meta,
			"state": state,
			"you":   map[string]interface{}{"id": pp.ID, "seat": seats[pp.ID]},
		}})
	}
}
