// Package room maps short human-enterable codes to rosters and engine
// instances, and enforces lobby constraints before a game starts.
package room

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/cursedcards/game"
	"github.com/wfunc/cursedcards/timer"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrNameTaken        = errors.New("name already taken in this room")
	ErrAvatarTaken      = errors.New("avatar already taken in this room")
	ErrAlreadyJoined    = errors.New("you are already in this room")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrNotEnoughPlayers = errors.New("need at least 2 players to start")
	ErrRoomNotFound     = errors.New("room not found")
)

// Codes avoid I and O to keep them readable when typed by hand.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
const codeLength = 4

func generateCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// LobbyView is the pre-game roster snapshot sent to every member.
type LobbyView struct {
	RoomCode string            `json:"roomCode"`
	Players  []game.PlayerView `json:"players"`
	HostID   string            `json:"hostId"`
}

// Room owns its roster until the game starts; after Start the engine owns
// the player entities and the room only routes to it.
type Room struct {
	Code      string
	CreatedAt time.Time

	mu         sync.Mutex
	hostID     string
	players    []*game.Player
	engine     *game.Engine
	maxPlayers int
}

// NewRoom creates a room with the given host as its first member.
func NewRoom(code, hostID, hostName string, hostAvatar, maxPlayers int) *Room {
	r := &Room{
		Code:       code,
		CreatedAt:  time.Now(),
		hostID:     hostID,
		maxPlayers: maxPlayers,
	}
	r.players = append(r.players, &game.Player{
		ID:        hostID,
		Name:      hostName,
		Avatar:    hostAvatar,
		Alive:     true,
		Host:      true,
		Connected: true,
	})
	return r
}

// AddPlayer enforces the lobby constraints: capacity, unique
// case-insensitive name, unique avatar slot, no duplicate connection, and no
// joining a started game.
func (r *Room) AddPlayer(id, name string, avatar int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		return ErrGameInProgress
	}
	if len(r.players) >= r.maxPlayers {
		return ErrRoomFull
	}

	nameLower := strings.ToLower(name)
	for _, p := range r.players {
		if strings.ToLower(p.Name) == nameLower {
			return ErrNameTaken
		}
		if p.Avatar == avatar {
			return ErrAvatarTaken
		}
		if p.ID == id {
			return ErrAlreadyJoined
		}
	}

	r.players = append(r.players, &game.Player{
		ID:        id,
		Name:      name,
		Avatar:    avatar,
		Alive:     true,
		Connected: true,
	})
	return nil
}

// RemovePlayer handles a leave or connection drop. During the lobby the
// player is removed outright, with host promotion if the host left; during a
// game the engine's disconnect handling takes over and the cards stay in
// play.
func (r *Room) RemovePlayer(id string) {
	r.mu.Lock()
	engine := r.engine
	if engine == nil {
		for i, p := range r.players {
			if p.ID == id {
				r.players = append(r.players[:i], r.players[i+1:]...)
				break
			}
		}
		if r.hostID == id && len(r.players) > 0 {
			r.hostID = r.players[0].ID
			r.players[0].Host = true
		}
	}
	r.mu.Unlock()

	if engine != nil {
		engine.HandleDisconnect(id)
	}
}

// Start snapshots the roster into a new engine. Only valid once, with at
// least two players.
func (r *Room) Start(timers *timer.Manager, notifier game.Notifier, opts game.Options) error {
	r.mu.Lock()

	if r.engine != nil {
		r.mu.Unlock()
		return ErrGameInProgress
	}
	if len(r.players) < 2 {
		r.mu.Unlock()
		return ErrNotEnoughPlayers
	}

	engine := game.NewEngine(r.Code, r.players, timers, notifier, opts)
	r.engine = engine
	r.mu.Unlock()

	return engine.Start()
}

// Engine returns the running engine, or nil while still in the lobby.
func (r *Room) Engine() *game.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine
}

// HostID returns the current host's connection ID.
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// HasPlayer reports whether the connection ID belongs to this room. Once a
// game runs, the engine owns the player entities, so the roster is read
// through its snapshot rather than aliased directly.
func (r *Room) HasPlayer(id string) bool {
	for _, pid := range r.PlayerIDs() {
		if pid == id {
			return true
		}
	}
	return false
}

// ReplacePlayerID rewires a reconnecting player to their new connection.
// During a game the engine does the swap so its timers are cleaned up too.
func (r *Room) ReplacePlayerID(oldID, newID string) bool {
	r.mu.Lock()
	engine := r.engine
	if engine == nil {
		r.mu.Unlock()
		return false
	}
	if r.hostID == oldID {
		r.hostID = newID
	}
	r.mu.Unlock()

	return engine.HandleReconnect(oldID, newID)
}

// PlayerIDs returns the connection IDs of all current members.
func (r *Room) PlayerIDs() []string {
	if engine := r.Engine(); engine != nil {
		summary := engine.Summarize()
		ids := make([]string, 0, len(summary.Players))
		for _, p := range summary.Players {
			ids = append(ids, p.ID)
		}
		return ids
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ID)
	}
	return ids
}

// PlayerName returns the display name for a connection ID.
func (r *Room) PlayerName(id string) string {
	if engine := r.Engine(); engine != nil {
		for _, p := range engine.Summarize().Players {
			if p.ID == id {
				return p.Name
			}
		}
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// LobbyState snapshots the roster for broadcast.
func (r *Room) LobbyState() LobbyView {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]game.PlayerView, len(r.players))
	for i, p := range r.players {
		players[i] = game.PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Avatar:      p.Avatar,
			IsAlive:     true,
			IsHost:      p.Host,
			IsConnected: p.Connected,
		}
	}
	return LobbyView{RoomCode: r.Code, Players: players, HostID: r.hostID}
}

// Empty reports whether nobody is left, or everyone left is disconnected.
func (r *Room) Empty() bool {
	if engine := r.Engine(); engine != nil {
		for _, p := range engine.Summarize().Players {
			if p.IsConnected {
				return false
			}
		}
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) == 0 {
		return true
	}
	for _, p := range r.players {
		if p.Connected {
			return false
		}
	}
	return true
}

// Manager is the injected room registry: create/get/delete plus stale-room
// collection. No ambient global map.
type Manager struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	maxPlayers int
}

func NewManager(maxPlayers int) *Manager {
	if maxPlayers <= 0 {
		maxPlayers = 4
	}
	return &Manager{
		rooms:      make(map[string]*Room),
		maxPlayers: maxPlayers,
	}
}

// CreateRoom mints a fresh unique code and registers the room.
func (m *Manager) CreateRoom(hostID, hostName string, hostAvatar int) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := generateCode()
	for m.rooms[code] != nil {
		code = generateCode()
	}

	r := NewRoom(code, hostID, hostName, hostAvatar, m.maxPlayers)
	m.rooms[code] = r
	return r
}

func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

func (m *Manager) RemoveRoom(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
}

// GetRoomByPlayer finds the room a connection currently belongs to.
func (m *Manager) GetRoomByPlayer(playerID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if r.HasPlayer(playerID) {
			return r, true
		}
	}
	return nil, false
}

// Count returns the number of registered rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Codes lists the codes of all registered rooms.
func (m *Manager) Codes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Sweep garbage-collects rooms with no connected members past the TTL.
func (m *Manager) Sweep(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := time.Now()
	for code, r := range m.rooms {
		if r.Empty() && now.Sub(r.CreatedAt) > ttl {
			delete(m.rooms, code)
			removed++
		}
	}
	return removed
}
