// Package server is the WebSocket transport: it matches connections to
// sessions, decodes inbound action packets, drives the room manager and the
// game engines, and projects sanitized state back to each player.
package server

import (
	"encoding/json"
	"net/http"
	stdrpc "net/rpc"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/cursedcards/broadcast"
	"github.com/wfunc/cursedcards/config"
	"github.com/wfunc/cursedcards/deck"
	"github.com/wfunc/cursedcards/game"
	"github.com/wfunc/cursedcards/logger"
	"github.com/wfunc/cursedcards/monitor"
	"github.com/wfunc/cursedcards/network"
	"github.com/wfunc/cursedcards/persistence"
	"github.com/wfunc/cursedcards/room"
	gamerpc "github.com/wfunc/cursedcards/rpc"
	"github.com/wfunc/cursedcards/services"
	"github.com/wfunc/cursedcards/session"
	"github.com/wfunc/cursedcards/timer"
)

var (
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9 _\-]+$`)
	codePattern = regexp.MustCompile(`^[A-Z]{4}$`)
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	recordService  *services.RecordService
	mon            *monitor.Monitor
	timers         *timer.Manager
	rpcServer      *gamerpc.Server

	mutex      sync.Mutex
	startTimes map[string]time.Time // room code -> game start
	shutdown   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewManager(cfg.Game.MaxPlayers),
		sessionManager: session.NewManager(),
		recordService:  services.NewRecordService(db),
		mon:            monitor.NewMonitor("cursedcards"),
		timers:         timer.NewManager(),
		startTimes:     make(map[string]time.Time),
		shutdown:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	rpcServer, err := gamerpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	stdrpc.Register(gamerpc.NewAdminService(s.roomManager, s.recordService))

	// Stale-room collection.
	ttl := cfg.Game.RoomTTL
	s.timers.Schedule(ttl, ttl, func() {
		if removed := s.roomManager.Sweep(ttl); removed > 0 {
			logger.Log.Infof("Swept %d stale rooms", removed)
		}
		s.mon.SetActiveRooms(s.roomManager.Count())
	})

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.mon.StartServer(s.cfg.Server.MetricsAddress)

	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdown)
	s.rpcServer.Stop()
	s.timers.Stop()
}

// --- game.Notifier ---

// StateChanged re-projects the room's state to every member. Each player
// receives their own sanitized view; hands of others are never serialized.
func (s *GameServer) StateChanged(roomCode string) {
	r, exists := s.roomManager.GetRoom(roomCode)
	if !exists {
		return
	}
	engine := r.Engine()
	if engine == nil {
		return
	}

	for _, playerID := range r.PlayerIDs() {
		view := engine.StateFor(playerID)
		data, err := json.Marshal(view)
		if err != nil {
			logger.Log.Errorf("Error marshalling state for %s: %v", playerID, err)
			continue
		}
		s.broadcaster.SendToPlayer(playerID, network.MsgTypeGameState, data)
	}
}

// Event relays observational signals to the whole room and keeps metrics
// and match records in step with them.
func (s *GameServer) Event(roomCode string, ev game.Event) {
	switch ev.Type {
	case game.EventPlayerEliminated:
		s.mon.IncEliminations()
	case game.EventGameOver:
		s.mon.IncGamesCompleted()
		s.recordMatch(roomCode)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.broadcaster.BroadcastToRoom(roomCode, network.MsgTypeEvent, data)
}

func (s *GameServer) recordMatch(roomCode string) {
	s.mutex.Lock()
	startedAt, ok := s.startTimes[roomCode]
	delete(s.startTimes, roomCode)
	s.mutex.Unlock()
	if !ok {
		return
	}

	r, exists := s.roomManager.GetRoom(roomCode)
	if !exists {
		return
	}
	engine := r.Engine()
	if engine == nil {
		return
	}

	if err := s.recordService.SaveFinishedMatch(engine.Summarize(), startedAt); err != nil {
		logger.Log.Errorf("Failed to record match for room %s: %v", roomCode, err)
	}
}

// --- connection handling ---

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncConnectedPlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecConnectedPlayers()
		s.leaveCurrentRoom(sess)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdown:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
		return
	case network.MsgTypeCreateRoom:
		err = s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		err = s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.leaveCurrentRoom(sess)
	case network.MsgTypeStartGame:
		err = s.handleStartGame(sess)
	case network.MsgTypeReconnect:
		err = s.handleReconnect(sess, packet)
	case network.MsgTypePlayCard, network.MsgTypeSelectTarget, network.MsgTypeDrawCard,
		network.MsgTypeHexResponse, network.MsgTypeCounterResponse,
		network.MsgTypeDarkVisionDone, network.MsgTypePairSteal, network.MsgTypeReinsertDemon:
		err = s.handleGameAction(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		return
	}

	s.mon.ObserveActionLatency(time.Since(start))
	if err != nil {
		s.mon.IncActionsRejected()
		s.sendError(sess, err)
	} else {
		s.mon.IncActionsProcessed()
	}
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	data, _ := json.Marshal(map[string]string{"message": err.Error()})
	sess.Send(network.MsgTypeError, data)
}

// --- lobby ---

type joinRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	Avatar     int    `json:"avatar"`
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) > 20 {
		name = name[:20]
	}
	if len(name) < 2 {
		return "", errNameTooShort
	}
	if !namePattern.MatchString(name) {
		return "", errNameCharset
	}
	return name, nil
}

var (
	errNameTooShort   = jsonError("name must be at least 2 characters")
	errNameCharset    = jsonError("name can only contain letters, numbers, spaces, hyphens and underscores")
	errBadRoomCode    = jsonError("room code must be 4 letters")
	errRoomNotFound   = jsonError("room not found")
	errNotInRoom      = jsonError("you are not in a room")
	errNotHost        = jsonError("only the host can start the game")
	errGameNotStarted = jsonError("game has not started")
	errBadPayload     = jsonError("malformed request")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) error {
	s.leaveCurrentRoom(sess)

	var req joinRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return errBadPayload
	}

	name, err := validateName(req.PlayerName)
	if err != nil {
		return err
	}
	avatar := req.Avatar
	if avatar < 0 || avatar > 3 {
		avatar = 0
	}

	r := s.roomManager.CreateRoom(sess.GetID(), name, avatar)
	sess.RoomID = r.Code
	s.mon.SetActiveRooms(s.roomManager.Count())

	logger.Log.Infof("Session %s created room %s", sess.GetID(), r.Code)

	data, _ := json.Marshal(map[string]string{"roomCode": r.Code})
	sess.Send(network.MsgTypeRoomCreated, data)
	s.broadcastLobby(r)
	return nil
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) error {
	s.leaveCurrentRoom(sess)

	var req joinRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return errBadPayload
	}

	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	if !codePattern.MatchString(code) {
		return errBadRoomCode
	}

	r, exists := s.roomManager.GetRoom(code)
	if !exists {
		return errRoomNotFound
	}

	name, err := validateName(req.PlayerName)
	if err != nil {
		return err
	}
	avatar := req.Avatar
	if avatar < 0 || avatar > 3 {
		avatar = 0
	}

	if err := r.AddPlayer(sess.GetID(), name, avatar); err != nil {
		return err
	}
	sess.RoomID = code

	logger.Log.Infof("Session %s joined room %s", sess.GetID(), code)

	eventData, _ := json.Marshal(map[string]string{"type": "player_joined", "playerName": name})
	s.broadcaster.BroadcastToRoom(code, network.MsgTypeEvent, eventData)
	s.broadcastLobby(r)
	return nil
}

func (s *GameServer) handleStartGame(sess *session.Session) error {
	r, exists := s.roomManager.GetRoomByPlayer(sess.GetID())
	if !exists {
		return errNotInRoom
	}
	if r.HostID() != sess.GetID() {
		return errNotHost
	}

	s.mutex.Lock()
	s.startTimes[r.Code] = time.Now()
	s.mutex.Unlock()

	if err := r.Start(s.timers, s, game.Options{
		HexWindow:       s.cfg.Game.HexWindow,
		DisconnectGrace: s.cfg.Game.DisconnectGrace,
	}); err != nil {
		s.mutex.Lock()
		delete(s.startTimes, r.Code)
		s.mutex.Unlock()
		return err
	}

	logger.Log.Infof("Room %s started a game with %d players", r.Code, len(r.PlayerIDs()))
	return nil
}

func (s *GameServer) handleReconnect(sess *session.Session, packet *network.Packet) error {
	var req struct {
		RoomCode    string `json:"roomCode"`
		OldPlayerID string `json:"oldPlayerId"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return errBadPayload
	}

	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	r, exists := s.roomManager.GetRoom(code)
	if !exists {
		return errRoomNotFound
	}

	if !r.ReplacePlayerID(req.OldPlayerID, sess.GetID()) {
		return errRoomNotFound
	}
	sess.RoomID = code

	logger.Log.Infof("Session %s reconnected to room %s (was %s)", sess.GetID(), code, req.OldPlayerID)
	return nil
}

func (s *GameServer) broadcastLobby(r *room.Room) {
	data, err := json.Marshal(r.LobbyState())
	if err != nil {
		return
	}
	s.broadcaster.BroadcastToRoom(r.Code, network.MsgTypeLobbyUpdate, data)
}

// leaveCurrentRoom detaches the session from whatever room it is in. Lobby
// members are removed outright; in-game players get the engine's disconnect
// grace so their cards stay in play.
func (s *GameServer) leaveCurrentRoom(sess *session.Session) {
	r, exists := s.roomManager.GetRoomByPlayer(sess.GetID())
	if !exists {
		sess.RoomID = ""
		return
	}

	playerName := r.PlayerName(sess.GetID())
	inGame := r.Engine() != nil

	r.RemovePlayer(sess.GetID())
	sess.RoomID = ""

	eventData, _ := json.Marshal(map[string]string{"type": "player_left", "playerName": playerName})
	s.broadcaster.BroadcastToRoom(r.Code, network.MsgTypeEvent, eventData)

	if !inGame {
		s.broadcastLobby(r)
	}

	if r.Empty() && !inGame {
		s.roomManager.RemoveRoom(r.Code)
		s.mon.SetActiveRooms(s.roomManager.Count())
	}
}

// --- in-game actions ---

func (s *GameServer) handleGameAction(sess *session.Session, packet *network.Packet) error {
	r, exists := s.roomManager.GetRoomByPlayer(sess.GetID())
	if !exists {
		return errNotInRoom
	}
	engine := r.Engine()
	if engine == nil {
		return errGameNotStarted
	}

	playerID := sess.GetID()

	switch packet.MsgID {
	case network.MsgTypePlayCard:
		var req struct {
			CardID         string `json:"cardId"`
			TargetPlayerID string `json:"targetPlayerId"`
		}
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return errBadPayload
		}
		return engine.PlayCard(playerID, req.CardID, req.TargetPlayerID)

	case network.MsgTypeSelectTarget:
		var req struct {
			TargetPlayerID string `json:"targetPlayerId"`
			GiftCardID     string `json:"giftCardId"`
		}
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return errBadPayload
		}
		return engine.SelectTarget(playerID, req.TargetPlayerID, req.GiftCardID)

	case network.MsgTypeDrawCard:
		return engine.Draw(playerID)

	case network.MsgTypeHexResponse:
		var req struct {
			UseHexBlock bool   `json:"useHexBlock"`
			CardID      string `json:"cardId"`
		}
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return errBadPayload
		}
		return engine.HexResponse(playerID, req.UseHexBlock, req.CardID)

	case network.MsgTypeCounterResponse:
		var req struct {
			UseCounterSpell bool   `json:"useCounterSpell"`
			CardID          string `json:"cardId"`
		}
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return errBadPayload
		}
		return engine.CounterResponse(playerID, req.UseCounterSpell, req.CardID)

	case network.MsgTypeDarkVisionDone:
		return engine.DarkVisionDone(playerID)

	case network.MsgTypePairSteal:
		var req struct {
			CardID1           string `json:"cardId1"`
			CardID2           string `json:"cardId2"`
			TargetPlayerID    string `json:"targetPlayerId"`
			RequestedCardType string `json:"requestedCardType"`
		}
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return errBadPayload
		}
		return engine.PairSteal(playerID, req.CardID1, req.CardID2,
			req.TargetPlayerID, deck.CardType(req.RequestedCardType))

	case network.MsgTypeReinsertDemon:
		var req struct {
			Position int `json:"position"`
		}
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return errBadPayload
		}
		return engine.ReinsertDemon(playerID, req.Position)
	}

	return errBadPayload
}
