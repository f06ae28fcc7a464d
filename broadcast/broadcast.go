// Package broadcast delivers packets to sessions by room membership or to a
// single player. Game-state payloads differ per player (each sees only their
// own hand), so room-wide broadcast is reserved for identical payloads like
// lobby updates and events.
package broadcast

import (
	"errors"

	"github.com/wfunc/cursedcards/room"
	"github.com/wfunc/cursedcards/session"
)

var ErrRoomNotFound = errors.New("room not found")

type Broadcaster interface {
	BroadcastToRoom(roomCode string, msgID uint16, data []byte) error
	SendToPlayer(playerID string, msgID uint16, data []byte) error
}

// RoomBroadcaster resolves room membership through the room manager and
// delivers through the session manager.
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomCode string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomCode)
	if !exists {
		return ErrRoomNotFound
	}

	for _, playerID := range r.PlayerIDs() {
		s, ok := b.sessionManager.Get(playerID)
		if !ok {
			// Disconnected player within their grace period.
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}

	return nil
}

func (b *RoomBroadcaster) SendToPlayer(playerID string, msgID uint16, data []byte) error {
	s, ok := b.sessionManager.Get(playerID)
	if !ok {
		return nil
	}
	return s.Send(msgID, data)
}
