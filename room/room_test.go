package room

import (
	"testing"
	"time"

	"github.com/wfunc/cursedcards/game"
	"github.com/wfunc/cursedcards/timer"
)

// MockNotifier is a test double for the game.Notifier interface.
type MockNotifier struct{}

func (m *MockNotifier) StateChanged(roomCode string)         {}
func (m *MockNotifier) Event(roomCode string, ev game.Event) {}

func newTestManager() *Manager {
	return NewManager(4)
}

func TestManager_CreateAndGetRoom(t *testing.T) {
	manager := newTestManager()

	room := manager.CreateRoom("host1", "Alice", 0)
	if room == nil {
		t.Fatal("CreateRoom should not return nil")
	}

	if len(room.Code) != codeLength {
		t.Errorf("Expected a %d-letter room code, got %q", codeLength, room.Code)
	}
	for _, c := range room.Code {
		if c == 'I' || c == 'O' {
			t.Errorf("Room code %q contains ambiguous letter %c", room.Code, c)
		}
	}

	retrieved, exists := manager.GetRoom(room.Code)
	if !exists {
		t.Fatal("GetRoom should find the created room")
	}
	if retrieved != room {
		t.Error("GetRoom should return the same room instance")
	}

	if room.HostID() != "host1" {
		t.Errorf("Expected host ID host1, got %s", room.HostID())
	}
}

func TestRoom_AddPlayer_Constraints(t *testing.T) {
	room := NewRoom("ABCD", "host1", "Alice", 0, 2)

	if err := room.AddPlayer("p2", "Bob", 1); err != nil {
		t.Fatalf("Failed to add second player: %v", err)
	}

	// Room holds 2, both slots taken.
	if err := room.AddPlayer("p3", "Carol", 2); err != ErrRoomFull {
		t.Errorf("Expected ErrRoomFull, got %v", err)
	}
}

func TestRoom_AddPlayer_NameTakenCaseInsensitive(t *testing.T) {
	room := NewRoom("ABCD", "host1", "Alice", 0, 4)

	if err := room.AddPlayer("p2", "ALICE", 1); err != ErrNameTaken {
		t.Errorf("Expected ErrNameTaken for case-insensitive duplicate, got %v", err)
	}
}

func TestRoom_AddPlayer_AvatarTaken(t *testing.T) {
	room := NewRoom("ABCD", "host1", "Alice", 0, 4)

	if err := room.AddPlayer("p2", "Bob", 0); err != ErrAvatarTaken {
		t.Errorf("Expected ErrAvatarTaken, got %v", err)
	}
}

func TestRoom_RemovePlayer_PromotesHost(t *testing.T) {
	room := NewRoom("ABCD", "host1", "Alice", 0, 4)
	room.AddPlayer("p2", "Bob", 1)

	room.RemovePlayer("host1")

	if room.HostID() != "p2" {
		t.Errorf("Expected p2 to be promoted to host, got %s", room.HostID())
	}
	if room.HasPlayer("host1") {
		t.Error("Removed player should no longer be in the room")
	}
}

func TestRoom_Start_RequiresTwoPlayers(t *testing.T) {
	room := NewRoom("ABCD", "host1", "Alice", 0, 4)

	timers := timer.NewManager()
	defer timers.Stop()

	if err := room.Start(timers, &MockNotifier{}, game.Options{}); err != ErrNotEnoughPlayers {
		t.Errorf("Expected ErrNotEnoughPlayers, got %v", err)
	}
}

func TestRoom_Start_LocksLobby(t *testing.T) {
	room := NewRoom("ABCD", "host1", "Alice", 0, 4)
	room.AddPlayer("p2", "Bob", 1)

	timers := timer.NewManager()
	defer timers.Stop()

	if err := room.Start(timers, &MockNotifier{}, game.Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if room.Engine() == nil {
		t.Fatal("Engine should exist after Start")
	}

	if err := room.AddPlayer("p3", "Carol", 2); err != ErrGameInProgress {
		t.Errorf("Expected ErrGameInProgress when joining a started game, got %v", err)
	}
	if err := room.Start(timers, &MockNotifier{}, game.Options{}); err != ErrGameInProgress {
		t.Errorf("Expected ErrGameInProgress on double start, got %v", err)
	}
}

func TestManager_GetRoomByPlayer(t *testing.T) {
	manager := newTestManager()
	room := manager.CreateRoom("host1", "Alice", 0)
	room.AddPlayer("p2", "Bob", 1)

	found, exists := manager.GetRoomByPlayer("p2")
	if !exists {
		t.Fatal("GetRoomByPlayer should find the room for a member")
	}
	if found.Code != room.Code {
		t.Errorf("Expected room %s, got %s", room.Code, found.Code)
	}

	if _, exists := manager.GetRoomByPlayer("stranger"); exists {
		t.Error("GetRoomByPlayer should not find a room for a non-member")
	}
}

func TestRoom_ReplacePlayerID(t *testing.T) {
	room := NewRoom("ABCD", "host1", "Alice", 0, 4)
	room.AddPlayer("p2", "Bob", 1)

	timers := timer.NewManager()
	defer timers.Stop()

	if err := room.Start(timers, &MockNotifier{}, game.Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !room.ReplacePlayerID("host1", "host1-new") {
		t.Fatal("ReplacePlayerID should succeed for an existing player")
	}
	if room.HostID() != "host1-new" {
		t.Errorf("Host ID should follow the reconnect, got %s", room.HostID())
	}
	if !room.HasPlayer("host1-new") {
		t.Error("Room should know the player under the new ID")
	}
	if room.HasPlayer("host1") {
		t.Error("Room should no longer know the player under the old ID")
	}

	if room.ReplacePlayerID("ghost", "whatever") {
		t.Error("ReplacePlayerID should fail for an unknown player")
	}
}

func TestManager_Sweep(t *testing.T) {
	manager := newTestManager()
	room := manager.CreateRoom("host1", "Alice", 0)

	// Still connected: never swept.
	if removed := manager.Sweep(0); removed != 0 {
		t.Fatalf("Sweep removed %d rooms with connected players", removed)
	}

	room.RemovePlayer("host1")
	room.CreatedAt = time.Now().Add(-10 * time.Minute)

	if removed := manager.Sweep(5 * time.Minute); removed != 1 {
		t.Fatalf("Expected 1 room swept, got %d", removed)
	}
	if manager.Count() != 0 {
		t.Errorf("Expected 0 rooms after sweep, got %d", manager.Count())
	}
}
