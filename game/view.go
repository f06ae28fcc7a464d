package game

import (
	"github.com/wfunc/cursedcards/deck"
)

// PlayerView is the public face of a player: hand count only, never contents.
type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      int    `json:"avatar"`
	HandCount   int    `json:"handCount"`
	IsAlive     bool   `json:"isAlive"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
}

// PendingActionView is the wire shape of the pending action, flattened from
// the internal sum type and filtered for the viewer.
type PendingActionView struct {
	Type             string        `json:"type"`
	SourcePlayerID   string        `json:"sourcePlayerId"`
	TargetPlayerID   string        `json:"targetPlayerId,omitempty"`
	CardType         deck.CardType `json:"cardType,omitempty"`
	PeekedCards      []deck.Card   `json:"peekedCards,omitempty"`
	HexDeadline      int64         `json:"hexDeadline,omitempty"` // unix millis
	RespondedPlayers []string      `json:"respondedPlayers,omitempty"`
}

// StateView is the sanitized projection sent to one player: their own hand
// in full, everyone else as counts.
type StateView struct {
	RoomCode        string             `json:"roomCode"`
	Phase           Phase              `json:"phase"`
	Players         []PlayerView       `json:"players"`
	CurrentPlayerID string             `json:"currentPlayerId"`
	MyHand          []deck.Card        `json:"myHand"`
	MyID            string             `json:"myId"`
	DeckCount       int                `json:"deckCount"`
	DiscardPile     []deck.Card        `json:"discardPile"`
	TurnNumber      int                `json:"turnNumber"`
	PendingAction   *PendingActionView `json:"pendingAction"`
	Winner          string             `json:"winner,omitempty"`
	Message         string             `json:"message"`
}

// StateFor builds the projection for the given player. The viewer sees dark
// vision peeks only when they performed the peek; hex responder sets are
// visible to all.
func (e *Engine) StateFor(playerID string) *StateView {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state

	players := make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		players[i] = PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Avatar:      p.Avatar,
			HandCount:   len(p.Hand),
			IsAlive:     p.Alive,
			IsHost:      p.Host,
			IsConnected: p.Connected,
		}
	}

	var myHand []deck.Card
	if me := s.playerByID(playerID); me != nil {
		myHand = make([]deck.Card, len(me.Hand))
		copy(myHand, me.Hand)
	}

	discard := make([]deck.Card, len(s.DiscardPile))
	copy(discard, s.DiscardPile)

	return &StateView{
		RoomCode:        s.RoomCode,
		Phase:           s.Phase,
		Players:         players,
		CurrentPlayerID: s.currentPlayer().ID,
		MyHand:          myHand,
		MyID:            playerID,
		DeckCount:       len(s.Deck),
		DiscardPile:     discard,
		TurnNumber:      s.TurnNumber,
		PendingAction:   sanitizePending(s.Pending, playerID),
		Winner:          s.Winner,
		Message:         s.Message,
	}
}

func sanitizePending(pa PendingAction, viewerID string) *PendingActionView {
	switch a := pa.(type) {
	case nil:
		return nil
	case *TargetSelect:
		return &PendingActionView{
			Type:           "target_select",
			SourcePlayerID: a.Source,
			CardType:       a.CardType,
		}
	case *HexWindow:
		responded := make([]string, len(a.Responded))
		copy(responded, a.Responded)
		return &PendingActionView{
			Type:             "hex_window",
			SourcePlayerID:   a.Source,
			TargetPlayerID:   a.Target,
			CardType:         a.CardType,
			HexDeadline:      a.Deadline.UnixMilli(),
			RespondedPlayers: responded,
		}
	case *DemonReveal:
		return &PendingActionView{
			Type:           "demon_reveal",
			SourcePlayerID: a.Source,
			CardType:       deck.DemonsBargain,
		}
	case *CounterSpellReinsert:
		return &PendingActionView{
			Type:           "counter_spell_reinsert",
			SourcePlayerID: a.Source,
		}
	case *DarkVision:
		view := &PendingActionView{
			Type:           "dark_vision",
			SourcePlayerID: a.Source,
		}
		if a.Source == viewerID {
			view.PeekedCards = make([]deck.Card, len(a.Peeked))
			copy(view.PeekedCards, a.Peeked)
		}
		return view
	default:
		return nil
	}
}

// Summary exposes the end-of-match facts needed by persistence and the admin
// RPC without handing out the mutable state.
type Summary struct {
	RoomCode   string
	Phase      Phase
	TurnNumber int
	WinnerID   string
	WinnerName string
	Players    []PlayerView
}

func (e *Engine) Summarize() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	players := make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		players[i] = PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Avatar:      p.Avatar,
			HandCount:   len(p.Hand),
			IsAlive:     p.Alive,
			IsHost:      p.Host,
			IsConnected: p.Connected,
		}
	}

	winnerName := ""
	if s.Winner != "" {
		if w := s.playerByID(s.Winner); w != nil {
			winnerName = w.Name
		}
	}

	return Summary{
		RoomCode:   s.RoomCode,
		Phase:      s.Phase,
		TurnNumber: s.TurnNumber,
		WinnerID:   s.Winner,
		WinnerName: winnerName,
		Players:    players,
	}
}
