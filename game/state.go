// Package game implements the authoritative rules engine: the turn state
// machine, the effect resolver and the per-player state projection.
package game

import (
	"time"

	"github.com/wfunc/cursedcards/deck"
)

// Phase is the current state of a room's turn state machine.
type Phase string

const (
	PhaseWaiting              Phase = "waiting"
	PhasePlaying              Phase = "playing"
	PhaseDrawPhase            Phase = "draw_phase"
	PhaseTargetSelect         Phase = "target_select"
	PhaseHexWindow            Phase = "hex_window"
	PhaseDemonReveal          Phase = "demon_reveal"
	PhaseCounterSpellReinsert Phase = "counter_spell_reinsert"
	PhaseDarkVision           Phase = "dark_vision"
	PhaseGameOver             Phase = "game_over"
)

// Player is owned by the engine once a game starts and by the room while
// still in the lobby. ID tracks the current connection and is swapped on
// reconnect; the entity itself survives.
type Player struct {
	ID        string
	Name      string
	Avatar    int
	Hand      []deck.Card
	Alive     bool
	Host      bool
	Connected bool

	disconnectTimer int64 // timer task ID, 0 when none pending
}

// HasCardType reports whether the player holds at least one card of the type.
func (p *Player) HasCardType(t deck.CardType) bool {
	for _, c := range p.Hand {
		if c.Type == t {
			return true
		}
	}
	return false
}

// removeCard takes the card with the given ID out of the hand.
func (p *Player) removeCard(cardID string) (deck.Card, bool) {
	for i, c := range p.Hand {
		if c.ID == cardID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return deck.Card{}, false
}

// removeCardOfType takes the first card of the given type out of the hand.
func (p *Player) removeCardOfType(t deck.CardType) (deck.Card, bool) {
	for i, c := range p.Hand {
		if c.Type == t {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return deck.Card{}, false
}

// PendingAction is the single in-flight sub-protocol gating normal play.
// Exactly one variant exists per room at any time.
type PendingAction interface {
	// SourceID is the player the pending action belongs to.
	SourceID() string
}

// TargetSelect: the actor chose a card needing a target but has not named one.
type TargetSelect struct {
	Source   string
	CardType deck.CardType
}

func (a *TargetSelect) SourceID() string { return a.Source }

// HexWindow: the actor's play is open to being canceled until the deadline.
// Seq distinguishes this window from any earlier one so a stale timer fire
// can be recognized and ignored.
type HexWindow struct {
	Source     string
	Target     string
	CardType   deck.CardType
	GiftCardID string
	Deadline   time.Time
	Responded  []string
	Seq        uint64
}

func (a *HexWindow) SourceID() string { return a.Source }

func (a *HexWindow) hasResponded(playerID string) bool {
	for _, id := range a.Responded {
		if id == playerID {
			return true
		}
	}
	return false
}

// DemonReveal: the actor drew a Demon's Bargain and must decide whether to
// mitigate. The demon card sits transiently in the discard pile.
type DemonReveal struct {
	Source string
}

func (a *DemonReveal) SourceID() string { return a.Source }

// CounterSpellReinsert: the actor mitigated and must choose a deck position
// for the demon card.
type CounterSpellReinsert struct {
	Source string
}

func (a *CounterSpellReinsert) SourceID() string { return a.Source }

// DarkVision: the actor is viewing the top deck cards and must acknowledge.
type DarkVision struct {
	Source string
	Peeked []deck.Card
}

func (a *DarkVision) SourceID() string { return a.Source }

// Event is an observational signal for the presentation layer. Events never
// feed back into the state machine.
type Event struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	CardName   string `json:"cardName,omitempty"`
	WinnerID   string `json:"winnerId,omitempty"`
	WinnerName string `json:"winnerName,omitempty"`
	Blocked    string `json:"blockedAction,omitempty"`
}

const (
	EventCardPlayed       = "card_played"
	EventDemonDrawn       = "demon_drawn"
	EventPlayerEliminated = "player_eliminated"
	EventCounterSpellUsed = "counter_spell_used"
	EventHexBlockUsed     = "hex_block_used"
	EventGameOver         = "game_over"
)

// GameState is the single shared mutable resource of a room. It is owned
// exclusively by one Engine and mutated only under that engine's lock.
type GameState struct {
	RoomCode           string
	Phase              Phase
	Players            []*Player // turn order = slice order
	CurrentPlayerIndex int
	Deck               []deck.Card
	DiscardPile        []deck.Card
	TurnNumber         int
	Pending            PendingAction
	Winner             string // player ID, empty until game over
	Message            string

	events []Event // drained by the engine after each mutation
}

func (s *GameState) currentPlayer() *Player {
	return s.Players[s.CurrentPlayerIndex]
}

func (s *GameState) playerByID(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *GameState) alivePlayers() []*Player {
	alive := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// otherAlivePlayers returns living players other than the one given.
func (s *GameState) otherAlivePlayers(playerID string) []*Player {
	others := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive && p.ID != playerID {
			others = append(others, p)
		}
	}
	return others
}

func (s *GameState) emit(ev Event) {
	s.events = append(s.events, ev)
}
