package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/cursedcards/deck"
	"github.com/wfunc/cursedcards/timer"
)

// Rejected actions. All validation happens before any mutation; a non-nil
// error means the state is unchanged.
var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrWrongPhase      = errors.New("cannot do that right now")
	ErrCardNotInHand   = errors.New("card not in hand")
	ErrCardNotPlayable = errors.New("that card cannot be played directly")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrSelfTarget      = errors.New("cannot target yourself")
	ErrInvalidPair     = errors.New("invalid pair")
	ErrInvalidResponse = errors.New("you cannot respond to this action")
	ErrNoPendingAction = errors.New("no matching pending action")
	ErrNoCardsLeft     = errors.New("no cards left to draw")
	ErrGameInProgress  = errors.New("game already in progress")
)

// Notifier receives the engine's outbound signals: a state change to
// re-project to every player, and observational events. Implementations must
// not call back into the engine synchronously from Event.
type Notifier interface {
	StateChanged(roomCode string)
	Event(roomCode string, ev Event)
}

// Options tunes the engine's two background timers.
type Options struct {
	HexWindow       time.Duration
	DisconnectGrace time.Duration
}

const (
	defaultHexWindow       = 3 * time.Second
	defaultDisconnectGrace = 30 * time.Second
)

var needsTarget = map[deck.CardType]bool{
	deck.DoomDraw:   true,
	deck.SoulSteal:  true,
	deck.CursedGift: true,
}

// hexable cards have their effect deferred to hex-window close so a block
// can prevent it entirely.
var hexable = map[deck.CardType]bool{
	deck.DoomDraw:     true,
	deck.SoulSteal:    true,
	deck.CursedGift:   true,
	deck.ChaosShuffle: true,
}

// Engine is the turn state machine for one room. It is the exclusive owner
// of the room's GameState; every public method serializes on the mutex, so
// concurrent player actions and timer fires never interleave mid-mutation.
type Engine struct {
	mu       sync.Mutex
	state    *GameState
	timers   *timer.Manager
	notifier Notifier
	opts     Options

	hexSeq     uint64
	hexTimerID int64
}

// NewEngine takes ownership of the roster. Player entities are shared with
// the room that created them; after this call only the engine mutates them.
func NewEngine(roomCode string, players []*Player, timers *timer.Manager, notifier Notifier, opts Options) *Engine {
	if opts.HexWindow <= 0 {
		opts.HexWindow = defaultHexWindow
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = defaultDisconnectGrace
	}
	return &Engine{
		state: &GameState{
			RoomCode: roomCode,
			Phase:    PhaseWaiting,
			Players:  players,
			Message:  "Waiting for players...",
		},
		timers:   timers,
		notifier: notifier,
		opts:     opts,
	}
}

// finish is called with the lock held. It drains queued events, releases the
// lock and, on success, notifies the outside world.
func (e *Engine) finish(err error) error {
	events := e.state.events
	e.state.events = nil
	code := e.state.RoomCode
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if e.notifier != nil {
		for _, ev := range events {
			e.notifier.Event(code, ev)
		}
		e.notifier.StateChanged(code)
	}
	return nil
}

// Start deals hands and opens play with the first roster player.
func (e *Engine) Start() error {
	e.mu.Lock()

	if e.state.Phase != PhaseWaiting {
		return e.finish(ErrGameInProgress)
	}

	hands, remaining := deck.DealInitialHands(deck.Shuffle(deck.Build()), len(e.state.Players))
	for i, p := range e.state.Players {
		p.Hand = hands[i]
		p.Alive = true
	}

	e.state.Deck = remaining
	e.state.Phase = PhasePlaying
	e.state.CurrentPlayerIndex = 0
	e.state.TurnNumber = 1
	e.state.Message = fmt.Sprintf("%s's turn", e.state.Players[0].Name)

	return e.finish(nil)
}

// PlayCard plays a card from the actor's hand. Cards that need a target but
// got none move the room into target selection instead of resolving.
func (e *Engine) PlayCard(playerID, cardID, targetID string) error {
	e.mu.Lock()

	s := e.state
	actor := s.playerByID(playerID)
	if actor == nil {
		return e.finish(ErrPlayerNotFound)
	}
	if s.currentPlayer().ID != playerID {
		return e.finish(ErrNotYourTurn)
	}
	if s.Phase != PhasePlaying {
		return e.finish(ErrWrongPhase)
	}

	var card deck.Card
	found := false
	for _, c := range actor.Hand {
		if c.ID == cardID {
			card = c
			found = true
			break
		}
	}
	if !found {
		return e.finish(ErrCardNotInHand)
	}

	switch card.Type {
	case deck.DemonsBargain, deck.CounterSpell, deck.HexBlock:
		return e.finish(ErrCardNotPlayable)
	}

	if needsTarget[card.Type] {
		if targetID == "" {
			s.Phase = PhaseTargetSelect
			s.Pending = &TargetSelect{Source: playerID, CardType: card.Type}
			s.Message = fmt.Sprintf("%s is choosing a target for %s...", actor.Name, card.Name)
			return e.finish(nil)
		}
		if err := s.validateTarget(playerID, targetID); err != nil {
			return e.finish(err)
		}
	}

	actor.removeCard(card.ID)
	s.DiscardPile = append(s.DiscardPile, card)
	s.emit(Event{Type: EventCardPlayed, PlayerID: actor.ID, PlayerName: actor.Name, CardName: card.Name})

	if e.maybeOpenHexWindow(actor, card, targetID, "") {
		return e.finish(nil)
	}

	e.applyEffect(card.Type, actor, targetID, "")
	return e.finish(nil)
}

// SelectTarget completes a pending target selection. An optional gift card
// ID picks the exact card for Cursed Gift.
func (e *Engine) SelectTarget(playerID, targetID, giftCardID string) error {
	e.mu.Lock()

	s := e.state
	ts, ok := s.Pending.(*TargetSelect)
	if !ok || ts.Source != playerID {
		return e.finish(ErrNoPendingAction)
	}
	if err := s.validateTarget(playerID, targetID); err != nil {
		return e.finish(err)
	}

	actor := s.playerByID(playerID)
	card, ok := actor.removeCardOfType(ts.CardType)
	if !ok {
		return e.finish(ErrCardNotInHand)
	}
	s.DiscardPile = append(s.DiscardPile, card)
	s.Pending = nil
	s.emit(Event{Type: EventCardPlayed, PlayerID: actor.ID, PlayerName: actor.Name, CardName: card.Name})

	if e.maybeOpenHexWindow(actor, card, targetID, giftCardID) {
		return e.finish(nil)
	}

	e.applyEffect(card.Type, actor, targetID, giftCardID)
	return e.finish(nil)
}

func (s *GameState) validateTarget(actorID, targetID string) error {
	if targetID == actorID {
		return ErrSelfTarget
	}
	target := s.playerByID(targetID)
	if target == nil || !target.Alive {
		return ErrInvalidTarget
	}
	return nil
}

// maybeOpenHexWindow starts the block window when the card is hexable and at
// least one other living player holds a Hex Block. Returns true when the
// effect has been deferred.
func (e *Engine) maybeOpenHexWindow(actor *Player, card deck.Card, targetID, giftCardID string) bool {
	s := e.state
	if !hexable[card.Type] {
		return false
	}

	anyBlocker := false
	for _, p := range s.otherAlivePlayers(actor.ID) {
		if p.HasCardType(deck.HexBlock) {
			anyBlocker = true
			break
		}
	}
	if !anyBlocker {
		return false
	}

	e.hexSeq++
	s.Phase = PhaseHexWindow
	s.Pending = &HexWindow{
		Source:     actor.ID,
		Target:     targetID,
		CardType:   card.Type,
		GiftCardID: giftCardID,
		Deadline:   time.Now().Add(e.opts.HexWindow),
		Responded:  []string{},
		Seq:        e.hexSeq,
	}
	s.Message = fmt.Sprintf("%s played %s! Others can Hex Block...", actor.Name, card.Name)

	seq := e.hexSeq
	if e.timers != nil {
		e.hexTimerID = e.timers.Schedule(e.opts.HexWindow, 0, func() {
			e.expireHexWindow(seq)
		})
	}
	return true
}

// expireHexWindow is the hex deadline callback. Non-responders count as
// implicit passes. A window already resolved by a block, unanimous passes or
// an intervening elimination carries a different identity, so the fire is a
// no-op.
func (e *Engine) expireHexWindow(seq uint64) {
	e.mu.Lock()

	hw, ok := e.state.Pending.(*HexWindow)
	if !ok || hw.Seq != seq {
		e.mu.Unlock()
		return
	}

	e.resolveHexWindow(hw)
	e.finish(nil)
}

// resolveHexWindow applies the deferred effect. Called with the lock held
// and only when the window ended without a block.
func (e *Engine) resolveHexWindow(hw *HexWindow) {
	s := e.state
	s.Pending = nil

	actor := s.playerByID(hw.Source)
	if actor == nil || !actor.Alive {
		s.Phase = PhaseDrawPhase
		return
	}

	e.applyEffect(hw.CardType, actor, hw.Target, hw.GiftCardID)
}

// HexResponse handles a block or a pass from another living player during a
// hex window.
func (e *Engine) HexResponse(playerID string, block bool, cardID string) error {
	e.mu.Lock()

	s := e.state
	hw, ok := s.Pending.(*HexWindow)
	if !ok {
		return e.finish(ErrNoPendingAction)
	}

	responder := s.playerByID(playerID)
	if responder == nil {
		return e.finish(ErrPlayerNotFound)
	}
	if !responder.Alive || responder.ID == hw.Source {
		return e.finish(ErrInvalidResponse)
	}

	if block {
		card, found := responder.removeCard(cardID)
		if !found || card.Type != deck.HexBlock {
			if found {
				responder.Hand = append(responder.Hand, card)
			}
			return e.finish(ErrCardNotInHand)
		}
		s.DiscardPile = append(s.DiscardPile, card)

		if e.timers != nil {
			e.timers.Cancel(e.hexTimerID)
		}

		s.Pending = nil
		s.Phase = PhaseDrawPhase
		s.Message = fmt.Sprintf("%s used Hex Block to cancel the action!", responder.Name)
		s.emit(Event{
			Type:       EventHexBlockUsed,
			PlayerID:   responder.ID,
			PlayerName: responder.Name,
			Blocked:    string(hw.CardType),
		})
		return e.finish(nil)
	}

	// An explicit pass. Repeated passes from the same player are ignored.
	if !hw.hasResponded(playerID) {
		hw.Responded = append(hw.Responded, playerID)
	}

	if len(hw.Responded) >= len(s.otherAlivePlayers(hw.Source)) {
		if e.timers != nil {
			e.timers.Cancel(e.hexTimerID)
		}
		e.resolveHexWindow(hw)
	}
	return e.finish(nil)
}

// Draw draws the top deck card for the current player. Drawing a Demon's
// Bargain diverts into the demon sub-flow instead of entering the hand.
func (e *Engine) Draw(playerID string) error {
	e.mu.Lock()

	s := e.state
	actor := s.playerByID(playerID)
	if actor == nil {
		return e.finish(ErrPlayerNotFound)
	}
	if s.currentPlayer().ID != playerID {
		return e.finish(ErrNotYourTurn)
	}
	if s.Phase != PhaseDrawPhase && s.Phase != PhasePlaying {
		return e.finish(ErrWrongPhase)
	}

	if len(s.Deck) == 0 {
		if len(s.DiscardPile) == 0 {
			return e.finish(ErrNoCardsLeft)
		}
		s.Deck = deck.Shuffle(s.DiscardPile)
		s.DiscardPile = nil
	}

	card := s.Deck[0]
	s.Deck = s.Deck[1:]

	if card.Type == deck.DemonsBargain {
		handleDemonDraw(s, actor, card)
		return e.finish(nil)
	}

	actor.Hand = append(actor.Hand, card)
	advanceToNextTurn(s)
	return e.finish(nil)
}

// CounterResponse resolves a demon reveal: spend a Counter Spell or be
// eliminated.
func (e *Engine) CounterResponse(playerID string, useCounter bool, cardID string) error {
	e.mu.Lock()

	s := e.state
	dr, ok := s.Pending.(*DemonReveal)
	if !ok || dr.Source != playerID {
		return e.finish(ErrNoPendingAction)
	}

	actor := s.playerByID(playerID)
	if actor == nil {
		return e.finish(ErrPlayerNotFound)
	}

	if useCounter && cardID != "" {
		if !handleCounterSpell(s, actor, cardID) {
			return e.finish(ErrCardNotInHand)
		}
		return e.finish(nil)
	}

	eliminatePlayer(s, actor)
	return e.finish(nil)
}

// ReinsertDemon places the parked demon card back into the deck at the given
// position, clamped to the deck bounds.
func (e *Engine) ReinsertDemon(playerID string, position int) error {
	e.mu.Lock()

	s := e.state
	cr, ok := s.Pending.(*CounterSpellReinsert)
	if !ok || cr.Source != playerID {
		return e.finish(ErrNoPendingAction)
	}

	s.Pending = nil
	reinsertDemon(s, position)
	return e.finish(nil)
}

// DarkVisionDone acknowledges the peek and moves the actor to their draw.
func (e *Engine) DarkVisionDone(playerID string) error {
	e.mu.Lock()

	s := e.state
	dv, ok := s.Pending.(*DarkVision)
	if !ok || dv.Source != playerID {
		return e.finish(ErrNoPendingAction)
	}

	actor := s.playerByID(playerID)
	s.Pending = nil
	s.Phase = PhaseDrawPhase
	s.Message = fmt.Sprintf("%s finished peeking at the deck.", actor.Name)
	return e.finish(nil)
}

// PairSteal discards two same-type cards and names a card type to take from
// the target. A miss still consumes the pair.
func (e *Engine) PairSteal(playerID, card1ID, card2ID, targetID string, requested deck.CardType) error {
	e.mu.Lock()

	s := e.state
	actor := s.playerByID(playerID)
	if actor == nil {
		return e.finish(ErrPlayerNotFound)
	}
	if s.currentPlayer().ID != playerID {
		return e.finish(ErrNotYourTurn)
	}
	if s.Phase != PhasePlaying {
		return e.finish(ErrWrongPhase)
	}
	if err := s.validateTarget(playerID, targetID); err != nil {
		return e.finish(err)
	}

	if card1ID == card2ID {
		return e.finish(ErrInvalidPair)
	}
	var card1, card2 *deck.Card
	for i := range actor.Hand {
		switch actor.Hand[i].ID {
		case card1ID:
			card1 = &actor.Hand[i]
		case card2ID:
			card2 = &actor.Hand[i]
		}
	}
	if card1 == nil || card2 == nil || card1.Type != card2.Type {
		return e.finish(ErrInvalidPair)
	}

	target := s.playerByID(targetID)
	pairSteal(s, actor, *card1, *card2, target, requested)
	s.Phase = PhaseDrawPhase
	return e.finish(nil)
}

// applyEffect dispatches a resolved card to the effect resolver. Called with
// the lock held, after validation and after any hex window has closed. A
// target that died during the window (disconnect elimination) voids the
// effect.
func (e *Engine) applyEffect(cardType deck.CardType, actor *Player, targetID, giftCardID string) {
	s := e.state

	var target *Player
	if targetID != "" {
		target = s.playerByID(targetID)
		if target != nil && !target.Alive {
			target = nil
		}
	}

	switch cardType {
	case deck.ShadowStep:
		applyShadowStep(s, actor)
	case deck.DarkVision:
		applyDarkVision(s, actor)
	case deck.ChaosShuffle:
		applyChaosShuffle(s, actor)
	case deck.DoomDraw:
		if target == nil {
			s.Message = "The target is gone — nothing happens."
			s.Phase = PhaseDrawPhase
			return
		}
		applyDoomDraw(s, target)
	case deck.SoulSteal:
		if target == nil {
			s.Message = "The target is gone — nothing happens."
			s.Phase = PhaseDrawPhase
			return
		}
		applySoulSteal(s, actor, target)
	case deck.CursedGift:
		if target == nil {
			s.Message = "The target is gone — nothing happens."
			s.Phase = PhaseDrawPhase
			return
		}
		applyCursedGift(s, actor, target, giftCardID)
	default:
		s.Phase = PhaseDrawPhase
	}
}

// HandleDisconnect flags the player and arms the elimination grace timer.
// The player's cards stay in play for the duration.
func (e *Engine) HandleDisconnect(playerID string) {
	e.mu.Lock()

	p := e.state.playerByID(playerID)
	if p == nil {
		e.mu.Unlock()
		return
	}

	p.Connected = false
	if e.timers != nil {
		if p.disconnectTimer != 0 {
			e.timers.Cancel(p.disconnectTimer)
		}
		p.disconnectTimer = e.timers.Schedule(e.opts.DisconnectGrace, 0, func() {
			e.disconnectTimeout(playerID)
		})
	}

	e.finish(nil)
}

// disconnectTimeout fires after the grace period. A player who reconnected,
// already died or left an ended game is left alone.
func (e *Engine) disconnectTimeout(playerID string) {
	e.mu.Lock()

	s := e.state
	p := s.playerByID(playerID)
	if p == nil || p.Connected || !p.Alive || s.Phase == PhaseGameOver {
		e.mu.Unlock()
		return
	}

	p.disconnectTimer = 0
	eliminatePlayer(s, p)
	s.Message = fmt.Sprintf("%s was eliminated (disconnected)", p.Name)
	e.finish(nil)
}

// HandleReconnect swaps the new connection ID onto the existing player
// entity, preserving hand and alive status, and cancels the grace timer.
func (e *Engine) HandleReconnect(oldID, newID string) bool {
	e.mu.Lock()

	p := e.state.playerByID(oldID)
	if p == nil {
		e.mu.Unlock()
		return false
	}

	if e.timers != nil && p.disconnectTimer != 0 {
		e.timers.Cancel(p.disconnectTimer)
		p.disconnectTimer = 0
	}

	p.ID = newID
	p.Connected = true
	e.finish(nil)
	return true
}

// GameOver reports whether the match has ended.
func (e *Engine) GameOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase == PhaseGameOver
}
