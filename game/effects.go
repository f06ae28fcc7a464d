package game

import (
	"fmt"
	"math/rand"

	"github.com/wfunc/cursedcards/deck"
)

// Effect resolver: one function per card type, each mutating the shared
// GameState for a given actor and optional target. Callers (the engine) hold
// the room lock and have already validated the action.

func applyShadowStep(s *GameState, actor *Player) {
	s.Message = fmt.Sprintf("%s used Shadow Step — skipped their draw!", actor.Name)
	advanceToNextTurn(s)
}

func applyDarkVision(s *GameState, actor *Player) {
	n := 3
	if len(s.Deck) < n {
		n = len(s.Deck)
	}
	peeked := make([]deck.Card, n)
	copy(peeked, s.Deck[:n])

	s.Phase = PhaseDarkVision
	s.Pending = &DarkVision{Source: actor.ID, Peeked: peeked}
	s.Message = fmt.Sprintf("%s is using Dark Vision...", actor.Name)
}

func applyChaosShuffle(s *GameState, actor *Player) {
	s.Deck = deck.Shuffle(s.Deck)
	s.Message = fmt.Sprintf("%s used Chaos Shuffle — the deck has been reshuffled!", actor.Name)
	s.Phase = PhaseDrawPhase
}

func applyDoomDraw(s *GameState, target *Player) {
	drawn := 0
	for i := 0; i < 2; i++ {
		if len(s.Deck) == 0 {
			break
		}
		card := s.Deck[0]
		s.Deck = s.Deck[1:]

		if card.Type == deck.DemonsBargain {
			handleDemonDraw(s, target, card)
			return
		}

		target.Hand = append(target.Hand, card)
		drawn++
	}

	s.Message = fmt.Sprintf("%s was forced to draw %d cards!", target.Name, drawn)
	s.Phase = PhaseDrawPhase
}

func applySoulSteal(s *GameState, actor, target *Player) {
	if len(target.Hand) == 0 {
		s.Message = fmt.Sprintf("%s has no cards to steal!", target.Name)
		s.Phase = PhaseDrawPhase
		return
	}

	idx := rand.Intn(len(target.Hand))
	stolen := target.Hand[idx]
	target.Hand = append(target.Hand[:idx], target.Hand[idx+1:]...)
	actor.Hand = append(actor.Hand, stolen)

	s.Message = fmt.Sprintf("%s stole a card from %s!", actor.Name, target.Name)
	s.Phase = PhaseDrawPhase
}

// applyCursedGift moves the named card, or a uniformly random one when the ID
// is empty, from the actor's hand to the target's.
func applyCursedGift(s *GameState, actor, target *Player, giftCardID string) {
	if len(actor.Hand) == 0 {
		s.Message = fmt.Sprintf("%s has no cards to give!", actor.Name)
		s.Phase = PhaseDrawPhase
		return
	}

	if giftCardID == "" {
		giftCardID = actor.Hand[rand.Intn(len(actor.Hand))].ID
	}

	gift, ok := actor.removeCard(giftCardID)
	if !ok {
		// The named card left the hand during the hex window (e.g. soul
		// stolen). Fall back to a random one.
		if len(actor.Hand) == 0 {
			s.Message = fmt.Sprintf("%s has no cards to give!", actor.Name)
			s.Phase = PhaseDrawPhase
			return
		}
		gift = actor.Hand[rand.Intn(len(actor.Hand))]
		actor.removeCard(gift.ID)
	}
	target.Hand = append(target.Hand, gift)

	s.Message = fmt.Sprintf("%s gave a cursed gift to %s!", actor.Name, target.Name)
	s.Phase = PhaseDrawPhase
}

// handleDemonDraw diverts a fatal draw into the demon sub-flow. The demon
// card is parked in the discard pile until the drawer mitigates or dies.
func handleDemonDraw(s *GameState, drawer *Player, demon deck.Card) {
	s.Phase = PhaseDemonReveal
	s.Pending = &DemonReveal{Source: drawer.ID}
	s.Message = fmt.Sprintf("%s drew a Demon's Bargain!", drawer.Name)
	s.DiscardPile = append(s.DiscardPile, demon)

	s.emit(Event{Type: EventDemonDrawn, PlayerID: drawer.ID, PlayerName: drawer.Name})
}

// handleCounterSpell spends the drawer's mitigation card and opens the
// reinsert choice.
func handleCounterSpell(s *GameState, drawer *Player, counterCardID string) bool {
	card, ok := drawer.removeCard(counterCardID)
	if !ok || card.Type != deck.CounterSpell {
		if ok {
			// Wrong type named; put it back untouched.
			drawer.Hand = append(drawer.Hand, card)
		}
		return false
	}
	s.DiscardPile = append(s.DiscardPile, card)

	s.Phase = PhaseCounterSpellReinsert
	s.Pending = &CounterSpellReinsert{Source: drawer.ID}
	s.Message = fmt.Sprintf("%s used Counter Spell! Choose where to reinsert the Demon's Bargain.", drawer.Name)

	s.emit(Event{Type: EventCounterSpellUsed, PlayerID: drawer.ID, PlayerName: drawer.Name})
	return true
}

// reinsertDemon splices the parked demon card back into the deck at the
// given position, clamped to [0, len(deck)]. A missing demon means the
// situation already resolved through another path; the turn just advances.
func reinsertDemon(s *GameState, position int) {
	demonIdx := -1
	for i := len(s.DiscardPile) - 1; i >= 0; i-- {
		if s.DiscardPile[i].Type == deck.DemonsBargain {
			demonIdx = i
			break
		}
	}
	if demonIdx == -1 {
		advanceToNextTurn(s)
		return
	}

	demon := s.DiscardPile[demonIdx]
	s.DiscardPile = append(s.DiscardPile[:demonIdx], s.DiscardPile[demonIdx+1:]...)

	if position < 0 {
		position = 0
	}
	if position > len(s.Deck) {
		position = len(s.Deck)
	}
	s.Deck = append(s.Deck[:position], append([]deck.Card{demon}, s.Deck[position:]...)...)

	s.Message = "Demon's Bargain reinserted into the deck!"
	advanceToNextTurn(s)
}

// eliminatePlayer discards the player's hand, marks them dead and re-checks
// the win condition before advancing the turn.
func eliminatePlayer(s *GameState, player *Player) {
	player.Alive = false

	s.DiscardPile = append(s.DiscardPile, player.Hand...)
	player.Hand = nil

	s.Message = fmt.Sprintf("%s has been eliminated!", player.Name)
	s.emit(Event{Type: EventPlayerEliminated, PlayerID: player.ID, PlayerName: player.Name})

	alive := s.alivePlayers()
	if len(alive) == 1 {
		endGame(s, alive[0])
		return
	}

	advanceToNextTurn(s)
}

// pairSteal discards two same-type cards from the actor and takes one card
// of the requested type from the target if they hold one. Validity of the
// pair has already been checked by the engine.
func pairSteal(s *GameState, actor *Player, card1, card2 deck.Card, target *Player, requested deck.CardType) {
	actor.removeCard(card1.ID)
	actor.removeCard(card2.ID)
	s.DiscardPile = append(s.DiscardPile, card1, card2)

	if stolen, ok := target.removeCardOfType(requested); ok {
		actor.Hand = append(actor.Hand, stolen)
		s.Message = fmt.Sprintf("%s used a pair to steal a %s from %s!", actor.Name, stolen.Name, target.Name)
	} else {
		s.Message = fmt.Sprintf("%s doesn't have that card type. Pair wasted!", target.Name)
	}
}

// advanceToNextTurn scans forward circularly to the next living player. With
// one or zero players left the game ends instead.
func advanceToNextTurn(s *GameState) {
	alive := s.alivePlayers()
	if len(alive) <= 1 {
		if len(alive) == 1 {
			endGame(s, alive[0])
		}
		return
	}

	next := (s.CurrentPlayerIndex + 1) % len(s.Players)
	for !s.Players[next].Alive {
		next = (next + 1) % len(s.Players)
	}

	s.CurrentPlayerIndex = next
	s.TurnNumber++
	s.Phase = PhasePlaying
	s.Pending = nil
	s.Message = fmt.Sprintf("%s's turn", s.Players[next].Name)
}

func endGame(s *GameState, winner *Player) {
	s.Winner = winner.ID
	s.Phase = PhaseGameOver
	s.Pending = nil
	s.Message = fmt.Sprintf("%s wins!", winner.Name)
	s.emit(Event{Type: EventGameOver, WinnerID: winner.ID, WinnerName: winner.Name})
}
