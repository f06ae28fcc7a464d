// Package deck owns card definitions, deck construction, shuffling and the
// constrained initial deal.
package deck

import (
	"math/rand"

	"github.com/google/uuid"
)

// CardType enumerates the nine card kinds. Card identity is by ID, not type:
// a hand may hold several distinct cards of the same type.
type CardType string

const (
	ShadowStep    CardType = "shadow_step"
	DarkVision    CardType = "dark_vision"
	ChaosShuffle  CardType = "chaos_shuffle"
	DoomDraw      CardType = "doom_draw"
	HexBlock      CardType = "hex_block"
	SoulSteal     CardType = "soul_steal"
	CursedGift    CardType = "cursed_gift"
	CounterSpell  CardType = "counter_spell"
	DemonsBargain CardType = "demons_bargain"
)

// Card is an immutable value. Name, Description and Color are display
// metadata only; rules never look at them.
type Card struct {
	ID          string   `json:"id"`
	Type        CardType `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
}

// HandSize is the number of cards dealt to each player at game start.
const HandSize = 7

// TotalCards is the fixed deck size.
const TotalCards = 40

type template struct {
	Type        CardType
	Name        string
	Description string
	Color       string
	Count       int
}

var templates = []template{
	{ShadowStep, "Shadow Step", "Skip your draw phase this turn. End your turn safely.", "#6B21A8", 6},
	{DarkVision, "Dark Vision", "Peek at the top 3 cards of the deck.", "#1D4ED8", 4},
	{ChaosShuffle, "Chaos Shuffle", "Shuffle the entire deck.", "#DC2626", 4},
	{DoomDraw, "Doom Draw", "Force another player to draw 2 cards immediately.", "#B91C1C", 4},
	{HexBlock, "Hex Block", "Cancel any action card played by another player.", "#059669", 5},
	{SoulSteal, "Soul Steal", "Steal a random card from another player's hand.", "#7C3AED", 4},
	{CursedGift, "Cursed Gift", "Give one of your cards to another player.", "#CA8A04", 4},
	{CounterSpell, "Counter Spell", "When you draw a Demon's Bargain, play this to survive and reinsert it into the deck.", "#0EA5E9", 5},
	{DemonsBargain, "Demon's Bargain", "If you draw this and can't Counter Spell, you are eliminated!", "#991B1B", 4},
}

// Build returns a fresh 40-card deck in template order. Every card carries a
// newly minted unique ID.
func Build() []Card {
	cards := make([]Card, 0, TotalCards)
	for _, t := range templates {
		for i := 0; i < t.Count; i++ {
			cards = append(cards, Card{
				ID:          uuid.New().String(),
				Type:        t.Type,
				Name:        t.Name,
				Description: t.Description,
				Color:       t.Color,
			})
		}
	}
	return cards
}

// Shuffle returns a uniformly random permutation of cards using Fisher-Yates.
// The input slice is never mutated.
func Shuffle(cards []Card) []Card {
	shuffled := make([]Card, len(cards))
	copy(shuffled, cards)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// DealInitialHands deals a 7-card hand per player. No hand ever contains a
// Demon's Bargain, and each player is guaranteed one Counter Spell while the
// supply lasts. The returned remaining deck holds the undealt pool plus all
// Demon's Bargain cards, freshly shuffled. No card is duplicated or dropped
// relative to the input.
func DealInitialHands(cards []Card, playerCount int) (hands [][]Card, remaining []Card) {
	demons := make([]Card, 0, 4)
	pool := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.Type == DemonsBargain {
			demons = append(demons, c)
		} else {
			pool = append(pool, c)
		}
	}
	pool = Shuffle(pool)

	// Reserve one Counter Spell per player before dealing the rest.
	counters := make([]Card, 0, playerCount)
	rest := make([]Card, 0, len(pool))
	for _, c := range pool {
		if c.Type == CounterSpell && len(counters) < playerCount {
			counters = append(counters, c)
		} else {
			rest = append(rest, c)
		}
	}
	rest = Shuffle(rest)

	hands = make([][]Card, playerCount)
	for p := 0; p < playerCount; p++ {
		hand := make([]Card, 0, HandSize)
		if len(counters) > 0 {
			hand = append(hand, counters[len(counters)-1])
			counters = counters[:len(counters)-1]
		}
		for len(hand) < HandSize && len(rest) > 0 {
			hand = append(hand, rest[len(rest)-1])
			rest = rest[:len(rest)-1]
		}
		hands[p] = hand
	}

	remaining = make([]Card, 0, len(rest)+len(counters)+len(demons))
	remaining = append(remaining, rest...)
	remaining = append(remaining, counters...)
	remaining = append(remaining, demons...)
	return hands, Shuffle(remaining)
}
