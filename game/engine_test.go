package game

import (
	"sync"
	"testing"
	"time"

	"github.com/wfunc/cursedcards/deck"
	"github.com/wfunc/cursedcards/timer"
)

// recordingNotifier is a test double for the Notifier interface. Timer
// callbacks notify from their own goroutine, so access is locked.
type recordingNotifier struct {
	mu           sync.Mutex
	events       []Event
	stateChanges int
}

func (n *recordingNotifier) StateChanged(roomCode string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stateChanges++
}

func (n *recordingNotifier) Event(roomCode string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) eventTypes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]string, len(n.events))
	for i, ev := range n.events {
		types[i] = ev.Type
	}
	return types
}

func (n *recordingNotifier) hasEvent(eventType string) bool {
	for _, t := range n.eventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

func makeCard(id string, t deck.CardType) deck.Card {
	return deck.Card{ID: id, Type: t, Name: string(t)}
}

func makePlayers(n int) []*Player {
	names := []string{"Alice", "Bob", "Carol", "Dave"}
	players := make([]*Player, n)
	for i := 0; i < n; i++ {
		players[i] = &Player{
			ID:        names[i][:1] + "1",
			Name:      names[i],
			Avatar:    i,
			Alive:     true,
			Connected: true,
		}
	}
	return players
}

// newTestEngine builds an engine over a hand-crafted mid-game state. No
// timer manager: hex windows are expired explicitly in tests that need it.
func newTestEngine(players []*Player) (*Engine, *recordingNotifier) {
	notifier := &recordingNotifier{}
	e := NewEngine("TEST", players, nil, notifier, Options{})
	e.state.Phase = PhasePlaying
	e.state.TurnNumber = 1
	return e, notifier
}

func totalCards(s *GameState) int {
	total := len(s.Deck) + len(s.DiscardPile)
	for _, p := range s.Players {
		total += len(p.Hand)
	}
	return total
}

func TestStart_DealsHandsAndBeginsPlay(t *testing.T) {
	players := makePlayers(3)
	notifier := &recordingNotifier{}
	e := NewEngine("TEST", players, nil, notifier, Options{})

	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if e.state.Phase != PhasePlaying {
		t.Errorf("Expected phase playing, got %s", e.state.Phase)
	}
	if e.state.TurnNumber != 1 {
		t.Errorf("Expected turn 1, got %d", e.state.TurnNumber)
	}
	if e.state.currentPlayer().ID != players[0].ID {
		t.Error("First roster player should act first")
	}

	for _, p := range players {
		if len(p.Hand) != deck.HandSize {
			t.Errorf("%s has %d cards, expected %d", p.Name, len(p.Hand), deck.HandSize)
		}
		for _, c := range p.Hand {
			if c.Type == deck.DemonsBargain {
				t.Errorf("%s was dealt a Demon's Bargain", p.Name)
			}
		}
	}

	if got := totalCards(e.state); got != deck.TotalCards {
		t.Errorf("Expected %d cards in play, got %d", deck.TotalCards, got)
	}

	if err := e.Start(); err != ErrGameInProgress {
		t.Errorf("Expected ErrGameInProgress on double start, got %v", err)
	}
}

func TestPlayCard_Validation(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{
		makeCard("c1", deck.ShadowStep),
		makeCard("c2", deck.HexBlock),
		makeCard("c3", deck.CounterSpell),
	}
	players[1].Hand = []deck.Card{makeCard("c4", deck.ShadowStep)}
	e, _ := newTestEngine(players)

	if err := e.PlayCard("ghost", "c1", ""); err != ErrPlayerNotFound {
		t.Errorf("Expected ErrPlayerNotFound, got %v", err)
	}
	if err := e.PlayCard(players[1].ID, "c4", ""); err != ErrNotYourTurn {
		t.Errorf("Expected ErrNotYourTurn, got %v", err)
	}
	if err := e.PlayCard(players[0].ID, "missing", ""); err != ErrCardNotInHand {
		t.Errorf("Expected ErrCardNotInHand, got %v", err)
	}
	if err := e.PlayCard(players[0].ID, "c2", ""); err != ErrCardNotPlayable {
		t.Errorf("Hex Block should not be directly playable, got %v", err)
	}
	if err := e.PlayCard(players[0].ID, "c3", ""); err != ErrCardNotPlayable {
		t.Errorf("Counter Spell should not be directly playable, got %v", err)
	}

	e.state.Phase = PhaseDrawPhase
	if err := e.PlayCard(players[0].ID, "c1", ""); err != ErrWrongPhase {
		t.Errorf("Expected ErrWrongPhase after the play window closed, got %v", err)
	}
}

func TestPlayCard_ShadowStep_SkipsDraw(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	e, notifier := newTestEngine(players)

	if err := e.PlayCard(players[0].ID, "c1", ""); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}

	if e.state.currentPlayer().ID != players[1].ID {
		t.Error("Shadow Step should pass the turn without drawing")
	}
	if e.state.Phase != PhasePlaying {
		t.Errorf("Expected phase playing for the next player, got %s", e.state.Phase)
	}
	if len(e.state.DiscardPile) != 1 {
		t.Errorf("Played card should be discarded, discard has %d", len(e.state.DiscardPile))
	}
	if !notifier.hasEvent(EventCardPlayed) {
		t.Error("Expected a card_played event")
	}
}

func TestPlayCard_TargetSelection(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.SoulSteal)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	players[2].Alive = false
	e, _ := newTestEngine(players)

	// No target named: the room waits for a selection.
	if err := e.PlayCard(players[0].ID, "c1", ""); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}
	if e.state.Phase != PhaseTargetSelect {
		t.Fatalf("Expected target_select, got %s", e.state.Phase)
	}
	if len(players[0].Hand) != 1 {
		t.Error("Card must stay in hand until a target is chosen")
	}

	if err := e.SelectTarget(players[1].ID, players[0].ID, ""); err != ErrNoPendingAction {
		t.Errorf("Only the source may select, got %v", err)
	}
	if err := e.SelectTarget(players[0].ID, players[0].ID, ""); err != ErrSelfTarget {
		t.Errorf("Expected ErrSelfTarget, got %v", err)
	}
	if err := e.SelectTarget(players[0].ID, players[2].ID, ""); err != ErrInvalidTarget {
		t.Errorf("Dead players are not valid targets, got %v", err)
	}

	if err := e.SelectTarget(players[0].ID, players[1].ID, ""); err != nil {
		t.Fatalf("SelectTarget failed: %v", err)
	}
	if len(players[0].Hand) != 1 {
		t.Errorf("Soul Steal should have netted a stolen card, hand has %d", len(players[0].Hand))
	}
	if len(players[1].Hand) != 0 {
		t.Errorf("Target should have lost their card, hand has %d", len(players[1].Hand))
	}
	if e.state.Phase != PhaseDrawPhase {
		t.Errorf("Expected draw_phase after the effect, got %s", e.state.Phase)
	}
}

func TestHexWindow_OpensOnlyWithBlockers(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.SoulSteal)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	players[2].Hand = []deck.Card{makeCard("c3", deck.HexBlock)}
	e, _ := newTestEngine(players)

	if err := e.PlayCard(players[0].ID, "c1", players[1].ID); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}

	if e.state.Phase != PhaseHexWindow {
		t.Fatalf("Expected hex_window while a blocker exists, got %s", e.state.Phase)
	}
	hw, ok := e.state.Pending.(*HexWindow)
	if !ok {
		t.Fatal("Pending action should be a HexWindow")
	}
	if hw.Source != players[0].ID || hw.Target != players[1].ID {
		t.Error("HexWindow should remember source and target")
	}
	if len(players[1].Hand) != 1 {
		t.Error("Effect must not apply while the window is open")
	}
}

func TestHexWindow_SkippedWithoutBlockers(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.SoulSteal)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	e, _ := newTestEngine(players)

	if err := e.PlayCard(players[0].ID, "c1", players[1].ID); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}
	if e.state.Phase != PhaseDrawPhase {
		t.Errorf("Effect should resolve immediately with no blockers, got %s", e.state.Phase)
	}
	if len(players[0].Hand) != 1 {
		t.Error("Soul Steal should have resolved")
	}
}

func TestHexResponse_BlockCancelsEffect(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ChaosShuffle)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	players[2].Hand = []deck.Card{makeCard("c3", deck.HexBlock)}
	e, notifier := newTestEngine(players)
	e.state.Deck = []deck.Card{
		makeCard("d1", deck.ShadowStep),
		makeCard("d2", deck.DarkVision),
		makeCard("d3", deck.DoomDraw),
	}
	deckBefore := make([]deck.Card, len(e.state.Deck))
	copy(deckBefore, e.state.Deck)

	if err := e.PlayCard(players[0].ID, "c1", ""); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}
	if e.state.Phase != PhaseHexWindow {
		t.Fatalf("Expected hex_window, got %s", e.state.Phase)
	}

	if err := e.HexResponse(players[0].ID, true, "c1"); err != ErrInvalidResponse {
		t.Errorf("The source cannot respond to their own window, got %v", err)
	}
	if err := e.HexResponse(players[2].ID, true, "c2"); err != ErrCardNotInHand {
		t.Errorf("Blocking with a card you don't hold should fail, got %v", err)
	}

	if err := e.HexResponse(players[2].ID, true, "c3"); err != nil {
		t.Fatalf("HexResponse failed: %v", err)
	}

	for i, c := range e.state.Deck {
		if c.ID != deckBefore[i].ID {
			t.Fatal("Blocked Chaos Shuffle must not reshuffle the deck")
		}
	}
	if e.state.Phase != PhaseDrawPhase {
		t.Errorf("Expected draw_phase after the block, got %s", e.state.Phase)
	}
	if len(players[2].Hand) != 0 {
		t.Error("The Hex Block card should have left the blocker's hand")
	}
	if !notifier.hasEvent(EventHexBlockUsed) {
		t.Error("Expected a hex_block_used event")
	}
}

func TestHexResponse_AllPassResolves(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.SoulSteal)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	players[2].Hand = []deck.Card{makeCard("c3", deck.HexBlock)}
	e, _ := newTestEngine(players)

	if err := e.PlayCard(players[0].ID, "c1", players[1].ID); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}

	if err := e.HexResponse(players[1].ID, false, ""); err != nil {
		t.Fatalf("Pass failed: %v", err)
	}
	// A duplicate pass must not count twice.
	if err := e.HexResponse(players[1].ID, false, ""); err != nil {
		t.Fatalf("Repeated pass failed: %v", err)
	}
	if e.state.Phase != PhaseHexWindow {
		t.Fatal("Window should stay open until everyone has passed")
	}

	if err := e.HexResponse(players[2].ID, false, ""); err != nil {
		t.Fatalf("Pass failed: %v", err)
	}
	if e.state.Phase != PhaseDrawPhase {
		t.Errorf("Unanimous passes should resolve the effect, got %s", e.state.Phase)
	}
	if len(players[0].Hand) != 1 {
		t.Error("Soul Steal should have resolved after all passes")
	}
}

func TestHexWindow_TimeoutCountsAsPass(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.SoulSteal)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	players[2].Hand = []deck.Card{makeCard("c3", deck.HexBlock)}
	e, _ := newTestEngine(players)

	if err := e.PlayCard(players[0].ID, "c1", players[1].ID); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}
	hw := e.state.Pending.(*HexWindow)

	e.expireHexWindow(hw.Seq)

	if e.state.Phase != PhaseDrawPhase {
		t.Errorf("Timeout should resolve the effect, got %s", e.state.Phase)
	}
	if len(players[0].Hand) != 1 {
		t.Error("Soul Steal should have resolved on timeout")
	}
}

func TestHexWindow_StaleTimerIgnored(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.SoulSteal)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	players[2].Hand = []deck.Card{makeCard("c3", deck.HexBlock)}
	e, _ := newTestEngine(players)

	if err := e.PlayCard(players[0].ID, "c1", players[1].ID); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}
	hw := e.state.Pending.(*HexWindow)

	// Resolved by unanimous passes before the deadline.
	e.HexResponse(players[1].ID, false, "")
	e.HexResponse(players[2].ID, false, "")

	handsBefore := len(players[0].Hand)
	e.expireHexWindow(hw.Seq)

	if len(players[0].Hand) != handsBefore {
		t.Error("A stale timer fire must not re-apply the effect")
	}
}

func TestDraw_AddsCardAndAdvances(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	e, _ := newTestEngine(players)
	e.state.Deck = []deck.Card{makeCard("d1", deck.DarkVision)}

	if err := e.Draw(players[1].ID); err != ErrNotYourTurn {
		t.Errorf("Expected ErrNotYourTurn, got %v", err)
	}
	if err := e.Draw(players[0].ID); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	if len(players[0].Hand) != 2 {
		t.Errorf("Expected 2 cards after drawing, got %d", len(players[0].Hand))
	}
	if e.state.currentPlayer().ID != players[1].ID {
		t.Error("Drawing should end the turn")
	}
	if e.state.TurnNumber != 2 {
		t.Errorf("Expected turn 2, got %d", e.state.TurnNumber)
	}
}

func TestDraw_RecyclesDiscardWhenDeckEmpty(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	e, _ := newTestEngine(players)
	e.state.DiscardPile = []deck.Card{makeCard("d1", deck.DarkVision)}

	if err := e.Draw(players[0].ID); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if len(players[0].Hand) != 2 {
		t.Error("The discard pile should have been recycled into the deck")
	}
	if len(e.state.DiscardPile) != 0 {
		t.Error("Discard pile should be empty after recycling")
	}
}

func TestDraw_NoCardsAnywhere(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	e, _ := newTestEngine(players)

	if err := e.Draw(players[0].ID); err != ErrNoCardsLeft {
		t.Errorf("Expected ErrNoCardsLeft, got %v", err)
	}
}

func TestDemonDraw_DeclineEliminates(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep), makeCard("c2", deck.DarkVision)}
	players[1].Hand = []deck.Card{makeCard("c3", deck.ShadowStep)}
	players[2].Hand = []deck.Card{makeCard("c4", deck.ShadowStep)}
	e, notifier := newTestEngine(players)
	e.state.Deck = []deck.Card{makeCard("demon", deck.DemonsBargain), makeCard("d2", deck.DarkVision)}

	if err := e.Draw(players[0].ID); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if e.state.Phase != PhaseDemonReveal {
		t.Fatalf("Expected demon_reveal, got %s", e.state.Phase)
	}
	if !notifier.hasEvent(EventDemonDrawn) {
		t.Error("Expected a demon_drawn event")
	}

	if err := e.CounterResponse(players[1].ID, false, ""); err != ErrNoPendingAction {
		t.Errorf("Only the drawer may respond, got %v", err)
	}

	if err := e.CounterResponse(players[0].ID, false, ""); err != nil {
		t.Fatalf("CounterResponse failed: %v", err)
	}

	if players[0].Alive {
		t.Fatal("Declining the demon should eliminate the drawer")
	}
	if len(players[0].Hand) != 0 {
		t.Error("An eliminated player's hand goes to the discard pile")
	}
	if !notifier.hasEvent(EventPlayerEliminated) {
		t.Error("Expected a player_eliminated event")
	}
	if e.state.Phase != PhasePlaying || e.state.currentPlayer().ID != players[1].ID {
		t.Error("Play should continue with the next living player")
	}
	if got := totalCards(e.state); got != 6 {
		t.Errorf("Card conservation broken: expected 6 cards in play, got %d", got)
	}
}

func TestDemonDraw_DeclineWithTwoPlayersEndsGame(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	e, notifier := newTestEngine(players)
	e.state.Deck = []deck.Card{makeCard("demon", deck.DemonsBargain)}

	e.Draw(players[0].ID)
	e.CounterResponse(players[0].ID, false, "")

	if e.state.Phase != PhaseGameOver {
		t.Fatalf("Expected game_over, got %s", e.state.Phase)
	}
	if e.state.Winner != players[1].ID {
		t.Errorf("Expected %s to win, got %s", players[1].ID, e.state.Winner)
	}
	if !notifier.hasEvent(EventGameOver) {
		t.Error("Expected a game_over event")
	}
	if !e.GameOver() {
		t.Error("GameOver should report true")
	}
}

func TestDemonDraw_CounterAndReinsert(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("counter", deck.CounterSpell), makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	e, notifier := newTestEngine(players)
	e.state.Deck = []deck.Card{
		makeCard("demon", deck.DemonsBargain),
		makeCard("d2", deck.DarkVision),
		makeCard("d3", deck.DoomDraw),
	}

	if err := e.Draw(players[0].ID); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	// Naming a non-counter card is rejected and the card stays in hand.
	if err := e.CounterResponse(players[0].ID, true, "c1"); err != ErrCardNotInHand {
		t.Errorf("Expected rejection for wrong card type, got %v", err)
	}
	if len(players[0].Hand) != 2 {
		t.Error("A rejected counter attempt must not consume cards")
	}

	if err := e.CounterResponse(players[0].ID, true, "counter"); err != nil {
		t.Fatalf("CounterResponse failed: %v", err)
	}
	if e.state.Phase != PhaseCounterSpellReinsert {
		t.Fatalf("Expected counter_spell_reinsert, got %s", e.state.Phase)
	}
	if !notifier.hasEvent(EventCounterSpellUsed) {
		t.Error("Expected a counter_spell_used event")
	}

	// Position far past the end clamps to the bottom of the deck.
	if err := e.ReinsertDemon(players[0].ID, 99); err != nil {
		t.Fatalf("ReinsertDemon failed: %v", err)
	}

	if players[0].Alive != true {
		t.Error("The drawer survives after countering")
	}
	last := e.state.Deck[len(e.state.Deck)-1]
	if last.Type != deck.DemonsBargain {
		t.Error("Demon should have been reinserted at the clamped bottom position")
	}
	if e.state.currentPlayer().ID != players[1].ID {
		t.Error("Reinserting ends the turn")
	}
	for _, c := range e.state.DiscardPile {
		if c.Type == deck.DemonsBargain {
			t.Error("Demon must not remain in the discard pile")
		}
	}
}

func TestPairSteal(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{
		makeCard("s1", deck.ShadowStep),
		makeCard("s2", deck.ShadowStep),
		makeCard("v1", deck.DarkVision),
	}
	players[1].Hand = []deck.Card{makeCard("t1", deck.DoomDraw)}
	e, _ := newTestEngine(players)

	if err := e.PairSteal(players[0].ID, "s1", "s1", players[1].ID, deck.DoomDraw); err != ErrInvalidPair {
		t.Errorf("Same card twice is not a pair, got %v", err)
	}
	if err := e.PairSteal(players[0].ID, "s1", "v1", players[1].ID, deck.DoomDraw); err != ErrInvalidPair {
		t.Errorf("Mismatched types are not a pair, got %v", err)
	}
	if err := e.PairSteal(players[0].ID, "s1", "s2", players[0].ID, deck.DoomDraw); err != ErrSelfTarget {
		t.Errorf("Expected ErrSelfTarget, got %v", err)
	}

	if err := e.PairSteal(players[0].ID, "s1", "s2", players[1].ID, deck.DoomDraw); err != nil {
		t.Fatalf("PairSteal failed: %v", err)
	}

	if len(players[0].Hand) != 2 {
		t.Errorf("Expected DarkVision + stolen DoomDraw, hand has %d", len(players[0].Hand))
	}
	if players[0].HasCardType(deck.ShadowStep) {
		t.Error("Both pair cards should have been discarded")
	}
	if !players[0].HasCardType(deck.DoomDraw) {
		t.Error("The requested card should have been stolen")
	}
	if e.state.Phase != PhaseDrawPhase {
		t.Errorf("Expected draw_phase, got %s", e.state.Phase)
	}
}

func TestPairSteal_MissStillConsumesPair(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{
		makeCard("s1", deck.ShadowStep),
		makeCard("s2", deck.ShadowStep),
	}
	players[1].Hand = []deck.Card{makeCard("t1", deck.DarkVision)}
	e, _ := newTestEngine(players)

	if err := e.PairSteal(players[0].ID, "s1", "s2", players[1].ID, deck.DoomDraw); err != nil {
		t.Fatalf("PairSteal failed: %v", err)
	}
	if len(players[0].Hand) != 0 {
		t.Error("A missed guess still costs the pair")
	}
	if len(players[1].Hand) != 1 {
		t.Error("The target keeps their hand on a miss")
	}
}

func TestDarkVision_PeekVisibleOnlyToSource(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.DarkVision)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	e, _ := newTestEngine(players)
	e.state.Deck = []deck.Card{
		makeCard("d1", deck.ShadowStep),
		makeCard("d2", deck.DoomDraw),
	}

	if err := e.PlayCard(players[0].ID, "c1", ""); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}
	if e.state.Phase != PhaseDarkVision {
		t.Fatalf("Expected dark_vision, got %s", e.state.Phase)
	}

	dv := e.state.Pending.(*DarkVision)
	if len(dv.Peeked) != 2 {
		t.Errorf("A short deck peeks fewer than 3 cards, got %d", len(dv.Peeked))
	}

	sourceView := e.StateFor(players[0].ID)
	if len(sourceView.PendingAction.PeekedCards) != 2 {
		t.Error("The source should see the peeked cards")
	}
	otherView := e.StateFor(players[1].ID)
	if len(otherView.PendingAction.PeekedCards) != 0 {
		t.Error("Other players must not see the peeked cards")
	}

	if err := e.DarkVisionDone(players[1].ID); err != ErrNoPendingAction {
		t.Errorf("Only the source may acknowledge, got %v", err)
	}
	if err := e.DarkVisionDone(players[0].ID); err != nil {
		t.Fatalf("DarkVisionDone failed: %v", err)
	}
	if e.state.Phase != PhaseDrawPhase {
		t.Errorf("Expected draw_phase after acknowledging, got %s", e.state.Phase)
	}
}

func TestStateFor_HidesOtherHands(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.DoomDraw), makeCard("c3", deck.DarkVision)}
	e, _ := newTestEngine(players)

	view := e.StateFor(players[0].ID)

	if len(view.MyHand) != 1 || view.MyHand[0].ID != "c1" {
		t.Error("The viewer should see their own hand in full")
	}
	for _, pv := range view.Players {
		if pv.ID == players[1].ID && pv.HandCount != 2 {
			t.Errorf("Expected hand count 2 for the other player, got %d", pv.HandCount)
		}
	}
}

func TestDisconnect_EliminatesAfterGrace(t *testing.T) {
	players := makePlayers(3)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep)}
	players[2].Hand = []deck.Card{makeCard("c3", deck.ShadowStep)}

	timers := timer.NewManager()
	defer timers.Stop()

	notifier := &recordingNotifier{}
	e := NewEngine("TEST", players, timers, notifier, Options{
		HexWindow:       time.Second,
		DisconnectGrace: 30 * time.Millisecond,
	})
	e.state.Phase = PhasePlaying
	e.state.TurnNumber = 1

	e.HandleDisconnect(players[1].ID)

	if players[1].Alive != true {
		t.Fatal("Disconnecting must not eliminate immediately")
	}

	alive := true
	deadline := time.Now().Add(2 * time.Second)
	for alive && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		e.mu.Lock()
		alive = players[1].Alive
		e.mu.Unlock()
	}

	if alive {
		t.Fatal("Player should be eliminated after the grace period")
	}
	if !notifier.hasEvent(EventPlayerEliminated) {
		t.Error("Expected a player_eliminated event")
	}
}

func TestReconnect_PreservesPlayer(t *testing.T) {
	players := makePlayers(2)
	players[0].Hand = []deck.Card{makeCard("c1", deck.ShadowStep)}
	players[1].Hand = []deck.Card{makeCard("c2", deck.ShadowStep), makeCard("c3", deck.DarkVision)}

	timers := timer.NewManager()
	defer timers.Stop()

	notifier := &recordingNotifier{}
	e := NewEngine("TEST", players, timers, notifier, Options{
		DisconnectGrace: 50 * time.Millisecond,
	})
	e.state.Phase = PhasePlaying
	e.state.TurnNumber = 1

	e.HandleDisconnect(players[1].ID)
	if !e.HandleReconnect(players[1].ID, "new-conn") {
		t.Fatal("Reconnect should succeed within the grace period")
	}

	if e.HandleReconnect("unknown", "whatever") {
		t.Error("Reconnect for an unknown player should fail")
	}

	// The grace timer was canceled: waiting past it changes nothing.
	time.Sleep(120 * time.Millisecond)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !players[1].Alive {
		t.Fatal("A reconnected player must not be eliminated by the stale timer")
	}
	if players[1].ID != "new-conn" {
		t.Errorf("Expected the player entity to carry the new ID, got %s", players[1].ID)
	}
	if len(players[1].Hand) != 2 {
		t.Error("Reconnect must preserve the hand")
	}
	if !players[1].Connected {
		t.Error("Reconnected player should be marked connected")
	}
}
