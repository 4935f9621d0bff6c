// Package game implements the Toss'em hold'em state machine: blinds,
// legal actions, apply/undo of one action, street progression through the
// discard phases, and showdown.
package game

import (
	rand "math/rand/v2"

	"github.com/lox/tossem/abstraction"
	"github.com/lox/tossem/card"
	"github.com/lox/tossem/eval"
)

// Streets, numbered per the persisted on-disk InfoKey.Street value.
// FlopDeal is transient: it is never a decision street and never appears
// in a history entry or InfoKey, collapsed into the preflop-to-postflop
// transition inside ApplyAction/advanceStreet.
const (
	StreetPreflop = iota
	StreetFlopDeal
	StreetBBDiscard
	StreetSBDiscard
	StreetFlopBet
	StreetTurn
	StreetRiver
)

const (
	StartingStack = 400
	SmallBlind    = 1
	BigBlind      = 2
)

// Discard action ids, offset past the 4 betting actions.
const (
	Discard0 = abstraction.DiscardBase + 0
	Discard1 = abstraction.DiscardBase + 1
	Discard2 = abstraction.DiscardBase + 2
)

// Undo snapshots everything needed to reverse one ApplyAction call. Hand
// contents (not just sizes) are snapshotted because a discard moves the
// hand's last card into the discarded card's slot rather than shifting the
// array — restoring only the size would leave the moved card in place.
type Undo struct {
	Street        int
	CurrentPlayer int
	Pips          [2]int
	Stacks        [2]int
	BBDiscarded   bool
	SBDiscarded   bool
	IsTerminal    bool
	Payoffs       [2]float64

	HistorySize       int
	StreetHistorySize int

	DeckIdx   int
	HandSizes [2]int
	Hands     [2][3]card.Card
	BoardSize int
}

// State is the full mutable game state for one hand of Toss'em.
type State struct {
	Hands     [2][3]card.Card
	HandSizes [2]int

	Board     [6]card.Card
	BoardSize int

	Deck card.Deck

	Street int
	Pips   [2]int
	Stacks [2]int

	CurrentPlayer int

	History       []abstraction.Action
	StreetHistory []abstraction.Action

	BBDiscarded bool
	SBDiscarded bool

	IsTerminal bool
	Payoffs    [2]float64
}

// Reset reinitializes state from a fresh shuffled deal: 3 cards to each
// player, SB (player 0) acting first preflop.
func (s *State) Reset(rng *rand.Rand) {
	s.Deck.Reset(rng, &s.Hands[0], &s.Hands[1])
	s.HandSizes[0], s.HandSizes[1] = 3, 3

	s.BoardSize = 0
	s.Street = StreetPreflop
	s.Pips = [2]int{SmallBlind, BigBlind}
	s.Stacks = [2]int{StartingStack - SmallBlind, StartingStack - BigBlind}
	s.CurrentPlayer = 0

	s.History = s.History[:0]
	s.StreetHistory = s.StreetHistory[:0]

	s.BBDiscarded = false
	s.SBDiscarded = false
	s.IsTerminal = false
	s.Payoffs = [2]float64{0, 0}
}

// Pot returns total chips contributed by both players so far this hand.
func (s *State) Pot() int {
	return (StartingStack - s.Stacks[0]) + (StartingStack - s.Stacks[1])
}

// ContinueCost is the amount the current player must add to call.
func (s *State) ContinueCost() int {
	return s.Pips[1-s.CurrentPlayer] - s.Pips[s.CurrentPlayer]
}

// EffectiveStack is the smaller of the two stacks remaining.
func (s *State) EffectiveStack() int {
	if s.Stacks[0] < s.Stacks[1] {
		return s.Stacks[0]
	}
	return s.Stacks[1]
}

// IsDiscardPhase reports whether the current street requires the current
// player to discard rather than bet.
func (s *State) IsDiscardPhase() bool {
	if s.Street == StreetBBDiscard && !s.BBDiscarded {
		return true
	}
	if s.Street == StreetSBDiscard && !s.SBDiscarded {
		return true
	}
	return false
}

// LegalActions returns the legal actions at the current state: empty if
// terminal, the three discard actions during a discard phase, or the
// subset of betting actions available given continue cost and stacks.
func (s *State) LegalActions() []int {
	if s.IsTerminal {
		return nil
	}
	if s.IsDiscardPhase() {
		return []int{Discard0, Discard1, Discard2}
	}

	cost := s.ContinueCost()
	var actions []int
	if cost == 0 {
		actions = append(actions, abstraction.CheckCall)
		if s.Stacks[0] > 0 && s.Stacks[1] > 0 {
			actions = append(actions, abstraction.RaiseSmall, abstraction.RaiseLarge)
		}
	} else {
		actions = append(actions, abstraction.Fold, abstraction.CheckCall)
		if cost < s.Stacks[s.CurrentPlayer] && s.Stacks[1-s.CurrentPlayer] > 0 {
			actions = append(actions, abstraction.RaiseSmall, abstraction.RaiseLarge)
		}
	}
	return actions
}

// LegalMask packs LegalActions into the 7-bit mask stored in an InfoKey.
func LegalMask(legal []int) uint8 {
	var mask uint8
	for _, a := range legal {
		if a >= 0 && a < abstraction.NumDistinctActions {
			mask |= 1 << uint(a)
		}
	}
	return mask
}

// ApplyAction records an Undo snapshot then mutates state by applying
// action a.
func (s *State) ApplyAction(action int, u *Undo) {
	u.Street = s.Street
	u.CurrentPlayer = s.CurrentPlayer
	u.Pips = s.Pips
	u.Stacks = s.Stacks
	u.BBDiscarded = s.BBDiscarded
	u.SBDiscarded = s.SBDiscarded
	u.IsTerminal = s.IsTerminal
	u.Payoffs = s.Payoffs
	u.HistorySize = len(s.History)
	u.StreetHistorySize = len(s.StreetHistory)
	u.DeckIdx = s.Deck.DrawIndex()
	u.HandSizes = s.HandSizes
	u.Hands = s.Hands
	u.BoardSize = s.BoardSize

	if s.IsTerminal {
		return
	}

	if s.IsDiscardPhase() {
		s.applyDiscard(action - abstraction.DiscardBase)
		return
	}

	cost := s.ContinueCost()
	potSize := s.Pot()

	switch action {
	case abstraction.Fold:
		s.IsTerminal = true
		loser := s.CurrentPlayer
		winner := 1 - loser
		delta := float64(StartingStack - s.Stacks[loser])
		s.Payoffs[winner] = delta
		s.Payoffs[loser] = -delta
		return
	case abstraction.CheckCall:
		if cost > 0 {
			actual := min(cost, s.Stacks[s.CurrentPlayer])
			s.Pips[s.CurrentPlayer] += actual
			s.Stacks[s.CurrentPlayer] -= actual
		}
	case abstraction.RaiseSmall, abstraction.RaiseLarge:
		mult := 0.55
		if action == abstraction.RaiseLarge {
			mult = 1.0
		}
		raiseAmt := int(float64(potSize) * mult)
		minRaise := cost + max(cost, BigBlind)
		raiseAmt = max(minRaise, raiseAmt)
		raiseAmt = min(raiseAmt, s.Stacks[s.CurrentPlayer])

		totalContrib := min(cost+raiseAmt, s.Stacks[s.CurrentPlayer])
		s.Pips[s.CurrentPlayer] += totalContrib
		s.Stacks[s.CurrentPlayer] -= totalContrib
	}

	entry := abstraction.Action{Player: s.CurrentPlayer, Action: action}
	s.History = append(s.History, entry)
	s.StreetHistory = append(s.StreetHistory, entry)

	if s.shouldAdvanceStreet() {
		s.advanceStreet()
	} else {
		s.CurrentPlayer = 1 - s.CurrentPlayer
	}
}

// UndoAction restores every scalar and truncates the append-only history
// slices back to their recorded sizes, exactly reversing ApplyAction.
func (s *State) UndoAction(u *Undo) {
	s.Street = u.Street
	s.CurrentPlayer = u.CurrentPlayer
	s.Pips = u.Pips
	s.Stacks = u.Stacks
	s.BBDiscarded = u.BBDiscarded
	s.SBDiscarded = u.SBDiscarded
	s.IsTerminal = u.IsTerminal
	s.Payoffs = u.Payoffs

	s.History = s.History[:u.HistorySize]
	s.StreetHistory = s.StreetHistory[:u.StreetHistorySize]

	s.Deck.SetDrawIndex(u.DeckIdx)
	s.HandSizes = u.HandSizes
	s.Hands = u.Hands
	s.BoardSize = u.BoardSize
}

func (s *State) shouldAdvanceStreet() bool {
	if len(s.StreetHistory) < 2 {
		return false
	}
	if s.Pips[0] == s.Pips[1] {
		last := s.StreetHistory[len(s.StreetHistory)-1]
		if last.Action == abstraction.CheckCall {
			return true
		}
	}
	return false
}

func (s *State) advanceStreet() {
	s.Pips = [2]int{0, 0}
	s.StreetHistory = s.StreetHistory[:0]

	switch s.Street {
	case StreetPreflop:
		s.Board[0] = s.drawCard()
		s.Board[1] = s.drawCard()
		s.BoardSize = 2
		s.Street = StreetFlopBet
		s.CurrentPlayer = 1 // BB acts first postflop
	case StreetFlopBet:
		s.Street = StreetBBDiscard
		s.CurrentPlayer = 1 // BB discards first
	case StreetTurn:
		s.Board[s.BoardSize] = s.drawCard()
		s.BoardSize++
		s.Street = StreetRiver
		s.CurrentPlayer = 1
	case StreetRiver:
		s.showdown()
	}
}

func (s *State) drawCard() card.Card {
	return s.Deck.Draw()
}

// applyDiscard implements the BB_DISCARD / SB_DISCARD transition: the
// chosen hole card is removed by swapping it with the hand's last slot
// (shrinking hand size to 2) and appended to the board.
func (s *State) applyDiscard(discardIdx int) {
	if s.Street == StreetBBDiscard {
		p := 1
		discarded := s.Hands[p][discardIdx]
		hs := s.HandSizes[p]
		s.Hands[p][discardIdx] = s.Hands[p][hs-1]
		s.HandSizes[p] = hs - 1

		s.Board[s.BoardSize] = discarded
		s.BoardSize++
		s.BBDiscarded = true
		s.Street = StreetSBDiscard
		s.CurrentPlayer = 0
		return
	}

	p := 0
	discarded := s.Hands[p][discardIdx]
	hs := s.HandSizes[p]
	s.Hands[p][discardIdx] = s.Hands[p][hs-1]
	s.HandSizes[p] = hs - 1

	s.Board[s.BoardSize] = discarded
	s.BoardSize++
	s.SBDiscarded = true

	// Turn is dealt immediately after SB's discard.
	s.Board[s.BoardSize] = s.drawCard()
	s.BoardSize++
	s.Street = StreetTurn
	s.CurrentPlayer = 1
	s.Pips = [2]int{0, 0}
	s.StreetHistory = s.StreetHistory[:0]
}

func (s *State) showdown() {
	s.IsTerminal = true

	cards0 := make([]card.Card, 0, 8)
	cards1 := make([]card.Card, 0, 8)
	cards0 = append(cards0, s.Hands[0][:s.HandSizes[0]]...)
	cards1 = append(cards1, s.Hands[1][:s.HandSizes[1]]...)
	cards0 = append(cards0, s.Board[:s.BoardSize]...)
	cards1 = append(cards1, s.Board[:s.BoardSize]...)

	h0 := eval.Best(cards0)
	h1 := eval.Best(cards1)

	res := eval.Compare(h0, h1)
	p := float64(s.Pot())
	switch {
	case res > 0:
		s.Payoffs = [2]float64{p / 2, -p / 2}
	case res < 0:
		s.Payoffs = [2]float64{-p / 2, p / 2}
	default:
		s.Payoffs = [2]float64{0, 0}
	}
}

// InfoKey computes the abstraction.InfoKey for player at the current
// state, given player's already-computed legal action set.
func (s *State) InfoKey(player int, legal []int) abstraction.InfoKey {
	hole := s.Hands[player][:s.HandSizes[player]]
	board := s.Board[:s.BoardSize]
	return abstraction.ComputeInfoKey(
		player,
		s.Street,
		hole,
		board,
		s.Pot(),
		s.EffectiveStack(),
		s.History,
		s.BBDiscarded,
		s.SBDiscarded,
		LegalMask(legal),
	)
}
