// Package abstraction compresses a GameState into a bounded InfoKey so that
// strategically similar situations share one CFR policy node.
package abstraction

import (
	"sort"

	"github.com/lox/tossem/card"
)

// Betting action ids.
const (
	Fold = iota
	CheckCall
	RaiseSmall
	RaiseLarge
	NumActions = 4
)

// DiscardBase offsets the three discard actions past the betting actions.
const (
	DiscardBase        = NumActions
	NumDiscardActions  = 3
	NumDistinctActions = NumActions + NumDiscardActions
)

// InfoKey fingerprints an information set: two states that bucket to the
// same InfoKey share the same regret/strategy node.
type InfoKey struct {
	Player       uint8
	Street       uint8
	HoleBucket   uint16
	BoardBucket  uint16
	PotBucket    uint8
	HistBucket   uint8
	BBDiscarded  bool
	SBDiscarded  bool
	LegalMask    uint8
}

// Action is one (player, action) pair recorded in a betting history.
type Action struct {
	Player int
	Action int
}

// HoleBucket buckets a player's hole cards: 169 buckets post-discard (2
// cards) or ~40 heuristic buckets pre-discard (3 cards).
func HoleBucket(hole []card.Card) uint16 {
	if len(hole) == 2 {
		return HoleBucket2(hole[0], hole[1])
	}
	return holeBucket3(hole)
}

// HoleBucket2 buckets a 2-card hand into one of 169 buckets: 13 pocket
// pairs, then 78 offsuit and 78 suited non-pair combinations keyed by
// (high_rank, low_rank).
func HoleBucket2(c1, c2 card.Card) uint16 {
	r0, r1 := c1.Rank(), c2.Rank()
	hi, lo := r0, r1
	if lo > hi {
		hi, lo = lo, hi
	}
	if hi == lo {
		return uint16(hi) // 0..12
	}
	base := 13 + hi*(hi-1)/2 + lo
	if c1.Suit() == c2.Suit() {
		base += 78
	}
	return uint16(base)
}

// holeBucket3 buckets a 3-card pre-discard hand via a heuristic strength
// score (high pair/trips bonus, flush and straight potential) folded into
// 40 bins.
func holeBucket3(hole []card.Card) uint16 {
	ranks := []int{hole[0].Rank(), hole[1].Rank(), hole[2].Rank()}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))
	a, b, c := ranks[0], ranks[1], ranks[2]
	trips := a == b && b == c
	pair := a == b || b == c || a == c

	var suitCount [card.NumSuits]int
	for _, h := range hole {
		suitCount[h.Suit()]++
	}
	flushCount := 0
	for _, n := range suitCount {
		if n > flushCount {
			flushCount = n
		}
	}

	uniq := uniqueDesc(ranks)
	straightPotential := 0
	for i := 0; i+1 < len(uniq); i++ {
		if uniq[i]-uniq[i+1] <= 2 {
			straightPotential++
		}
	}

	strength := a*2 + b + c
	switch {
	case trips:
		strength += 30
	case pair:
		strength += 15
	}
	strength += (flushCount - 1) * 8
	strength += straightPotential * 5

	bucket := strength / 2
	if bucket < 0 {
		bucket = 0
	}
	if bucket > 39 {
		bucket = 39
	}
	return uint16(bucket)
}

func uniqueDesc(ranks []int) []int {
	out := make([]int, 0, len(ranks))
	for _, r := range ranks {
		if len(out) == 0 || out[len(out)-1] != r {
			out = append(out, r)
		}
	}
	return out
}

// BoardBucket buckets public board texture into at most 25 buckets:
// paired, flush-draw level, straight-draw level, and broadway-high.
func BoardBucket(board []card.Card) uint16 {
	if len(board) == 0 {
		return 0
	}

	var rankCount [card.NumRanks]int
	var suitCount [card.NumSuits]int
	ranks := make([]int, len(board))
	highCard := 0
	for i, c := range board {
		r := c.Rank()
		ranks[i] = r
		rankCount[r]++
		suitCount[c.Suit()]++
		if r > highCard {
			highCard = r
		}
	}

	maxRankCount := 0
	for _, n := range rankCount {
		if n > maxRankCount {
			maxRankCount = n
		}
	}
	maxSuitCount := 0
	for _, n := range suitCount {
		if n > maxSuitCount {
			maxSuitCount = n
		}
	}

	sort.Ints(ranks)
	uniq := make([]int, 0, len(ranks))
	for _, r := range ranks {
		if len(uniq) == 0 || uniq[len(uniq)-1] != r {
			uniq = append(uniq, r)
		}
	}
	straightPotential := 0
	for i := 0; i < len(uniq); i++ {
		for j := i + 1; j < len(uniq); j++ {
			if uniq[j]-uniq[i] <= 4 {
				span := j - i + 1
				if span > straightPotential {
					straightPotential = span
				}
			}
		}
	}

	paired := 0
	if maxRankCount >= 2 {
		paired = 1
	}
	flushDraw := maxSuitCount - 1
	if flushDraw > 2 {
		flushDraw = 2
	}
	straightDraw := straightPotential - 2
	if straightDraw < 0 {
		straightDraw = 0
	}
	if straightDraw > 2 {
		straightDraw = 2
	}
	high := 0
	if highCard >= 10 { // Q, K, or A (T=8, J=9, Q=10, K=11, A=12)
		high = 1
	}

	bucket := paired*12 + flushDraw*4 + straightDraw*2 + high
	if bucket > 24 {
		bucket = 24
	}
	return uint16(bucket)
}

// PotBucket buckets the current pot size into 6 bins.
func PotBucket(pot int) uint8 {
	switch {
	case pot <= 4:
		return 0
	case pot <= 10:
		return 1
	case pot <= 25:
		return 2
	case pot <= 60:
		return 3
	case pot <= 140:
		return 4
	default:
		return 5
	}
}

// HistoryBucket summarizes a betting history as raise count/magnitude into
// 6 bins.
func HistoryBucket(history []Action) uint8 {
	if len(history) == 0 {
		return 0
	}
	raises, largeRaises := 0, 0
	for _, a := range history {
		switch a.Action {
		case RaiseSmall:
			raises++
		case RaiseLarge:
			raises++
			largeRaises++
		}
	}
	switch {
	case raises == 0:
		return 1 // passive
	case raises == 1 && largeRaises == 0:
		return 2 // one small raise
	case raises == 1 && largeRaises == 1:
		return 3 // one large raise
	case raises == 2:
		return 4 // two raises
	default:
		return 5 // very aggressive
	}
}

// ComputeInfoKey buckets the full game state into an InfoKey. effStack is
// accepted but unused: the canonical abstraction carries no stack bucket.
func ComputeInfoKey(
	player int,
	street int,
	hole []card.Card,
	board []card.Card,
	pot int,
	effStack int,
	history []Action,
	bbDiscarded, sbDiscarded bool,
	legalMask uint8,
) InfoKey {
	_ = effStack
	return InfoKey{
		Player:      uint8(player),
		Street:      uint8(street),
		HoleBucket:  HoleBucket(hole),
		BoardBucket: BoardBucket(board),
		PotBucket:   PotBucket(pot),
		HistBucket:  HistoryBucket(history),
		BBDiscarded: bbDiscarded,
		SBDiscarded: sbDiscarded,
		LegalMask:   legalMask & 0x7F,
	}
}
