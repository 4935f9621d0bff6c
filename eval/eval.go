// Package eval ranks poker hands of 2 to 8 cards by their best 5-card
// subset.
package eval

import (
	"sort"

	"github.com/lox/tossem/card"
)

// HandType enumerates poker hand categories from weakest to strongest.
type HandType int

const (
	HighCard HandType = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// Value is a total-order-compatible hand strength: two Values compare
// lexicographically on (Type, Kickers).
type Value struct {
	Type    HandType
	Kickers [5]int
}

// Compare returns 1 if a beats b, -1 if b beats a, 0 on a tie.
func Compare(a, b Value) int {
	if a.Type != b.Type {
		if a.Type > b.Type {
			return 1
		}
		return -1
	}
	for i := 0; i < len(a.Kickers); i++ {
		if a.Kickers[i] != b.Kickers[i] {
			if a.Kickers[i] > b.Kickers[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Best evaluates the best 5-card hand value from 2 to 8 cards. For fewer
// than 5 cards it returns a degenerate high-card-only comparator so that
// partial hands still order consistently during development/testing.
func Best(cards []card.Card) Value {
	n := len(cards)
	if n < 5 {
		ranks := make([]int, n)
		for i, c := range cards {
			ranks[i] = c.Rank()
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ranks)))
		var v Value
		for i := 0; i < len(ranks) && i < 5; i++ {
			v.Kickers[i] = ranks[i]
		}
		return v
	}

	var best Value
	best.Type = -1
	var five [5]card.Card
	forEachCombination(n, 5, func(idx []int) {
		for i, j := range idx {
			five[i] = cards[j]
		}
		v := evalFive(five)
		if best.Type < 0 || Compare(v, best) > 0 {
			best = v
		}
	})
	return best
}

// forEachCombination calls fn once for every k-combination of indices
// [0,n), in lexicographic order. n is small in practice (<= 8).
func forEachCombination(n, k int, fn func(idx []int)) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)

		// Advance to the next combination (classic combinatorial
		// generation, odometer-style from the rightmost index).
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func evalFive(cards [5]card.Card) Value {
	var ranks [5]int
	suit0 := cards[0].Suit()
	isFlush := true
	for i, c := range cards {
		ranks[i] = c.Rank()
		if c.Suit() != suit0 {
			isFlush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks[:])))

	var rankCount [card.NumRanks]int
	for _, r := range ranks {
		rankCount[r]++
	}

	var groups []group
	for r := card.NumRanks - 1; r >= 0; r-- {
		if rankCount[r] > 0 {
			groups = append(groups, group{rankCount[r], r})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	uniq := uniqueDesc(ranks[:])
	isStraight, straightHigh := detectStraight(uniq)

	var v Value
	switch {
	case isStraight && isFlush:
		v.Type = StraightFlush
		v.Kickers[0] = straightHigh
	case groups[0].count == 4:
		v.Type = FourOfAKind
		v.Kickers[0] = groups[0].rank
		v.Kickers[1] = groups[1].rank
	case groups[0].count == 3 && len(groups) > 1 && groups[1].count == 2:
		v.Type = FullHouse
		v.Kickers[0] = groups[0].rank
		v.Kickers[1] = groups[1].rank
	case isFlush:
		v.Type = Flush
		copy(v.Kickers[:], ranks[:])
	case isStraight:
		v.Type = Straight
		v.Kickers[0] = straightHigh
	case groups[0].count == 3:
		v.Type = ThreeOfAKind
		trip := groups[0].rank
		singles := singlesDesc(groups)
		v.Kickers[0] = trip
		v.Kickers[1] = singles[0]
		v.Kickers[2] = singles[1]
	case groups[0].count == 2 && len(groups) > 1 && groups[1].count == 2:
		v.Type = TwoPair
		p1, p2 := groups[0].rank, groups[1].rank
		if p2 > p1 {
			p1, p2 = p2, p1
		}
		kick := 0
		for _, g := range groups {
			if g.count == 1 {
				kick = g.rank
				break
			}
		}
		v.Kickers[0], v.Kickers[1], v.Kickers[2] = p1, p2, kick
	case groups[0].count == 2:
		v.Type = Pair
		pair := groups[0].rank
		singles := singlesDesc(groups)
		v.Kickers[0] = pair
		v.Kickers[1] = singles[0]
		v.Kickers[2] = singles[1]
		v.Kickers[3] = singles[2]
	default:
		v.Type = HighCard
		copy(v.Kickers[:], ranks[:])
	}
	return v
}

type group struct{ count, rank int }

func singlesDesc(groups []group) []int {
	var singles []int
	for _, g := range groups {
		if g.count == 1 {
			singles = append(singles, g.rank)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(singles)))
	return singles
}

func uniqueDesc(ranks []int) []int {
	var out []int
	for _, r := range ranks {
		if len(out) == 0 || out[len(out)-1] != r {
			out = append(out, r)
		}
	}
	return out
}

// detectStraight reports whether the (descending, duplicate-free) ranks
// form a run of five consecutive ranks, treating A-2-3-4-5 as a straight with high=3
// (the wheel). ranks must be sorted descending.
func detectStraight(ranks []int) (bool, int) {
	if len(ranks) < 5 {
		return false, 0
	}
	if ranks[0] == 12 && ranks[1] == 3 && ranks[2] == 2 && ranks[3] == 1 && ranks[4] == 0 {
		return true, 3
	}
	if ranks[0]-ranks[4] == 4 {
		return true, ranks[0]
	}
	return false, 0
}
