// Package card implements the 52-card deck used by the Toss'em game state
// machine: a single-byte Card encoding and a deterministic Fisher-Yates deck.
package card

import (
	"fmt"
	rand "math/rand/v2"
)

// Card is rank*4+suit packed into a single byte. Rank 0 is deuce, rank 12
// is ace; suit is 0..3 with no particular meaning attached to suit order.
type Card uint8

const (
	NumRanks = 13
	NumSuits = 4
	NumCards = NumRanks * NumSuits
)

var rankStr = [NumRanks]byte{'2', '3', '4', '5', '6', '7', '8', '9', 'T', 'J', 'Q', 'K', 'A'}
var suitStr = [NumSuits]byte{'c', 'd', 'h', 's'}

// New builds a Card from a rank (0..12) and suit (0..3).
func New(rank, suit int) Card {
	return Card(rank*NumSuits + suit)
}

// Rank returns the card's rank, 0 (deuce) through 12 (ace).
func (c Card) Rank() int { return int(c) / NumSuits }

// Suit returns the card's suit, 0..3.
func (c Card) Suit() int { return int(c) % NumSuits }

// String renders a card like "Ts" or "Ah".
func (c Card) String() string {
	return string([]byte{rankStr[c.Rank()], suitStr[c.Suit()]})
}

// Deck holds the 52-card deck and the draw index; the two hands are dealt
// into arrays owned by the caller. Reset performs a fresh Fisher-Yates shuffle and deals 3 cards to each
// player, leaving the remaining 46 cards ready for sequential Draw calls.
type Deck struct {
	cards [NumCards]Card
	idx   int
}

// Reset reshuffles a full 52-card deck using rng and deals 3 cards to each
// of the two hands, advancing the draw index past the dealt cards.
func (d *Deck) Reset(rng *rand.Rand, hand0, hand1 *[3]Card) {
	for r := 0; r < NumRanks; r++ {
		for s := 0; s < NumSuits; s++ {
			d.cards[r*NumSuits+s] = New(r, s)
		}
	}

	// Fisher-Yates shuffle.
	for i := NumCards - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}

	for i := 0; i < 3; i++ {
		hand0[i] = d.cards[i]
		hand1[i] = d.cards[3+i]
	}
	d.idx = 6
}

// Draw returns the next undealt card and advances the draw index.
func (d *Deck) Draw() Card {
	if d.idx >= NumCards {
		panic(fmt.Sprintf("card: deck exhausted at index %d", d.idx))
	}
	c := d.cards[d.idx]
	d.idx++
	return c
}

// DrawIndex returns the current draw index, for Undo snapshots.
func (d *Deck) DrawIndex() int { return d.idx }

// SetDrawIndex restores a previously snapshotted draw index.
func (d *Deck) SetDrawIndex(idx int) { d.idx = idx }
