// Package cfr implements external-sampling counterfactual regret
// minimization over game.State: regret matching at each information set,
// full traversal at the preflop root, and Monte Carlo sampling of the
// non-traversing player's actions everywhere else.
package cfr

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/tossem/abstraction"
	"github.com/lox/tossem/game"
)

// Node holds the regret and average-strategy accumulators for one
// InfoKey. Both are indexed by the 4 betting actions; discard nodes
// never get a Node (discards are not learned).
type Node struct {
	Regret   [abstraction.NumActions]float64
	StratSum [abstraction.NumActions]float64
}

// Table is a worker-local map of InfoKey to Node. It carries no lock:
// the trainer gives each worker its own Table and sums them together
// only at batch boundaries.
type Table map[abstraction.InfoKey]*Node

// getOrCreate returns the Node for key, lazily creating it on first touch.
func (t Table) getOrCreate(key abstraction.InfoKey) *Node {
	n, ok := t[key]
	if !ok {
		n = &Node{}
		t[key] = n
	}
	return n
}

// RegretMatch computes the current strategy at a decision node from its
// accumulated regrets: probability proportional to positive regret over
// legal actions, or uniform over legal actions if no regret is positive.
func RegretMatch(n *Node, legal []int) map[int]float64 {
	strat := make(map[int]float64, len(legal))
	var sum float64
	for _, a := range legal {
		r := n.Regret[a]
		if r > 0 {
			strat[a] = r
			sum += r
		} else {
			strat[a] = 0
		}
	}
	if sum > 0 {
		for _, a := range legal {
			strat[a] /= sum
		}
	} else {
		p := 1.0 / float64(len(legal))
		for _, a := range legal {
			strat[a] = p
		}
	}
	return strat
}

// Run traverses one iteration for updatePlayer starting from state, which
// must already be at a fresh deal (street == PREFLOP). It mutates and
// fully restores state via apply/undo, and mutates table in place.
func Run(state *game.State, updatePlayer int, rng *rand.Rand, table Table) float64 {
	return traverse(state, updatePlayer, 1.0, 1.0, rng, table)
}

func traverse(state *game.State, updatePlayer int, reach0, reach1 float64, rng *rand.Rand, table Table) float64 {
	if state.IsTerminal {
		return state.Payoffs[updatePlayer]
	}

	legal := state.LegalActions()
	if len(legal) == 0 {
		panic(fmt.Sprintf("cfr: non-terminal state at street %d has no legal actions", state.Street))
	}

	if state.IsDiscardPhase() {
		return traverseDiscard(state, updatePlayer, legal, reach0, reach1, rng, table)
	}

	return traverseBetting(state, updatePlayer, legal, reach0, reach1, rng, table)
}

// traverseDiscard handles a non-learning discard decision: if the acting
// player is the traversing player, average the recursive value uniformly
// over all three discards; otherwise sample one discard uniformly.
func traverseDiscard(state *game.State, updatePlayer int, legal []int, reach0, reach1 float64, rng *rand.Rand, table Table) float64 {
	var u game.Undo

	if state.CurrentPlayer == updatePlayer {
		var sum float64
		for _, a := range legal {
			state.ApplyAction(a, &u)
			sum += traverse(state, updatePlayer, reach0, reach1, rng, table)
			state.UndoAction(&u)
		}
		return sum / float64(len(legal))
	}

	a := legal[rng.IntN(len(legal))]
	state.ApplyAction(a, &u)
	v := traverse(state, updatePlayer, reach0, reach1, rng, table)
	state.UndoAction(&u)
	return v
}

func traverseBetting(state *game.State, updatePlayer int, legal []int, reach0, reach1 float64, rng *rand.Rand, table Table) float64 {
	player := state.CurrentPlayer
	key := state.InfoKey(player, legal)
	node := table.getOrCreate(key)
	strat := RegretMatch(node, legal)

	reachForActing := reach0
	if player == 1 {
		reachForActing = reach1
	}
	for _, a := range legal {
		node.StratSum[a] += reachForActing * strat[a]
	}

	fullTraverse := state.Street == game.StreetPreflop || player == updatePlayer

	var u game.Undo
	if fullTraverse {
		values := make(map[int]float64, len(legal))
		var nodeValue float64
		for _, a := range legal {
			nr0, nr1 := reach0, reach1
			if player == 0 {
				nr0 *= strat[a]
			} else {
				nr1 *= strat[a]
			}
			state.ApplyAction(a, &u)
			v := traverse(state, updatePlayer, nr0, nr1, rng, table)
			state.UndoAction(&u)
			values[a] = v
			nodeValue += strat[a] * v
		}
		if player == updatePlayer {
			for _, a := range legal {
				node.Regret[a] += values[a] - nodeValue
			}
		}
		return nodeValue
	}

	// External sampling: draw one action from strat for the
	// non-traversing, non-preflop player and recurse on that branch only.
	a := sampleAction(strat, legal, rng)
	nr0, nr1 := reach0, reach1
	if player == 0 {
		nr0 *= strat[a]
	} else {
		nr1 *= strat[a]
	}
	state.ApplyAction(a, &u)
	v := traverse(state, updatePlayer, nr0, nr1, rng, table)
	state.UndoAction(&u)
	return v
}

func sampleAction(strat map[int]float64, legal []int, rng *rand.Rand) int {
	r := rng.Float64()
	var cum float64
	for _, a := range legal {
		cum += strat[a]
		if r < cum {
			return a
		}
	}
	return legal[len(legal)-1]
}
