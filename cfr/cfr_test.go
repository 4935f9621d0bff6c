package cfr

import (
	rand "math/rand/v2"
	"testing"

	"github.com/lox/tossem/abstraction"
	"github.com/lox/tossem/game"
)

func TestRegretMatchUniformWhenNonPositive(t *testing.T) {
	t.Parallel()
	n := &Node{}
	n.Regret[abstraction.Fold] = -5
	n.Regret[abstraction.CheckCall] = 0
	legal := []int{abstraction.Fold, abstraction.CheckCall}

	strat := RegretMatch(n, legal)
	want := 1.0 / float64(len(legal))
	for _, a := range legal {
		if strat[a] != want {
			t.Fatalf("strat[%d] = %v, want uniform %v", a, strat[a], want)
		}
	}
}

func TestRegretMatchProportionalToPositiveRegret(t *testing.T) {
	t.Parallel()
	n := &Node{}
	n.Regret[abstraction.CheckCall] = 3
	n.Regret[abstraction.RaiseSmall] = 1
	n.Regret[abstraction.Fold] = -10
	legal := []int{abstraction.Fold, abstraction.CheckCall, abstraction.RaiseSmall}

	strat := RegretMatch(n, legal)
	var sum float64
	for _, a := range legal {
		if strat[a] < 0 {
			t.Fatalf("negative probability for action %d: %v", a, strat[a])
		}
		sum += strat[a]
	}
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("strategy does not sum to 1: %v", sum)
	}
	if strat[abstraction.Fold] != 0 {
		t.Fatalf("action with non-positive regret got nonzero probability: %v", strat[abstraction.Fold])
	}
	if strat[abstraction.CheckCall] <= strat[abstraction.RaiseSmall] {
		t.Fatalf("higher-regret action should get higher probability: checkcall=%v raisesmall=%v",
			strat[abstraction.CheckCall], strat[abstraction.RaiseSmall])
	}
}

func TestRunProducesNoDiscardInfoKeys(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	table := make(Table)

	for i := 0; i < 50; i++ {
		var s game.State
		s.Reset(rng)
		Run(&s, 0, rng, table)
		s.Reset(rng)
		Run(&s, 1, rng, table)
	}

	for key := range table {
		if key.Street == game.StreetBBDiscard || key.Street == game.StreetSBDiscard {
			t.Fatalf("found InfoKey at discard street %d: discards must not be learned", key.Street)
		}
	}
}

func TestRunReturnsFiniteValue(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(42, 99))
	table := make(Table)

	var s game.State
	s.Reset(rng)
	v := Run(&s, 0, rng, table)
	if v != v { // NaN check
		t.Fatalf("Run returned NaN")
	}
	if !s.IsTerminal && len(table) == 0 {
		t.Fatalf("expected some nodes to be touched during traversal")
	}
}

func TestRunLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(5, 6))
	var s game.State
	s.Reset(rng)
	before := s

	table := make(Table)
	Run(&s, 0, rng, table)

	if s.Street != before.Street || s.CurrentPlayer != before.CurrentPlayer {
		t.Fatalf("Run mutated state in a way apply/undo should have reversed")
	}
	if len(s.History) != len(before.History) {
		t.Fatalf("Run left stray history entries: got %d want %d", len(s.History), len(before.History))
	}
	if s.Hands != before.Hands {
		t.Fatalf("Run left hands mutated")
	}
}
