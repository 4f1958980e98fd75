package sample

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ollama/fsmindex/fsm"
)

var ErrTokenNotAllowed = errors.New("sample: token not allowed")

// Guide follows generation through an index. It starts at the automaton's
// initial state and moves one token at a time. End-of-sequence tokens are
// only allowed once the current state is final; emitting one finishes the
// guide.
//
// A Guide is not safe for concurrent use.
type Guide struct {
	info  *fsm.Info
	index fsm.Index
	eos   []fsm.TokenID

	state fsm.State
	done  bool
}

func NewGuide(info *fsm.Info, index fsm.Index, eos ...fsm.TokenID) *Guide {
	return &Guide{
		info:  info,
		index: index,
		eos:   eos,
		state: info.Initial,
	}
}

// State returns the current automaton state.
func (g *Guide) State() fsm.State {
	return g.state
}

// IsFinal reports whether the text generated so far is complete.
func (g *Guide) IsFinal() bool {
	return g.info.IsFinal(g.state)
}

// Done reports whether an end-of-sequence token has been accepted.
func (g *Guide) Done() bool {
	return g.done
}

// Allowed returns the tokens that may come next, sorted.
func (g *Guide) Allowed() []fsm.TokenID {
	if g.done {
		return nil
	}

	allowed := g.index.AllowedTokens(g.state)
	if g.IsFinal() {
		for _, id := range g.eos {
			if !slices.Contains(allowed, id) {
				allowed = append(allowed, id)
			}
		}
		slices.Sort(allowed)
	}
	return allowed
}

func (g *Guide) allows(id fsm.TokenID) bool {
	if g.done {
		return false
	}
	if _, ok := g.index.NextState(g.state, id); ok {
		return true
	}
	return g.IsFinal() && slices.Contains(g.eos, id)
}

// Advance accepts token id and moves to the state it leads to.
func (g *Guide) Advance(id fsm.TokenID) error {
	if g.done {
		return fmt.Errorf("%w: %d after end of sequence", ErrTokenNotAllowed, id)
	}
	if next, ok := g.index.NextState(g.state, id); ok {
		g.state = next
		return nil
	}
	if g.IsFinal() && slices.Contains(g.eos, id) {
		g.done = true
		return nil
	}
	return fmt.Errorf("%w: %d in state %d", ErrTokenNotAllowed, id, g.state)
}

// Reset returns the guide to the initial state.
func (g *Guide) Reset() {
	g.state = g.info.Initial
	g.done = false
}

// Apply masks tokens that are not allowed in the current state.
func (g *Guide) Apply(tokens []token) {
	for i := range tokens {
		if tokens[i].id < 0 || !g.allows(fsm.TokenID(tokens[i].id)) {
			tokens[i].value = float32(math.Inf(-1))
		}
	}
}

// Accept advances the guide past a sampled token.
func (g *Guide) Accept(id int32) error {
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrTokenNotAllowed, id)
	}
	return g.Advance(fsm.TokenID(id))
}
