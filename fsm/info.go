// Package fsm indexes a deterministic finite automaton against a token
// vocabulary.
//
// The automaton is plain data: integer states and a transition table keyed by
// (state, transition key). Characters are mapped to transition keys through a
// symbol mapping; any character missing from the mapping resolves to the
// "anything" key. The index built from an automaton and a vocabulary lists,
// for every reachable state, each token that can be fully consumed from that
// state and the state it ends in.
package fsm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// State is an automaton state id.
type State uint32

// Key is a transition key: either a symbol from the alphabet or the
// "anything" sentinel.
type Key uint32

// TokenID identifies a vocabulary token.
type TokenID uint32

// Edge is the source half of a transition.
type Edge struct {
	From State
	Key  Key
}

// ErrInvalidInfo is returned by Validate when an automaton descriptor breaks
// one of its preconditions.
var ErrInvalidInfo = errors.New("fsm: invalid automaton")

// Info describes a deterministic automaton. It must not be modified once it
// has been handed to any function in this package.
type Info struct {
	Initial       State
	Finals        map[State]struct{}
	Transitions   map[Edge]State
	AnythingValue Key
	SymbolMapping map[string]Key
}

// IsFinal reports whether s completes the pattern.
func (info *Info) IsFinal(s State) bool {
	_, ok := info.Finals[s]
	return ok
}

// Next returns the destination of the edge (s, k), if defined.
func (info *Info) Next(s State, k Key) (State, bool) {
	next, ok := info.Transitions[Edge{From: s, Key: k}]
	return next, ok
}

// States returns every state mentioned by the transition table, sorted.
func (info *Info) States() []State {
	seen := make(map[State]struct{}, len(info.Transitions))
	for e, to := range info.Transitions {
		seen[e.From] = struct{}{}
		seen[to] = struct{}{}
	}
	states := make([]State, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	slices.Sort(states)
	return states
}

// Validate checks the descriptor preconditions: the symbol mapping is
// injective and never uses the anything value, and every final state is
// known to the transition table. The indexing functions assume these hold
// and do not call Validate themselves.
func (info *Info) Validate() error {
	owners := make(map[Key]string, len(info.SymbolMapping))
	for sym, k := range info.SymbolMapping {
		if k == info.AnythingValue {
			return fmt.Errorf("%w: symbol %q uses the anything value %d", ErrInvalidInfo, sym, k)
		}
		if other, ok := owners[k]; ok {
			a, b := min(sym, other), max(sym, other)
			return fmt.Errorf("%w: symbols %q and %q share key %d", ErrInvalidInfo, a, b, k)
		}
		owners[k] = sym
	}

	known := make(map[State]struct{}, len(info.Transitions))
	for e, to := range info.Transitions {
		known[e.From] = struct{}{}
		known[to] = struct{}{}
	}
	for f := range info.Finals {
		if _, ok := known[f]; !ok && f != info.Initial {
			return fmt.Errorf("%w: final state %d has no transitions", ErrInvalidInfo, f)
		}
	}
	return nil
}

type infoJSON struct {
	Initial       State                   `json:"initial"`
	Finals        []State                 `json:"finals"`
	Transitions   map[State]map[Key]State `json:"transitions"`
	AnythingValue Key                     `json:"anything_value"`
	SymbolMapping map[string]Key          `json:"symbol_mapping"`
}

// MarshalJSON writes transitions as a nested object keyed by source state and
// then transition key.
func (info *Info) MarshalJSON() ([]byte, error) {
	w := infoJSON{
		Initial:       info.Initial,
		Finals:        make([]State, 0, len(info.Finals)),
		Transitions:   make(map[State]map[Key]State),
		AnythingValue: info.AnythingValue,
		SymbolMapping: info.SymbolMapping,
	}
	for f := range info.Finals {
		w.Finals = append(w.Finals, f)
	}
	slices.Sort(w.Finals)
	for e, to := range info.Transitions {
		row, ok := w.Transitions[e.From]
		if !ok {
			row = make(map[Key]State)
			w.Transitions[e.From] = row
		}
		row[e.Key] = to
	}
	return json.Marshal(w)
}

func (info *Info) UnmarshalJSON(data []byte) error {
	var w infoJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*info = Info{
		Initial:       w.Initial,
		Finals:        make(map[State]struct{}, len(w.Finals)),
		Transitions:   make(map[Edge]State),
		AnythingValue: w.AnythingValue,
		SymbolMapping: w.SymbolMapping,
	}
	if info.SymbolMapping == nil {
		info.SymbolMapping = map[string]Key{}
	}
	for _, f := range w.Finals {
		info.Finals[f] = struct{}{}
	}
	for from, row := range w.Transitions {
		for k, to := range row {
			info.Transitions[Edge{From: from, Key: k}] = to
		}
	}
	return nil
}

// ReadInfo decodes a JSON automaton descriptor from r and validates it.
func ReadInfo(r io.Reader) (*Info, error) {
	var info Info
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode automaton: %w", err)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}
