package fsm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// Index maps a state to the tokens allowed there and the state each one
// leads to. Dead-end states, from which no token can be consumed, have no
// entry.
type Index map[State]map[TokenID]State

// AllowedTokens returns the tokens that may be emitted from s, sorted.
func (ix Index) AllowedTokens(s State) []TokenID {
	row := ix[s]
	ids := make([]TokenID, 0, len(row))
	for id := range row {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NextState returns the state reached by emitting token t from s.
func (ix Index) NextState(s State, t TokenID) (State, bool) {
	next, ok := ix[s][t]
	return next, ok
}

// States returns the indexed states, sorted.
func (ix Index) States() []State {
	states := make([]State, 0, len(ix))
	for s := range ix {
		states = append(states, s)
	}
	slices.Sort(states)
	return states
}

// Len returns the number of (state, token) entries.
func (ix Index) Len() int {
	var n int
	for _, row := range ix {
		n += len(row)
	}
	return n
}

// Stats summarizes an index.
type Stats struct {
	States      int `json:"states"`
	Transitions int `json:"transitions"`
	// DeadEnds counts states reachable through the index that have no entry
	// of their own.
	DeadEnds  int `json:"dead_ends"`
	MaxTokens int `json:"max_tokens"`
}

func (ix Index) Stats() Stats {
	st := Stats{States: len(ix)}
	dead := make(map[State]struct{})
	for _, row := range ix {
		st.Transitions += len(row)
		st.MaxTokens = max(st.MaxTokens, len(row))
		for _, to := range row {
			if _, ok := ix[to]; !ok {
				dead[to] = struct{}{}
			}
		}
	}
	st.DeadEnds = len(dead)
	return st
}

// Equal reports whether two indexes hold the same entries.
func (ix Index) Equal(other Index) bool {
	if len(ix) != len(other) {
		return false
	}
	for s, row := range ix {
		orow, ok := other[s]
		if !ok || len(row) != len(orow) {
			return false
		}
		for t, to := range row {
			if oto, ok := orow[t]; !ok || oto != to {
				return false
			}
		}
	}
	return true
}

var cborEncMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeCBOR writes ix to w in canonical CBOR, so equal indexes encode to
// equal bytes.
func (ix Index) EncodeCBOR(w io.Writer) error {
	return cborEncMode.NewEncoder(w).Encode(map[State]map[TokenID]State(ix))
}

// DecodeCBOR reads an index written by EncodeCBOR.
func DecodeCBOR(r io.Reader) (Index, error) {
	var ix Index
	if err := cbor.NewDecoder(r).Decode(&ix); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if ix == nil {
		ix = Index{}
	}
	return ix, nil
}

// ReadIndex reads an index in either CBOR or JSON. JSON is recognized by its
// leading '{'.
func ReadIndex(r io.Reader) (Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var ix Index
		if err := json.Unmarshal(trimmed, &ix); err != nil {
			return nil, fmt.Errorf("decode index: %w", err)
		}
		return ix, nil
	}
	return DecodeCBOR(bytes.NewReader(data))
}
