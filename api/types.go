package api

import (
	"encoding/json"

	"github.com/ollama/fsmindex/fsm"
)

// SchemaRequest asks the server to compile a JSON Schema into a pattern.
type SchemaRequest struct {
	Schema json.RawMessage `json:"schema"`

	// Whitespace overrides the pattern allowed between JSON tokens.
	Whitespace *string `json:"whitespace,omitempty"`
}

type SchemaResponse struct {
	Pattern string `json:"pattern"`
}

// IndexRequest carries everything needed to build a token index.
type IndexRequest struct {
	FSM        *fsm.Info      `json:"fsm"`
	Vocabulary fsm.Vocabulary `json:"vocabulary"`

	// Frozen tokens are matched as a single symbol instead of character by
	// character.
	Frozen []string `json:"frozen,omitempty"`
}

type IndexResponse struct {
	Index fsm.Index `json:"index"`
	Stats fsm.Stats `json:"stats"`
}

// WalkRequest walks text through an automaton. Start defaults to the
// automaton's initial state.
type WalkRequest struct {
	FSM       *fsm.Info  `json:"fsm"`
	Text      string     `json:"text"`
	Frozen    []string   `json:"frozen,omitempty"`
	Start     *fsm.State `json:"start,omitempty"`
	FullMatch bool       `json:"full_match,omitempty"`
}

type WalkResponse struct {
	Keys   []fsm.Key   `json:"keys"`
	States []fsm.State `json:"states"`

	// Matched is set when every key was consumed.
	Matched bool `json:"matched"`
	// Final is set when the walk ended in an accepting state.
	Final bool `json:"final"`
}

type VersionResponse struct {
	Version string `json:"version"`
}
