package fsm

// Walk follows keys through transitions starting at start and returns the
// states visited, one per consumed key. It stops at the first key with no
// outgoing edge.
//
// With fullMatch unset the longest walkable prefix is returned, which may be
// empty. With fullMatch set the result is nil unless every key was consumed.
// Whether the last state accepts is left to the caller (see Info.IsFinal).
func Walk(transitions map[Edge]State, keys []Key, start State, fullMatch bool) []State {
	states := make([]State, 0, len(keys))
	state := start
	for _, k := range keys {
		next, ok := transitions[Edge{From: state, Key: k}]
		if !ok {
			break
		}
		states = append(states, next)
		state = next
	}

	if fullMatch && len(states) != len(keys) {
		return nil
	}
	return states
}
