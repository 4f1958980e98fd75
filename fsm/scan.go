package fsm

// TokenTransition records that a token, consumed whole, leads to End.
type TokenTransition struct {
	Token TokenID
	End   State
}

// ScanState walks every vocabulary entry from start and returns the tokens
// that can be consumed completely, each paired with the state it ends in.
// keys must hold the transition keys of vocab, index for index, as returned by
// VocabularyTransitionKeys.
//
// A token whose walk dies part way through is left out: a generator cannot
// emit half a token. A token with no characters stays at start.
func ScanState(info *Info, vocab Vocabulary, keys [][]Key, start State) map[TokenTransition]struct{} {
	out := make(map[TokenTransition]struct{})
	for i, t := range vocab {
		walked := Walk(info.Transitions, keys[i], start, true)

		end := start
		switch {
		case len(keys[i]) == 0:
		case len(walked) == 0:
			continue
		default:
			end = walked[len(walked)-1]
		}

		for _, id := range t.IDs {
			out[TokenTransition{Token: id, End: end}] = struct{}{}
		}
	}
	return out
}
