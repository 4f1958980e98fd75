package tokenizer

import (
	"slices"
	"strings"

	"github.com/ollama/fsmindex/fsm"
)

// Fragment is a piece of text that is either plain or exactly one special
// token.
type Fragment struct {
	Text    string
	Special bool
}

// Split splits s into fragments, extracting the special tokens in specials.
// Special tokens are processed in order; earlier tokens take priority at
// overlapping positions.
func Split(s string, specials []string) []Fragment {
	fragments := []Fragment{{Text: s}}
	for _, special := range specials {
		if special == "" || !strings.Contains(s, special) {
			continue
		}

		for i := 0; i < len(fragments); i++ {
			frag := fragments[i]
			if frag.Special {
				continue
			}

			var middle []Fragment
			switch idx := strings.Index(frag.Text, special); {
			case idx < 0:
				middle = append(middle, frag)
			case idx > 0:
				middle = append(middle, Fragment{Text: frag.Text[:idx]})
				fallthrough
			default:
				middle = append(middle, Fragment{Text: special, Special: true})
				if rest := frag.Text[idx+len(special):]; rest != "" {
					middle = append(middle, Fragment{Text: rest})
				}
			}

			fragments = slices.Replace(fragments, i, i+1, middle...)
		}
	}

	return fragments
}

// TransitionKeys encodes text for info, treating every occurrence of a
// frozen token as one symbol and every other character on its own. Longer
// frozen tokens are matched first.
func TransitionKeys(info *fsm.Info, text string, frozen map[string]struct{}) []fsm.Key {
	specials := make([]string, 0, len(frozen))
	for s := range frozen {
		specials = append(specials, s)
	}
	slices.SortFunc(specials, func(a, b string) int {
		if n := len(b) - len(a); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})

	var keys []fsm.Key
	for _, frag := range Split(text, specials) {
		if frag.Special {
			keys = append(keys, info.TransitionKey(frag.Text))
			continue
		}
		keys = append(keys, fsm.TokenTransitionKeys(info.SymbolMapping, info.AnythingValue, frag.Text)...)
	}
	return keys
}
