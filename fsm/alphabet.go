package fsm

import "unicode/utf8"

// Token is one vocabulary entry. Several ids may share the same surface text.
type Token struct {
	Text string    `json:"text"`
	IDs  []TokenID `json:"ids"`
}

// Vocabulary is an ordered list of tokens. Order does not change the index.
type Vocabulary []Token

// Len returns the number of token ids across all entries.
func (v Vocabulary) Len() int {
	var n int
	for _, t := range v {
		n += len(t.IDs)
	}
	return n
}

// TransitionKey returns the key mapped to symbol, or anything if the symbol is
// not part of the alphabet.
func TransitionKey(mapping map[string]Key, anything Key, symbol string) Key {
	if k, ok := mapping[symbol]; ok {
		return k
	}
	return anything
}

// TransitionKey returns the key for a single symbol of the automaton's
// alphabet.
func (info *Info) TransitionKey(symbol string) Key {
	return TransitionKey(info.SymbolMapping, info.AnythingValue, symbol)
}

// TokenTransitionKeys returns one transition key per character of token.
func TokenTransitionKeys(mapping map[string]Key, anything Key, token string) []Key {
	keys := make([]Key, 0, utf8.RuneCountInString(token))
	for _, r := range token {
		keys = append(keys, TransitionKey(mapping, anything, string(r)))
	}
	return keys
}

// VocabularyTransitionKeys returns the key sequence of every vocabulary entry,
// in vocabulary order. Frozen tokens are not split into characters: the whole
// text is looked up as a single symbol.
func VocabularyTransitionKeys(mapping map[string]Key, anything Key, vocab Vocabulary, frozen map[string]struct{}) [][]Key {
	keys := make([][]Key, len(vocab))
	for i, t := range vocab {
		if _, ok := frozen[t.Text]; ok {
			keys[i] = []Key{TransitionKey(mapping, anything, t.Text)}
			continue
		}
		keys[i] = TokenTransitionKeys(mapping, anything, t.Text)
	}
	return keys
}
