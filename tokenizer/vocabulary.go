// Package tokenizer loads model vocabularies and turns them into the surface
// text of each token, which is what the automaton index walks.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ollama/fsmindex/fsm"
)

const (
	TOKEN_TYPE_NORMAL = iota + 1
	TOKEN_TYPE_UNKNOWN
	TOKEN_TYPE_CONTROL
	TOKEN_TYPE_USER_DEFINED
	TOKEN_TYPE_UNUSED
	TOKEN_TYPE_BYTE
)

// Vocabulary models.
const (
	// ModelBPE is a byte-level BPE vocabulary: every byte is stored as a
	// printable rune (for example a space is "Ġ").
	ModelBPE = "gpt2"
	// ModelSentencePiece stores spaces as "▁" and raw bytes as "<0xNN>".
	ModelSentencePiece = "llama"
)

const spmWhitespaceSep = "▁"

// Vocabulary is a model vocabulary indexed by token id.
type Vocabulary struct {
	// Model selects how values are decoded. An empty model keeps values
	// as they are.
	Model  string
	Values []string
	Types  []int32
}

func (v *Vocabulary) typ(id int) int32 {
	if id < len(v.Types) {
		return v.Types[id]
	}
	return TOKEN_TYPE_NORMAL
}

// Decode returns the text a token produces. Control and user defined tokens
// decode to their value unchanged.
func (v *Vocabulary) Decode(id int32) string {
	data := v.Values[id]
	switch typ := v.typ(int(id)); {
	case typ == TOKEN_TYPE_CONTROL, typ == TOKEN_TYPE_USER_DEFINED:
		return data
	case typ == TOKEN_TYPE_BYTE || v.Model == ModelSentencePiece:
		// For tokenizers that use byte tokens like "<0xEA>" convert them to
		// the byte they stand for.
		if isByteToken(data) {
			if b, err := strconv.ParseUint(data[1:5], 0, 8); err == nil {
				return string([]byte{byte(b)})
			}
		}
		if v.Model == ModelSentencePiece {
			return strings.ReplaceAll(data, spmWhitespaceSep, " ")
		}
		return data
	case v.Model == ModelBPE:
		return DecodeByteLevel(data)
	default:
		return data
	}
}

// Special returns the control and user defined token values in id order.
func (v *Vocabulary) Special() []string {
	var special []string
	for i := range v.Values {
		if t := v.typ(i); t == TOKEN_TYPE_CONTROL || t == TOKEN_TYPE_USER_DEFINED {
			special = append(special, v.Values[i])
		}
	}
	return special
}

// Frozen returns the special tokens as a set. The index treats each of them
// as a single symbol instead of a run of characters.
func (v *Vocabulary) Frozen() map[string]struct{} {
	frozen := make(map[string]struct{})
	for _, s := range v.Special() {
		frozen[s] = struct{}{}
	}
	return frozen
}

// Entries groups token ids by decoded text, in order of first appearance.
// Unused ids are left out.
func (v *Vocabulary) Entries() fsm.Vocabulary {
	index := make(map[string]int, len(v.Values))
	entries := make(fsm.Vocabulary, 0, len(v.Values))
	counter := make(map[int32]int)
	for i := range v.Values {
		typ := v.typ(i)
		counter[typ]++
		if typ == TOKEN_TYPE_UNUSED {
			continue
		}

		text := v.Decode(int32(i))
		if j, ok := index[text]; ok {
			entries[j].IDs = append(entries[j].IDs, fsm.TokenID(i))
			continue
		}
		index[text] = len(entries)
		entries = append(entries, fsm.Token{Text: text, IDs: []fsm.TokenID{fsm.TokenID(i)}})
	}

	slog.Debug("Token counts", "normal", counter[TOKEN_TYPE_NORMAL], "unknown", counter[TOKEN_TYPE_UNKNOWN], "control", counter[TOKEN_TYPE_CONTROL],
		"user defined", counter[TOKEN_TYPE_USER_DEFINED], "unused", counter[TOKEN_TYPE_UNUSED], "byte", counter[TOKEN_TYPE_BYTE],
		"entries", len(entries))
	return entries
}

// ReadVocabularyJSON reads a vocabulary written as a list of
// {"text": ..., "ids": [...]} objects.
func ReadVocabularyJSON(r io.Reader) (fsm.Vocabulary, error) {
	var vocab fsm.Vocabulary
	if err := json.NewDecoder(r).Decode(&vocab); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	for i, t := range vocab {
		if len(t.IDs) == 0 {
			return nil, fmt.Errorf("decode vocabulary: entry %d (%q) has no ids", i, t.Text)
		}
	}
	return vocab, nil
}
