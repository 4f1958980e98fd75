package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

type tokenizer struct {
	AddedTokens []token `json:"added_tokens"`
	Model       struct {
		Type  string          `json:"type"`
		Vocab json.RawMessage `json:"vocab"`
	} `json:"model"`

	Decoder *decoder `json:"decoder"`
}

type decoder struct {
	Type     string    `json:"type"`
	Decoders []decoder `json:"decoders"`
}

type token struct {
	ID          int    `json:"id"`
	Content     string `json:"content"`
	Special     bool   `json:"special"`
	UserDefined bool
}

// ParseTokenizerJSON reads a Hugging Face tokenizer.json. Tokens from
// model.vocab are normal tokens; added tokens become control tokens when
// marked special and user defined tokens otherwise.
func ParseTokenizerJSON(r io.Reader) (*Vocabulary, error) {
	var t tokenizer
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode tokenizer: %w", err)
	}

	tokens, err := t.vocab()
	if err != nil {
		return nil, err
	}

	for _, token := range t.AddedTokens {
		token.UserDefined = true
		tokens[token.ID] = token
	}

	v := Vocabulary{Model: t.model()}
	if len(tokens) == 0 {
		return &v, nil
	}

	ids := slices.Sorted(maps.Keys(tokens))
	if ids[0] < 0 {
		return nil, fmt.Errorf("decode tokenizer: negative token id %d", ids[0])
	}

	n := ids[len(ids)-1] + 1
	v.Values = make([]string, n)
	v.Types = make([]int32, n)
	for i := range v.Types {
		v.Types[i] = TOKEN_TYPE_UNUSED
	}

	for _, id := range ids {
		token := tokens[id]
		v.Values[id] = token.Content

		switch {
		case token.Special:
			v.Types[id] = TOKEN_TYPE_CONTROL
		case token.UserDefined:
			v.Types[id] = TOKEN_TYPE_USER_DEFINED
		case v.Model == ModelSentencePiece && isByteToken(token.Content):
			v.Types[id] = TOKEN_TYPE_BYTE
		default:
			v.Types[id] = TOKEN_TYPE_NORMAL
		}
	}

	if gaps := n - len(ids); gaps > 0 {
		slog.Warn("tokenizer has unassigned ids", "count", gaps)
	}
	return &v, nil
}

// vocab reads model.vocab, which BPE and WordPiece models store as an object
// of token to id and Unigram models as a list of [token, score] pairs.
func (t *tokenizer) vocab() (map[int]token, error) {
	if len(t.Model.Vocab) == 0 {
		return make(map[int]token), nil
	}

	var byToken map[string]int
	if err := json.Unmarshal(t.Model.Vocab, &byToken); err == nil {
		tokens := make(map[int]token, len(byToken))
		for k, v := range byToken {
			tokens[v] = token{ID: v, Content: k}
		}
		return tokens, nil
	}

	var pairs [][]json.RawMessage
	if err := json.Unmarshal(t.Model.Vocab, &pairs); err != nil {
		return nil, errors.New("decode tokenizer: model.vocab must be an object or a list of pairs")
	}
	tokens := make(map[int]token, len(pairs))
	for i, pair := range pairs {
		if len(pair) == 0 {
			return nil, fmt.Errorf("decode tokenizer: empty vocab entry %d", i)
		}
		var content string
		if err := json.Unmarshal(pair[0], &content); err != nil {
			return nil, fmt.Errorf("decode tokenizer: vocab entry %d: %w", i, err)
		}
		tokens[i] = token{ID: i, Content: content}
	}
	return tokens, nil
}

// model infers the vocabulary encoding from the decoder pipeline.
func (t *tokenizer) model() string {
	if t.Decoder == nil {
		if strings.EqualFold(t.Model.Type, "Unigram") {
			return ModelSentencePiece
		}
		return ""
	}

	decoders := append([]decoder{*t.Decoder}, t.Decoder.Decoders...)
	for _, d := range decoders {
		switch d.Type {
		case "ByteLevel":
			return ModelBPE
		case "Metaspace", "ByteFallback":
			return ModelSentencePiece
		}
	}
	return ""
}

func isByteToken(s string) bool {
	return len(s) == 6 && strings.HasPrefix(s, "<0x") && strings.HasSuffix(s, ">")
}
