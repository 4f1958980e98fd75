package fsm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// abc is the automaton for (ab|b)c*(<eos>)? where <eos> is a single symbol.
//
//	0 -a-> 1 -b-> 2
//	0 -b-> 2 -c-> 2
//	2 -<eos>-> 3
func abc() *Info {
	return &Info{
		Initial: 0,
		Finals:  map[State]struct{}{2: {}, 3: {}},
		Transitions: map[Edge]State{
			{0, 0}: 1,
			{0, 1}: 2,
			{1, 1}: 2,
			{2, 2}: 2,
			{2, 4}: 3,
		},
		AnythingValue: 99,
		SymbolMapping: map[string]Key{"a": 0, "b": 1, "c": 2, "<eos>": 4},
	}
}

var abcVocab = Vocabulary{
	{Text: "a", IDs: []TokenID{1}},
	{Text: "ab", IDs: []TokenID{2}},
	{Text: "b", IDs: []TokenID{3}},
	{Text: "c", IDs: []TokenID{4, 40}},
	{Text: "cc", IDs: []TokenID{5}},
	{Text: "abc", IDs: []TokenID{6}},
	{Text: "x", IDs: []TokenID{7}},
	{Text: "ba", IDs: []TokenID{8}},
	{Text: "<eos>", IDs: []TokenID{10}},
}

func TestTransitionKeys(t *testing.T) {
	info := abc()

	assert.Equal(t, Key(0), info.TransitionKey("a"))
	assert.Equal(t, Key(99), info.TransitionKey("z"))
	assert.Equal(t, Key(4), info.TransitionKey("<eos>"))

	cases := []struct {
		token string
		want  []Key
	}{
		{"", []Key{}},
		{"abc", []Key{0, 1, 2}},
		{"a?c", []Key{0, 99, 2}},
		{"é", []Key{99}},
		{"<eos>", []Key{99, 99, 99, 99, 99}},
	}
	for _, tt := range cases {
		t.Run(tt.token, func(t *testing.T) {
			got := TokenTransitionKeys(info.SymbolMapping, info.AnythingValue, tt.token)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVocabularyTransitionKeys(t *testing.T) {
	info := abc()
	vocab := Vocabulary{
		{Text: "ab", IDs: []TokenID{0}},
		{Text: "<eos>", IDs: []TokenID{1}},
		{Text: "<unk>", IDs: []TokenID{2}},
	}
	frozen := map[string]struct{}{"<eos>": {}, "<unk>": {}}

	got := VocabularyTransitionKeys(info.SymbolMapping, info.AnythingValue, vocab, frozen)
	want := [][]Key{{0, 1}, {4}, {99}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	got = VocabularyTransitionKeys(info.SymbolMapping, info.AnythingValue, vocab, nil)
	assert.Len(t, got[1], len("<eos>"))
}

func TestWalk(t *testing.T) {
	tr := abc().Transitions

	cases := []struct {
		name      string
		keys      []Key
		start     State
		fullMatch bool
		want      []State
	}{
		{"full", []Key{0, 1, 2, 2}, 0, true, []State{1, 2, 2, 2}},
		{"empty", nil, 0, true, []State{}},
		{"prefix", []Key{0, 1, 0}, 0, false, []State{1, 2}},
		{"incomplete", []Key{0, 1, 0}, 0, true, nil},
		{"dead on first key", []Key{99}, 0, false, []State{}},
		{"dead on first key full", []Key{99}, 0, true, nil},
		{"other start", []Key{2, 4}, 2, true, []State{2, 3}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := Walk(tr, tt.keys, tt.start, tt.fullMatch)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("walk mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWalkIgnoresFinals(t *testing.T) {
	info := abc()
	// State 1 is not final, yet a walk ending there counts as complete.
	got := Walk(info.Transitions, []Key{0}, 0, true)
	assert.Equal(t, []State{1}, got)
	assert.False(t, info.IsFinal(1))
	assert.True(t, info.IsFinal(2))
}

func TestScanState(t *testing.T) {
	info := abc()
	keys := VocabularyTransitionKeys(info.SymbolMapping, info.AnythingValue, abcVocab, nil)

	got := ScanState(info, abcVocab, keys, 2)
	want := map[TokenTransition]struct{}{
		{Token: 4, End: 2}:  {},
		{Token: 40, End: 2}: {},
		{Token: 5, End: 2}:  {},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, ScanState(info, abcVocab, keys, 3))
}

func TestScanStateEmptyToken(t *testing.T) {
	info := abc()
	vocab := Vocabulary{{Text: "", IDs: []TokenID{0}}}
	keys := VocabularyTransitionKeys(info.SymbolMapping, info.AnythingValue, vocab, nil)

	for _, s := range []State{0, 3} {
		got := ScanState(info, vocab, keys, s)
		assert.Equal(t, map[TokenTransition]struct{}{{Token: 0, End: s}: {}}, got)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, abc().Validate())

	initialOnly := &Info{Finals: map[State]struct{}{0: {}}}
	require.NoError(t, initialOnly.Validate())

	cases := []struct {
		name   string
		modify func(*Info)
		msg    string
	}{
		{"anything collision", func(i *Info) { i.SymbolMapping["d"] = 99 }, "anything value"},
		{"shared key", func(i *Info) { i.SymbolMapping["d"] = 0 }, `"a" and "d" share key 0`},
		{"unknown final", func(i *Info) { i.Finals[7] = struct{}{} }, "final state 7"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			info := abc()
			tt.modify(info)
			err := info.Validate()
			require.ErrorIs(t, err, ErrInvalidInfo)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestInfoStates(t *testing.T) {
	assert.Equal(t, []State{0, 1, 2, 3}, abc().States())
}

func TestReadInfo(t *testing.T) {
	const descriptor = `{
		"initial": 0,
		"finals": [1],
		"transitions": {"0": {"5": 1}},
		"anything_value": 99,
		"symbol_mapping": {"a": 5}
	}`

	info, err := ReadInfo(strings.NewReader(descriptor))
	require.NoError(t, err)

	want := &Info{
		Initial:       0,
		Finals:        map[State]struct{}{1: {}},
		Transitions:   map[Edge]State{{From: 0, Key: 5}: 1},
		AnythingValue: 99,
		SymbolMapping: map[string]Key{"a": 5},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("info mismatch (-want +got):\n%s", diff)
	}

	b, err := info.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, descriptor, string(b))

	_, err = ReadInfo(strings.NewReader(`{"finals": [3], "anything_value": 1}`))
	assert.ErrorIs(t, err, ErrInvalidInfo)

	_, err = ReadInfo(strings.NewReader(`{"transitions": []}`))
	assert.ErrorContains(t, err, "decode automaton")
}
