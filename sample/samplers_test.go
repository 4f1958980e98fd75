package sample

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/fsmindex/fsm"
)

func TestWeighted(t *testing.T) {
	s := NewSampler(1, 0, 1, 0, 42, nil)
	got, err := s.Sample([]float32{float32(math.Inf(-1)), 2, float32(math.Inf(-1)), float32(math.Inf(-1))})
	require.NoError(t, err)
	assert.Equal(t, int32(1), got)

	_, err = s.Sample(nil)
	assert.Error(t, err)

	_, err = s.Sample([]float32{float32(math.NaN()), float32(math.NaN())})
	assert.ErrorContains(t, err, "NaN")
}

func TestGreedy(t *testing.T) {
	s := NewSampler(0, 0, 0, 0, -1, nil)
	got, err := s.Sample([]float32{1, 4, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, int32(1), got)
}

func TestSeededSampling(t *testing.T) {
	logits := make([]float32, 64)
	r := rand.New(rand.NewPCG(1, 1))
	for i := range logits {
		logits[i] = r.Float32() * 4
	}

	a := NewSampler(0.8, 10, 0.9, 0.05, 7, nil)
	b := NewSampler(0.8, 10, 0.9, 0.05, 7, nil)
	for range 20 {
		x, err := a.Sample(logits)
		require.NoError(t, err)
		y, err := b.Sample(logits)
		require.NoError(t, err)
		assert.Equal(t, x, y)
	}
}

func TestGuidedSampling(t *testing.T) {
	info, ix := digits(t)

	// The model prefers token 3 ("x"), which the guide never allows. Once the
	// guide reaches a final state end of sequence outranks every digit.
	logits := []float32{1, 2, 0.5, 10, 3}

	for _, temp := range []float32{0, 1} {
		g := NewGuide(info, ix, eos)
		s := NewSampler(temp, 0, 1, 0, 1, g)

		var ids []int32
		for !g.Done() {
			id, err := s.Sample(logits)
			require.NoError(t, err)
			ids = append(ids, id)
			require.Less(t, len(ids), 4)
		}
		assert.NotContains(t, ids, int32(3))
		assert.Equal(t, int32(eos), ids[len(ids)-1])
		if temp == 0 {
			if diff := cmp.Diff([]int32{1, 4}, ids); diff != "" {
				t.Errorf("greedy path mismatch (-want +got):\n%s", diff)
			}
		}
	}
}

func TestGuidedSamplingExhausted(t *testing.T) {
	info, ix := digits(t)
	g := NewGuide(info, ix)
	require.NoError(t, g.Advance(2))

	s := NewSampler(0, 0, 0, 0, -1, g)
	_, err := s.Sample([]float32{1, 1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrTokenNotAllowed)
}

func TestTopK(t *testing.T) {
	input := []token{{0, 1}, {1, 5}, {2, 3}, {3, 4}, {4, 2}}

	got := topK(append([]token(nil), input...), 3)
	if diff := cmp.Diff([]token{{1, 5}, {3, 4}, {2, 3}}, got, cmp.AllowUnexported(token{})); diff != "" {
		t.Errorf("topK mismatch (-want +got):\n%s", diff)
	}

	got = topK(append([]token(nil), input...), 0)
	assert.Len(t, got, len(input))
	assert.Equal(t, int32(1), got[0].id)
	assert.Equal(t, int32(0), got[len(got)-1].id)
}

func TestSoftmax(t *testing.T) {
	ts := []token{{0, 1}, {1, 1}, {2, float32(math.Inf(-1))}}
	softmax(ts)
	assert.InDelta(t, 0.5, ts[0].value, 1e-6)
	assert.InDelta(t, 0.5, ts[1].value, 1e-6)
	assert.Zero(t, ts[2].value)
}

func TestTopPMinP(t *testing.T) {
	ts := []token{{0, 0.5}, {1, 0.3}, {2, 0.15}, {3, 0.05}}

	assert.Len(t, topP(ts, 0.7), 2)
	assert.Len(t, topP(ts, 1), 4)
	assert.Len(t, minP(ts, 0.2), 3)
	assert.Len(t, minP(ts, 0), 4)
}
