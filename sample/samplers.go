// Package sample picks the next token from model logits, optionally
// constrained by a Guide so that only tokens the index allows can be chosen.
package sample

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/ollama/fsmindex/fsm"
)

// token is one candidate during sampling. value starts as the logit and
// becomes a probability once the candidates are normalized.
type token struct {
	id    int32
	value float32
}

// Sampler draws token ids from logits. With a guide attached every draw is
// one the guide accepts, and the guide advances past it.
type Sampler struct {
	rng         *rand.Rand
	topK        int
	topP        float32
	minP        float32
	temperature float32
	guide       *Guide
}

// NewSampler returns a sampler. A temperature of 0 samples greedily; a seed
// of -1 uses the global random source. A nil guide leaves logits
// unconstrained.
func NewSampler(temperature float32, topK int, topP float32, minP float32, seed int, guide *Guide) Sampler {
	s := Sampler{
		topK:        topK,
		topP:        clamp(topP),
		minP:        clamp(minP),
		temperature: max(temperature, 0),
		guide:       guide,
	}
	if seed != -1 {
		// the second PCG word is the seed mixed with the golden ratio so
		// nearby seeds give unrelated streams
		seq := uint64(seed)
		s.rng = rand.New(rand.NewPCG(seq, seq^0x9E3779B9))
	}
	return s
}

func clamp(p float32) float32 {
	return min(max(p, 0), 1)
}

func candidates(logits []float32) []token {
	ts := make([]token, len(logits))
	for i, v := range logits {
		ts[i] = token{id: int32(i), value: v}
	}
	return ts
}

func (s *Sampler) Sample(logits []float32) (int32, error) {
	if len(logits) == 0 {
		return -1, errors.New("sample: no logits provided to sample")
	}

	t, err := s.sample(candidates(logits))
	if err != nil {
		return -1, err
	}
	if s.guide == nil {
		return t.id, nil
	}

	// check the drawn token first; mask the vocabulary and redraw only
	// when the guide rejects it
	if s.guide.allows(fsm.TokenID(t.id)) {
		return t.id, s.guide.Accept(t.id)
	}

	ts := candidates(logits)
	s.guide.Apply(ts)
	ts = slices.DeleteFunc(ts, func(t token) bool { return math.IsInf(float64(t.value), -1) })
	if len(ts) == 0 {
		return -1, ErrTokenNotAllowed
	}

	t, err = s.sample(ts)
	if err != nil {
		return -1, err
	}
	return t.id, s.guide.Accept(t.id)
}

// greedy returns the first candidate with the highest value.
func greedy(ts []token) token {
	best := ts[0]
	for _, t := range ts[1:] {
		if t.value > best.value {
			best = t
		}
	}
	return best
}

// sample draws one candidate. ts is reordered and overwritten.
func (s *Sampler) sample(ts []token) (token, error) {
	if s.temperature == 0 {
		return greedy(ts), nil
	}

	ts = topK(ts, s.topK)
	temperature(ts, s.temperature)
	softmax(ts)
	ts = topP(ts, s.topP)
	ts = minP(ts, s.minP)

	// turn probabilities into a running total and search it
	var sum float32
	for i := range ts {
		sum += ts[i].value
		ts[i].value = sum
	}
	if math.IsNaN(float64(sum)) {
		return token{}, errors.New("sample: logits sum to NaN, check model output")
	}

	var r float32
	if s.rng != nil {
		r = s.rng.Float32()
	} else {
		r = rand.Float32()
	}
	r *= sum

	i, _ := slices.BinarySearchFunc(ts, r, func(t token, target float32) int {
		if t.value < target {
			return -1
		}
		return 1
	})
	return ts[min(i, len(ts)-1)], nil
}
