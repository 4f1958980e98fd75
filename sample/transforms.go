package sample

import (
	"cmp"
	"math"
	"slices"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
)

// temperature divides every logit by temp, clipped away from zero.
func temperature(ts []token, temp float32) {
	temp = max(temp, 1e-7)
	for i := range ts {
		ts[i].value /= temp
	}
}

// softmax turns logits into probabilities in place. Masked candidates
// (-Inf) end up with probability 0.
func softmax(ts []token) {
	hi := float32(math.Inf(-1))
	for _, t := range ts {
		hi = max(hi, t.value)
	}

	var sum float32
	for i := range ts {
		ts[i].value = float32(math.Exp(float64(ts[i].value - hi)))
		sum += ts[i].value
	}
	for i := range ts {
		ts[i].value /= sum
	}
}

func byValue(a, b token) int {
	return cmp.Compare(a.value, b.value)
}

// topK keeps the k highest candidates in descending order. A non-positive
// k keeps every candidate, still sorted.
func topK(ts []token, k int) []token {
	if k <= 0 || k >= len(ts) {
		slices.SortStableFunc(ts, func(a, b token) int { return byValue(b, a) })
		return ts
	}

	// min-heap holding the k best tokens seen so far
	q := pq.NewWith(byValue)
	for _, t := range ts {
		q.Enqueue(t)
		if q.Size() > k {
			q.Dequeue()
		}
	}

	out := ts[:k]
	for i := k - 1; i >= 0; i-- {
		out[i], _ = q.Dequeue()
	}
	return out
}

// topP keeps the shortest prefix whose probability mass exceeds p. ts must
// be sorted in descending order.
func topP(ts []token, p float32) []token {
	if p >= 1 {
		return ts
	}

	var mass float32
	for i, t := range ts {
		mass += t.value
		if mass > p {
			return ts[:i+1]
		}
	}
	return ts
}

// minP drops candidates less likely than p times the best one. ts must be
// sorted in descending order.
func minP(ts []token, p float32) []token {
	cutoff := ts[0].value * p
	if i := slices.IndexFunc(ts, func(t token) bool { return t.value < cutoff }); i >= 0 {
		return ts[:i]
	}
	return ts
}
