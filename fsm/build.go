package fsm

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/emirpasic/gods/v2/queues/arrayqueue"
	"golang.org/x/sync/errgroup"

	"github.com/ollama/fsmindex/logutil"
)

// builder holds the state of one index construction. Nothing in it outlives
// the call that created it.
type builder struct {
	info  *Info
	vocab Vocabulary
	keys  [][]Key

	queue *arrayqueue.Queue[State]
	seen  map[State]struct{}
	index Index
}

func newBuilder(info *Info, vocab Vocabulary, frozen map[string]struct{}) *builder {
	return &builder{
		info:  info,
		vocab: vocab,
		keys:  VocabularyTransitionKeys(info.SymbolMapping, info.AnythingValue, vocab, frozen),
		queue: arrayqueue.New[State](),
		seen:  make(map[State]struct{}),
		index: make(Index),
	}
}

// enqueue schedules s for scanning unless it was scheduled before.
func (b *builder) enqueue(s State) {
	if _, ok := b.seen[s]; ok {
		return
	}
	b.seen[s] = struct{}{}
	b.queue.Enqueue(s)
}

// record stores the scan result of s and schedules the states it reaches.
func (b *builder) record(s State, pairs map[TokenTransition]struct{}) {
	logutil.Trace("scanned state", "state", s, "tokens", len(pairs))
	if len(pairs) == 0 {
		return
	}

	row := make(map[TokenID]State, len(pairs))
	for p := range pairs {
		row[p.Token] = p.End
		b.enqueue(p.End)
	}
	b.index[s] = row
}

// BuildIndex scans every state reachable from info.Initial through vocabulary
// tokens and returns the resulting index. Each reachable state is scanned
// exactly once; states from which no token can be consumed are dead ends and
// get no entry.
func BuildIndex(info *Info, vocab Vocabulary, frozen map[string]struct{}) Index {
	start := time.Now()
	b := newBuilder(info, vocab, frozen)

	b.enqueue(info.Initial)
	for !b.queue.Empty() {
		s, _ := b.queue.Dequeue()
		b.record(s, ScanState(info, vocab, b.keys, s))
	}

	slog.Debug("built index", "states", len(b.index), "scanned", len(b.seen), "tokens", vocab.Len(), "elapsed", time.Since(start))
	return b.index
}

// BuildIndexParallel builds the same index as BuildIndex, scanning each
// frontier of the breadth-first traversal with up to workers goroutines. The
// whole frontier is scanned before the next one is computed. A non-positive
// workers uses one goroutine per CPU.
func BuildIndexParallel(ctx context.Context, info *Info, vocab Vocabulary, frozen map[string]struct{}, workers int) (Index, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	start := time.Now()
	b := newBuilder(info, vocab, frozen)
	b.enqueue(info.Initial)

	var waves int
	for !b.queue.Empty() {
		frontier := b.queue.Values()
		b.queue.Clear()

		results := make([]map[TokenTransition]struct{}, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, s := range frontier {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = ScanState(info, vocab, b.keys, s)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, s := range frontier {
			b.record(s, results[i])
		}
		waves++
	}

	slog.Debug("built index", "states", len(b.index), "scanned", len(b.seen), "waves", waves, "workers", workers, "elapsed", time.Since(start))
	return b.index, nil
}
