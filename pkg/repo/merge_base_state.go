package repo

import (
	"fmt"
	"sync"

	"github.com/siltvcs/silt/pkg/object"
)

// mergeBaseTraversalState memoizes commit reads, generation numbers, and
// resolved merge-base pairs across queries on a single Repo. Generation
// numbers (1 + max parent generation, roots at 1) let the traversal prune
// whole subgraphs that cannot contain a better common ancestor.
type mergeBaseTraversalState struct {
	mu sync.RWMutex

	commits     map[object.Hash]*object.CommitObj
	generations map[object.Hash]uint64
	resolved    map[mergeBasePair]mergeBaseAnswer
}

type mergeBasePair struct {
	low  object.Hash
	high object.Hash
}

type mergeBaseAnswer struct {
	base  object.Hash
	found bool
}

func newMergeBaseTraversalState() *mergeBaseTraversalState {
	return &mergeBaseTraversalState{
		commits:     make(map[object.Hash]*object.CommitObj),
		generations: make(map[object.Hash]uint64),
		resolved:    make(map[mergeBasePair]mergeBaseAnswer),
	}
}

// pairKey canonicalizes the pair so (a,b) and (b,a) share a cache slot.
func pairKey(a, b object.Hash) mergeBasePair {
	if a <= b {
		return mergeBasePair{low: a, high: b}
	}
	return mergeBasePair{low: b, high: a}
}

func (s *mergeBaseTraversalState) loadAnswer(a, b object.Hash) (mergeBaseAnswer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ans, ok := s.resolved[pairKey(a, b)]
	return ans, ok
}

func (s *mergeBaseTraversalState) storeAnswer(a, b, base object.Hash, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[pairKey(a, b)] = mergeBaseAnswer{base: base, found: found}
}

func (s *mergeBaseTraversalState) readCommit(r *Repo, h object.Hash) (*object.CommitObj, error) {
	s.mu.RLock()
	cached, ok := s.commits[h]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	commit, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("find merge base: read commit %s: %w", h, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.commits[h]; exists {
		return existing, nil
	}
	s.commits[h] = commit
	return commit, nil
}

// generation computes (and caches) the generation number of h. The walk
// is iterative so deep linear histories cannot exhaust the goroutine
// stack.
func (s *mergeBaseTraversalState) generation(r *Repo, h object.Hash) (uint64, error) {
	if h == "" {
		return 0, nil
	}

	s.mu.RLock()
	g, ok := s.generations[h]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	inStack := make(map[object.Hash]bool)
	stack := []object.Hash{h}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		s.mu.RLock()
		_, done := s.generations[cur]
		s.mu.RUnlock()
		if done {
			stack = stack[:len(stack)-1]
			delete(inStack, cur)
			continue
		}

		commit, err := s.readCommit(r, cur)
		if err != nil {
			return 0, err
		}

		var maxParent uint64
		pending := false
		for _, p := range commit.Parents {
			if p == "" {
				continue
			}
			s.mu.RLock()
			pg, ok := s.generations[p]
			s.mu.RUnlock()
			if !ok {
				if inStack[p] {
					return 0, fmt.Errorf("find merge base: commit graph cycle at %s", p)
				}
				inStack[p] = true
				stack = append(stack, p)
				pending = true
				continue
			}
			if pg > maxParent {
				maxParent = pg
			}
		}
		if pending {
			continue
		}

		s.mu.Lock()
		s.generations[cur] = maxParent + 1
		s.mu.Unlock()
		stack = stack[:len(stack)-1]
		delete(inStack, cur)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[h], nil
}

// frontierItem orders the bidirectional search frontier by generation,
// highest first, with the hash as a deterministic tie-break.
type frontierItem struct {
	hash       object.Hash
	generation uint64
}

type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].generation == h[j].generation {
		return h[i].hash < h[j].hash
	}
	return h[i].generation > h[j].generation
}

func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) {
	*h = append(*h, x.(frontierItem))
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h frontierHeap) Peek() (frontierItem, bool) {
	if len(h) == 0 {
		return frontierItem{}, false
	}
	return h[0], true
}
