package repo

import (
	"container/heap"
	"fmt"

	"github.com/siltvcs/silt/pkg/object"
)

const (
	maxMergeBaseSteps = 1_000_000
	maxMergeBaseDepth = 1_000_000
)

// Test hooks. Production always runs with the hard maximums; tests may
// only tighten these.
var (
	mergeBaseStepsLimit = maxMergeBaseSteps
	mergeBaseDepthLimit = maxMergeBaseDepth
)

func mergeBaseLimits() (steps, depth int) {
	steps = clampTraversalLimit(mergeBaseStepsLimit, maxMergeBaseSteps)
	depth = clampTraversalLimit(mergeBaseDepthLimit, maxMergeBaseDepth)
	return steps, depth
}

func clampTraversalLimit(limit, hardMax int) int {
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func stepsLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
}

func depthLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum depth (%d)", limit)
}

// FindMergeBase returns the best common ancestor of two commits: the
// candidate with the highest generation number, then the lexicographically
// smallest hash when generations tie. Disjoint histories return the empty
// hash with no error.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	state := r.getMergeTraversalState()
	if cached, ok := state.loadAnswer(a, b); ok {
		if cached.found {
			return cached.base, nil
		}
		return "", nil
	}

	genA, err := state.generation(r, a)
	if err != nil {
		return "", err
	}
	genB, err := state.generation(r, b)
	if err != nil {
		return "", err
	}

	// Fast path: one side contains the other. Try the lower-generation
	// side as ancestor first since a higher generation can never be one.
	type ancestryCheck struct {
		anc, desc       object.Hash
		genAnc, genDesc uint64
	}
	checks := []ancestryCheck{
		{a, b, genA, genB},
		{b, a, genB, genA},
	}
	if genA > genB {
		checks[0], checks[1] = checks[1], checks[0]
	}
	for _, c := range checks {
		ok, err := r.isAncestor(state, c.anc, c.desc, c.genAnc, c.genDesc)
		if err != nil {
			return "", err
		}
		if ok {
			state.storeAnswer(a, b, c.anc, true)
			return c.anc, nil
		}
	}

	base, found, err := r.findMergeBasePruned(state, a, b, genA, genB)
	if err != nil {
		return "", err
	}
	state.storeAnswer(a, b, base, found)
	if !found {
		return "", nil
	}
	return base, nil
}

// IsAncestor reports whether ancestor is reachable from descendant via
// parent edges. Used for fast-forward detection.
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	state := r.getMergeTraversalState()
	genAnc, err := state.generation(r, ancestor)
	if err != nil {
		return false, err
	}
	genDesc, err := state.generation(r, descendant)
	if err != nil {
		return false, err
	}
	return r.isAncestor(state, ancestor, descendant, genAnc, genDesc)
}

func (r *Repo) isAncestor(state *mergeBaseTraversalState, ancestor, descendant object.Hash, genAncestor, genDescendant uint64) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	// An ancestor always has a strictly lower generation.
	if genAncestor > genDescendant {
		return false, nil
	}

	maxSteps, maxDepth := mergeBaseLimits()
	visited := map[object.Hash]struct{}{descendant: {}}

	type queueItem struct {
		hash  object.Hash
		depth int
	}
	queue := []queueItem{{hash: descendant}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps > maxSteps {
			return false, stepsLimitError(maxSteps)
		}
		if item.depth > maxDepth {
			return false, depthLimitError(maxDepth)
		}

		if item.hash == ancestor {
			return true, nil
		}

		gen, err := state.generation(r, item.hash)
		if err != nil {
			return false, err
		}
		// Nothing at or below the ancestor's generation can reach it.
		if gen <= genAncestor {
			continue
		}

		commit, err := state.readCommit(r, item.hash)
		if err != nil {
			return false, err
		}
		for _, p := range commit.Parents {
			if p == "" {
				continue
			}
			if _, seen := visited[p]; seen {
				continue
			}
			pg, err := state.generation(r, p)
			if err != nil {
				return false, err
			}
			if pg < genAncestor {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, queueItem{hash: p, depth: item.depth + 1})
		}
	}
	return false, nil
}

// findMergeBasePruned runs a bidirectional best-first search over the
// ancestries of a and b, always expanding the frontier with the highest
// generation. Once a common commit is found, frontiers whose top
// generation falls below the best candidate cannot improve it, so the
// search stops.
func (r *Repo) findMergeBasePruned(state *mergeBaseTraversalState, a, b object.Hash, genA, genB uint64) (object.Hash, bool, error) {
	maxSteps, maxDepth := mergeBaseLimits()

	visitedA := map[object.Hash]struct{}{a: {}}
	visitedB := map[object.Hash]struct{}{b: {}}
	depthA := map[object.Hash]int{a: 0}
	depthB := map[object.Hash]int{b: 0}

	queueA := frontierHeap{{hash: a, generation: genA}}
	queueB := frontierHeap{{hash: b, generation: genB}}
	heap.Init(&queueA)
	heap.Init(&queueB)

	best := object.Hash("")
	var bestGen uint64
	steps := 0

	for queueA.Len() > 0 || queueB.Len() > 0 {
		if best != "" {
			topA, okA := queueA.Peek()
			topB, okB := queueB.Peek()
			if (!okA || topA.generation < bestGen) && (!okB || topB.generation < bestGen) {
				break
			}
		}

		fromA := false
		switch {
		case queueA.Len() == 0:
			fromA = false
		case queueB.Len() == 0:
			fromA = true
		default:
			topA, topB := queueA[0], queueB[0]
			switch {
			case topA.generation > topB.generation:
				fromA = true
			case topA.generation < topB.generation:
				fromA = false
			default:
				fromA = topA.hash <= topB.hash
			}
		}

		var item frontierItem
		if fromA {
			item = heap.Pop(&queueA).(frontierItem)
		} else {
			item = heap.Pop(&queueB).(frontierItem)
		}

		steps++
		if steps > maxSteps {
			return "", false, stepsLimitError(maxSteps)
		}
		if best != "" && item.generation < bestGen {
			continue
		}

		var itemDepth int
		if fromA {
			itemDepth = depthA[item.hash]
		} else {
			itemDepth = depthB[item.hash]
		}
		if itemDepth > maxDepth {
			return "", false, depthLimitError(maxDepth)
		}

		otherVisited := visitedB
		if !fromA {
			otherVisited = visitedA
		}
		if _, seen := otherVisited[item.hash]; seen {
			best, bestGen = betterMergeBase(best, bestGen, item.hash, item.generation)
		}

		commit, err := state.readCommit(r, item.hash)
		if err != nil {
			return "", false, err
		}

		for _, p := range commit.Parents {
			if p == "" {
				continue
			}

			pg, err := state.generation(r, p)
			if err != nil {
				return "", false, err
			}
			if best != "" && pg < bestGen {
				continue
			}

			childDepth := itemDepth + 1
			if childDepth > maxDepth {
				return "", false, depthLimitError(maxDepth)
			}

			if fromA {
				if _, seen := visitedA[p]; seen {
					continue
				}
				visitedA[p] = struct{}{}
				depthA[p] = childDepth
				heap.Push(&queueA, frontierItem{hash: p, generation: pg})
				if _, seen := visitedB[p]; seen {
					best, bestGen = betterMergeBase(best, bestGen, p, pg)
				}
			} else {
				if _, seen := visitedB[p]; seen {
					continue
				}
				visitedB[p] = struct{}{}
				depthB[p] = childDepth
				heap.Push(&queueB, frontierItem{hash: p, generation: pg})
				if _, seen := visitedA[p]; seen {
					best, bestGen = betterMergeBase(best, bestGen, p, pg)
				}
			}
		}
	}

	if best == "" {
		return "", false, nil
	}
	return best, true, nil
}

// betterMergeBase keeps the candidate with the higher generation; equal
// generations break ties toward the smaller hash so results never depend
// on traversal order.
func betterMergeBase(best object.Hash, bestGen uint64, candidate object.Hash, candidateGen uint64) (object.Hash, uint64) {
	switch {
	case best == "":
		return candidate, candidateGen
	case candidateGen > bestGen:
		return candidate, candidateGen
	case candidateGen == bestGen && candidate < best:
		return candidate, candidateGen
	default:
		return best, bestGen
	}
}
