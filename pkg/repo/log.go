package repo

import (
	"fmt"
	"sort"

	"github.com/siltvcs/silt/pkg/object"
)

// LogEntry pairs a commit with its hash for history listings.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks the first-parent chain starting at the given commit, newest
// first. limit <= 0 means unbounded.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	visited := make(map[object.Hash]bool)
	var entries []LogEntry

	cur := start
	for cur != "" {
		if limit > 0 && len(entries) >= limit {
			break
		}
		if visited[cur] {
			return nil, fmt.Errorf("log: parent cycle at commit %s: %w", cur, object.ErrCorruptObject)
		}
		visited[cur] = true

		commit, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", cur, err)
		}
		entries = append(entries, LogEntry{Hash: cur, Commit: commit})

		if len(commit.Parents) == 0 {
			break
		}
		cur = commit.Parents[0]
	}
	return entries, nil
}

// History walks all parents reachable from start, returning commits
// newest first. Merge commits fan the walk out across every parent.
// Ordering is by committer timestamp descending, with the hash as a
// deterministic tie-break.
func (r *Repo) History(start object.Hash, limit int) ([]LogEntry, error) {
	visited := make(map[object.Hash]bool)
	var entries []LogEntry

	stack := []object.Hash{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur == "" || visited[cur] {
			continue
		}
		visited[cur] = true

		commit, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("history: read commit %s: %w", cur, err)
		}
		entries = append(entries, LogEntry{Hash: cur, Commit: commit})
		stack = append(stack, commit.Parents...)
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].Commit.Committer.When, entries[j].Commit.Committer.When
		if ti != tj {
			return ti > tj
		}
		return entries[i].Hash < entries[j].Hash
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
