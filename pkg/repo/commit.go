package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/siltvcs/silt/pkg/object"
)

// CommitSigner produces a detached signature over a commit's signing
// payload. The ssh implementation lives in the CLI layer.
type CommitSigner func(payload []byte) (string, error)

// CommitOptions controls optional commit behavior.
type CommitOptions struct {
	// Signer, when non-nil, signs the commit payload and embeds the
	// signature in the commit object.
	Signer CommitSigner

	// AllowEmpty permits a commit whose tree is identical to its first
	// parent's tree.
	AllowEmpty bool
}

// Commit snapshots the staging area into a new commit:
// build the tree from the index, create a commit object pointing at the
// current HEAD commit (plus MERGE_HEAD when concluding a merge), and
// advance the current branch.
func (r *Repo) Commit(message string, opts CommitOptions) (object.Hash, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("commit: empty message")
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if conflicted := stg.ConflictedPaths(); len(conflicted) > 0 {
		return "", fmt.Errorf("commit: unresolved conflicts in %s", strings.Join(conflicted, ", "))
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: nothing staged")
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	headHash, err := r.ResolveRef("HEAD")
	if err == nil {
		parents = append(parents, headHash)
	} else if !errors.Is(err, ErrUnknownRef) {
		return "", fmt.Errorf("commit: resolve HEAD: %w", err)
	}

	mergeHead, hasMergeHead, err := r.MergeHead()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if hasMergeHead {
		parents = append(parents, mergeHead)
	}

	if len(parents) > 0 && !hasMergeHead && !opts.AllowEmpty {
		parentCommit, err := r.Store.ReadCommit(parents[0])
		if err != nil {
			return "", fmt.Errorf("commit: read parent %s: %w", parents[0], err)
		}
		if parentCommit.TreeHash == treeHash {
			return "", fmt.Errorf("commit: no changes since %s", parents[0])
		}
	}

	ident, err := r.Identity()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	commit := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    ident,
		Committer: ident,
		Message:   message,
	}

	if opts.Signer != nil {
		sig, err := opts.Signer(object.SigningPayload(commit))
		if err != nil {
			return "", fmt.Errorf("commit: sign: %w", err)
		}
		commit.Signature = sig
	}

	commitHash, err := r.Store.WriteCommit(commit)
	if err != nil {
		return "", fmt.Errorf("commit: write: %w", err)
	}

	if err := r.advanceHead(commitHash, parents); err != nil {
		return "", err
	}

	if hasMergeHead {
		if err := r.clearMergeState(); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}

	r.Events.Info("commit created",
		"hash", string(commitHash),
		"subject", summarizeMessage(message),
		"tree", string(treeHash),
		"parents", len(parents),
		"signed", commit.Signature != "")
	return commitHash, nil
}

// CommitTree writes a commit object for an existing tree without touching
// the index or any ref. Plumbing counterpart of Commit.
func (r *Repo) CommitTree(treeHash object.Hash, parents []object.Hash, message string) (object.Hash, error) {
	if _, err := r.Store.ReadTree(treeHash); err != nil {
		return "", fmt.Errorf("commit-tree: read tree %s: %w", treeHash, err)
	}
	for _, p := range parents {
		if _, err := r.Store.ReadCommit(p); err != nil {
			return "", fmt.Errorf("commit-tree: read parent %s: %w", p, err)
		}
	}

	ident, err := r.Identity()
	if err != nil {
		return "", fmt.Errorf("commit-tree: %w", err)
	}
	commitHash, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    ident,
		Committer: ident,
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("commit-tree: write: %w", err)
	}
	return commitHash, nil
}

// advanceHead moves the current branch to commitHash, or rewrites HEAD
// directly when detached.
func (r *Repo) advanceHead(commitHash object.Hash, parents []object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("commit: read HEAD: %w", err)
	}

	if strings.HasPrefix(head, "refs/") {
		expectedOld := object.Hash("")
		if len(parents) > 0 {
			expectedOld = parents[0]
		}
		if err := r.UpdateRefCAS(head, commitHash, expectedOld); err != nil {
			return fmt.Errorf("commit: advance %s: %w", head, err)
		}
		return nil
	}

	// Detached HEAD: point it at the new commit directly.
	if err := r.writeHead(string(commitHash)); err != nil {
		return fmt.Errorf("commit: advance detached HEAD: %w", err)
	}
	return nil
}

// MergeHead returns the pending merge's second parent, if a merge is in
// progress.
func (r *Repo) MergeHead() (object.Hash, bool, error) {
	data, err := os.ReadFile(filepath.Join(r.SiltDir, "MERGE_HEAD"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read MERGE_HEAD: %w", err)
	}

	h := object.Hash(strings.TrimSpace(string(data)))
	if !object.ValidHash(string(h)) {
		return "", false, fmt.Errorf("read MERGE_HEAD: malformed hash %q: %w", string(data), object.ErrCorruptObject)
	}
	return h, true, nil
}

func (r *Repo) clearMergeState() error {
	for _, name := range []string{"MERGE_HEAD", "MERGE_MSG"} {
		if err := os.Remove(filepath.Join(r.SiltDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear merge state: remove %s: %w", name, err)
		}
	}
	return nil
}

// summarizeMessage keeps logged events to the commit subject line.
func summarizeMessage(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}
