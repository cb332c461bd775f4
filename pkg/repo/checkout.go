package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/siltvcs/silt/pkg/object"
)

// Checkout switches the working directory to the state of the target.
// The target can be a branch name or a raw commit hash.
//
// Algorithm:
//  1. Resolve target: branch name first, then raw hash.
//  2. Read the target commit, flatten its tree.
//  3. Refuse if the working tree has uncommitted changes, or an untracked
//     file collides with a differing target path (never silently
//     overwrite local edits).
//  4. Remove all tracked files (current HEAD tree + staging).
//  5. Materialize the target tree with normalized permissions.
//  6. Rewrite the index to match the new tree.
//  7. Rewrite HEAD (symbolic for a branch, raw hash for detached).
func (r *Repo) Checkout(target string) error {
	isBranch := false
	var targetHash object.Hash

	branchHash, err := r.ResolveRef("refs/heads/" + target)
	if err == nil {
		targetHash = branchHash
		isBranch = true
	} else if !errors.Is(err, ErrUnknownRef) {
		return fmt.Errorf("checkout: %w", err)
	} else {
		targetHash = object.Hash(target)
	}

	commit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("checkout: cannot read commit %s: %w", targetHash, err)
	}

	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: flatten target tree: %w", err)
	}
	if err := r.ensureClean(targetFiles); err != nil {
		return fmt.Errorf("checkout %q: %w", target, err)
	}

	if err := r.materializeCommitTree(commit.TreeHash); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	// 7. Update HEAD.
	var headContent string
	if isBranch {
		headContent = "ref: refs/heads/" + target
	} else {
		headContent = string(targetHash)
	}
	if err := r.writeHead(headContent); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	r.Events.Info("checkout", "target", target, "commit", string(targetHash), "detached", !isBranch)
	return nil
}

// materializeCommitTree replaces the working tree and index with the
// contents of the given tree: removes all currently tracked files, writes
// every file from the tree with normalized permissions, and rebuilds the
// staging index with a fresh stat cache.
func (r *Repo) materializeCommitTree(treeHash object.Hash) error {
	targetFiles, err := r.FlattenTree(treeHash)
	if err != nil {
		return fmt.Errorf("flatten target tree: %w", err)
	}

	for path := range r.trackedFiles() {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))

		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return fmt.Errorf("mkdir for %q: %w", f.Path, err)
		}

		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("read blob for %q: %w", f.Path, err)
		}

		if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return fmt.Errorf("write %q: %w", f.Path, err)
		}
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry, len(targetFiles))}
	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", f.Path, err)
		}

		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			BlobHash: f.BlobHash,
			Mode:     normalizeFileMode(f.Mode),
			ModTime:  info.ModTime().UnixNano(),
			Size:     info.Size(),
		}
	}
	return r.WriteStaging(stg)
}

// ensureClean checks that the working tree has no uncommitted changes,
// failing with ErrWouldOverwrite naming the first offending path.
// Untracked files are tolerated unless the target (a flattened tree, nil
// when there is none) would write different content over one of them.
func (r *Repo) ensureClean(target []TreeFileEntry) error {
	targetByPath := indexByPath(target)

	entries, err := r.Status()
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}

	for _, e := range entries {
		if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
			if e.IndexStatus == StatusUntracked && e.WorkStatus == StatusUntracked {
				if !r.targetWouldClobber(e.Path, targetByPath) {
					continue
				}
			}
			return fmt.Errorf("file %q has uncommitted changes: %w", e.Path, ErrWouldOverwrite)
		}
	}
	return nil
}

// targetWouldClobber reports whether materializing the target tree would
// replace an untracked working-tree file with different content. An
// identical blob at the path is harmless.
func (r *Repo) targetWouldClobber(path string, target map[string]TreeFileEntry) bool {
	entry, ok := target[path]
	if !ok {
		return false
	}
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(path)))
	if err != nil {
		return true
	}
	return object.HashObject(object.TypeBlob, data) != entry.BlobHash
}

// trackedFiles returns the set of all currently tracked file paths, merged
// from the HEAD tree and the staging index.
func (r *Repo) trackedFiles() map[string]bool {
	files := make(map[string]bool)

	for path := range r.headTreeEntries() {
		files[path] = true
	}

	stg, err := r.ReadStaging()
	if err == nil {
		for path := range stg.Entries {
			files[path] = true
		}
	}

	return files
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir) {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}

		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
