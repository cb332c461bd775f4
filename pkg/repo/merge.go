package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/siltvcs/silt/pkg/diff3"
	"github.com/siltvcs/silt/pkg/object"
)

// FileMergeReport records the merge outcome for a single path.
type FileMergeReport struct {
	Path          string
	Status        string // "clean", "conflict", "added", "deleted"
	ConflictCount int
}

// MergeReport is the overall result of a repository-level merge.
type MergeReport struct {
	Files           []FileMergeReport
	HasConflicts    bool
	TotalConflicts  int
	FastForward     bool
	AlreadyUpToDate bool
	Base            object.Hash
	MergeCommit     object.Hash // set when the merge commits (clean or fast-forward)
}

type mergeConflictState struct {
	path       string
	baseHash   object.Hash
	oursHash   object.Hash
	theirsHash object.Hash
	mode       string
}

type mergedFile struct {
	path    string
	content []byte
	mode    string
}

// Merge merges the named branch into the current HEAD.
//
// Outcomes:
//   - theirs is an ancestor of HEAD: no-op, AlreadyUpToDate.
//   - HEAD is an ancestor of theirs: fast-forward, the ref moves and no
//     new objects are written.
//   - diverged histories: per-path three-way merge against the merge
//     base. A clean merge auto-commits with two parents; conflicts leave
//     marker files in the working tree, three blob stages in the index,
//     and MERGE_HEAD recording the pending second parent.
func (r *Repo) Merge(branchName string) (*MergeReport, error) {
	if _, pending, err := r.MergeHead(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	} else if pending {
		return nil, fmt.Errorf("merge: a merge is already in progress (resolve and conclude it first)")
	}
	if err := r.ensureClean(nil); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge: resolve HEAD: %w", err)
	}
	branchHash, err := r.ResolveRef("refs/heads/" + branchName)
	if err != nil {
		return nil, fmt.Errorf("merge: resolve branch %q: %w", branchName, err)
	}

	baseHash, err := r.FindMergeBase(headHash, branchHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	report := &MergeReport{Base: baseHash}

	if baseHash == branchHash {
		report.AlreadyUpToDate = true
		return report, nil
	}

	if baseHash == headHash {
		if err := r.fastForward(headHash, branchHash); err != nil {
			return nil, fmt.Errorf("merge: fast-forward to %q: %w", branchName, err)
		}
		report.FastForward = true
		report.MergeCommit = branchHash
		r.Events.Info("merge fast-forward", "branch", branchName, "to", string(branchHash))
		return report, nil
	}

	headCommit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, fmt.Errorf("merge: read head commit: %w", err)
	}
	branchCommit, err := r.Store.ReadCommit(branchHash)
	if err != nil {
		return nil, fmt.Errorf("merge: read branch commit: %w", err)
	}

	oursFiles, err := r.FlattenTree(headCommit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten ours tree: %w", err)
	}
	theirsFiles, err := r.FlattenTree(branchCommit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten theirs tree: %w", err)
	}

	// No merge base is possible for histories that started independently;
	// an empty base tree treats every path as added on its side.
	var baseFiles []TreeFileEntry
	if baseHash != "" {
		baseCommit, err := r.Store.ReadCommit(baseHash)
		if err != nil {
			return nil, fmt.Errorf("merge: read base commit: %w", err)
		}
		baseFiles, err = r.FlattenTree(baseCommit.TreeHash)
		if err != nil {
			return nil, fmt.Errorf("merge: flatten base tree: %w", err)
		}
	}

	baseMap := indexByPath(baseFiles)
	oursMap := indexByPath(oursFiles)
	theirsMap := indexByPath(theirsFiles)

	var merged []mergedFile
	var conflicted []mergeConflictState
	var deleted []string

	for _, path := range collectAllPaths(baseMap, oursMap, theirsMap) {
		base, inBase := baseMap[path]
		ours, inOurs := oursMap[path]
		theirs, inTheirs := theirsMap[path]

		switch {
		case inOurs && inTheirs:
			// Present on both sides: content-level three-way merge. A
			// missing base entry degrades to an empty base.
			if !inBase {
				base = TreeFileEntry{}
			}
			fr, files, cf, err := r.mergePath(path, base, ours, theirs)
			if err != nil {
				return nil, fmt.Errorf("merge file %q: %w", path, err)
			}
			report.Files = append(report.Files, fr)
			merged = append(merged, files...)
			if fr.Status == "conflict" {
				report.HasConflicts = true
				report.TotalConflicts += fr.ConflictCount
				conflicted = append(conflicted, *cf)
			}

		case inBase && inOurs && !inTheirs:
			// Deleted on their side.
			if ours.BlobHash == base.BlobHash {
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "deleted"})
				deleted = append(deleted, path)
				continue
			}
			// Modify vs delete never resolves silently.
			oursData, err := r.readBlobData(ours.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge read ours %q: %w", path, err)
			}
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "conflict", ConflictCount: 1})
			report.HasConflicts = true
			report.TotalConflicts++
			merged = append(merged, mergedFile{
				path:    path,
				content: renderWholeFileConflict(oursData, nil),
				mode:    normalizeFileMode(ours.Mode),
			})
			conflicted = append(conflicted, mergeConflictState{
				path:     path,
				baseHash: base.BlobHash,
				oursHash: ours.BlobHash,
				mode:     normalizeFileMode(ours.Mode),
			})

		case inBase && !inOurs && inTheirs:
			// Deleted on our side.
			if theirs.BlobHash == base.BlobHash {
				report.Files = append(report.Files, FileMergeReport{Path: path, Status: "deleted"})
				deleted = append(deleted, path)
				continue
			}
			theirsData, err := r.readBlobData(theirs.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge read theirs %q: %w", path, err)
			}
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "conflict", ConflictCount: 1})
			report.HasConflicts = true
			report.TotalConflicts++
			merged = append(merged, mergedFile{
				path:    path,
				content: renderWholeFileConflict(nil, theirsData),
				mode:    normalizeFileMode(theirs.Mode),
			})
			conflicted = append(conflicted, mergeConflictState{
				path:       path,
				baseHash:   base.BlobHash,
				theirsHash: theirs.BlobHash,
				mode:       normalizeFileMode(theirs.Mode),
			})

		case !inBase && inOurs:
			// New on our side only.
			content, err := r.readBlobData(ours.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge read %q: %w", path, err)
			}
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "added"})
			merged = append(merged, mergedFile{path: path, content: content, mode: normalizeFileMode(ours.Mode)})

		case !inBase && inTheirs:
			// New on their side only.
			content, err := r.readBlobData(theirs.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("merge read %q: %w", path, err)
			}
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "added"})
			merged = append(merged, mergedFile{path: path, content: content, mode: normalizeFileMode(theirs.Mode)})

		default:
			// Deleted on both sides.
			report.Files = append(report.Files, FileMergeReport{Path: path, Status: "deleted"})
			deleted = append(deleted, path)
		}
	}

	if err := r.applyMergedFiles(merged, deleted); err != nil {
		return nil, err
	}

	if !report.HasConflicts {
		mergeHash, err := r.commitCleanMerge(branchName, headHash, branchHash, merged, deleted)
		if err != nil {
			return nil, err
		}
		report.MergeCommit = mergeHash
		r.Events.Info("merge committed", "branch", branchName, "commit", string(mergeHash))
		return report, nil
	}

	if err := r.stageConflictState(merged, conflicted, deleted); err != nil {
		return nil, fmt.Errorf("merge: stage conflicts: %w", err)
	}
	if err := r.writeMergeState(branchHash, branchName); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	r.Events.Info("merge conflicts detected",
		"branch", branchName,
		"conflicted_files", len(conflicted),
		"conflicts", report.TotalConflicts)
	return report, nil
}

// ConcludeMerge finishes a conflicted merge after every conflicted path
// has been resolved and re-staged. An empty message falls back to the
// recorded MERGE_MSG.
func (r *Repo) ConcludeMerge(message string) (object.Hash, error) {
	_, pending, err := r.MergeHead()
	if err != nil {
		return "", fmt.Errorf("conclude merge: %w", err)
	}
	if !pending {
		return "", fmt.Errorf("conclude merge: no merge in progress")
	}

	if strings.TrimSpace(message) == "" {
		data, err := os.ReadFile(filepath.Join(r.SiltDir, "MERGE_MSG"))
		if err != nil {
			return "", fmt.Errorf("conclude merge: no message and no MERGE_MSG: %w", err)
		}
		message = strings.TrimSpace(string(data))
	}

	// Commit picks up MERGE_HEAD as the second parent and clears the
	// merge state on success.
	return r.Commit(message, CommitOptions{})
}

// AbortMerge discards a conflicted merge: the working tree and index are
// restored to HEAD and the pending merge state is removed.
func (r *Repo) AbortMerge() error {
	_, pending, err := r.MergeHead()
	if err != nil {
		return fmt.Errorf("abort merge: %w", err)
	}
	if !pending {
		return fmt.Errorf("abort merge: no merge in progress")
	}

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return fmt.Errorf("abort merge: resolve HEAD: %w", err)
	}
	headCommit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return fmt.Errorf("abort merge: read HEAD commit: %w", err)
	}
	if err := r.materializeCommitTree(headCommit.TreeHash); err != nil {
		return fmt.Errorf("abort merge: %w", err)
	}
	return r.clearMergeState()
}

// fastForward moves the current branch to target and syncs the working
// tree. Every object already exists, so nothing is written to the store.
func (r *Repo) fastForward(from, to object.Hash) error {
	commit, err := r.Store.ReadCommit(to)
	if err != nil {
		return fmt.Errorf("read target commit: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}
	if strings.HasPrefix(head, "refs/") {
		if err := r.UpdateRefCAS(head, to, from); err != nil {
			return err
		}
	} else {
		if err := r.writeHead(string(to)); err != nil {
			return err
		}
	}

	return r.materializeCommitTree(commit.TreeHash)
}

// mergePath merges a single path present on both sides. Binary content
// conflicts are materialized as whole-file sidecars (<path>.ours and
// <path>.theirs) next to the kept ours version.
func (r *Repo) mergePath(path string, base, ours, theirs TreeFileEntry) (FileMergeReport, []mergedFile, *mergeConflictState, error) {
	mode := normalizeFileMode(ours.Mode)

	// Trivial resolutions by blob identity.
	var winner object.Hash
	switch {
	case ours.BlobHash == theirs.BlobHash:
		winner = ours.BlobHash
	case base.BlobHash != "" && ours.BlobHash == base.BlobHash:
		winner = theirs.BlobHash
		mode = normalizeFileMode(theirs.Mode)
	case base.BlobHash != "" && theirs.BlobHash == base.BlobHash:
		winner = ours.BlobHash
	}
	if winner != "" {
		content, err := r.readBlobData(winner)
		if err != nil {
			return FileMergeReport{}, nil, nil, err
		}
		return FileMergeReport{Path: path, Status: "clean"},
			[]mergedFile{{path: path, content: content, mode: mode}}, nil, nil
	}

	var baseData []byte
	if base.BlobHash != "" {
		var err error
		baseData, err = r.readBlobData(base.BlobHash)
		if err != nil {
			return FileMergeReport{}, nil, nil, err
		}
	}
	oursData, err := r.readBlobData(ours.BlobHash)
	if err != nil {
		return FileMergeReport{}, nil, nil, err
	}
	theirsData, err := r.readBlobData(theirs.BlobHash)
	if err != nil {
		return FileMergeReport{}, nil, nil, err
	}

	conflictState := &mergeConflictState{
		path:       path,
		baseHash:   base.BlobHash,
		oursHash:   ours.BlobHash,
		theirsHash: theirs.BlobHash,
		mode:       mode,
	}

	if isBinaryData(baseData) || isBinaryData(oursData) || isBinaryData(theirsData) {
		// No line merge for binary content: keep ours at the path and put
		// both full versions beside it for manual resolution.
		files := []mergedFile{
			{path: path, content: oursData, mode: mode},
			{path: path + ".ours", content: oursData, mode: mode},
			{path: path + ".theirs", content: theirsData, mode: normalizeFileMode(theirs.Mode)},
		}
		return FileMergeReport{Path: path, Status: "conflict", ConflictCount: 1}, files, conflictState, nil
	}

	result := diff3.Merge(baseData, oursData, theirsData)
	fr := FileMergeReport{Path: path, ConflictCount: result.Conflicts}
	if result.HasConflicts {
		fr.Status = "conflict"
	} else {
		fr.Status = "clean"
	}
	files := []mergedFile{{path: path, content: result.Merged, mode: mode}}
	if !result.HasConflicts {
		return fr, files, nil, nil
	}
	return fr, files, conflictState, nil
}

func (r *Repo) applyMergedFiles(merged []mergedFile, deleted []string) error {
	for _, mf := range merged {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(mf.path))
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return fmt.Errorf("merge: mkdir for %q: %w", mf.path, err)
		}
		if err := os.WriteFile(absPath, mf.content, filePermFromMode(mf.mode)); err != nil {
			return fmt.Errorf("merge: write %q: %w", mf.path, err)
		}
	}

	for _, path := range deleted {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("merge: remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}
	return nil
}

func (r *Repo) commitCleanMerge(branchName string, headHash, branchHash object.Hash, merged []mergedFile, deleted []string) (object.Hash, error) {
	var pathsToAdd []string
	for _, mf := range merged {
		pathsToAdd = append(pathsToAdd, mf.path)
	}
	if len(pathsToAdd) > 0 {
		if err := r.Add(pathsToAdd); err != nil {
			return "", fmt.Errorf("merge: stage: %w", err)
		}
	}

	if len(deleted) > 0 {
		stg, err := r.ReadStaging()
		if err != nil {
			return "", fmt.Errorf("merge: read staging: %w", err)
		}
		for _, p := range deleted {
			delete(stg.Entries, p)
		}
		if err := r.WriteStaging(stg); err != nil {
			return "", fmt.Errorf("merge: write staging: %w", err)
		}
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("merge commit: %w", err)
	}
	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("merge commit: %w", err)
	}

	ident, err := r.Identity()
	if err != nil {
		return "", fmt.Errorf("merge commit: %w", err)
	}

	commitHash, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   []object.Hash{headHash, branchHash},
		Author:    ident,
		Committer: ident,
		Message:   fmt.Sprintf("Merge branch '%s'", branchName),
	})
	if err != nil {
		return "", fmt.Errorf("merge commit: write: %w", err)
	}

	if err := r.advanceHead(commitHash, []object.Hash{headHash, branchHash}); err != nil {
		return "", fmt.Errorf("merge commit: %w", err)
	}
	return commitHash, nil
}

// stageConflictState writes the index for a conflicted merge. The index
// holds the proposed next tree, so cleanly merged and added paths are
// staged at their merged blobs and deletions are dropped; only conflicted
// paths carry the three blob stages. The staged entry's own blob for a
// conflicted path is the marker file currently on disk so status reflects
// the unresolved state.
func (r *Repo) stageConflictState(merged []mergedFile, conflicted []mergeConflictState, deleted []string) error {
	conflictPaths := make(map[string]bool, len(conflicted))
	for _, cf := range conflicted {
		conflictPaths[cf.path] = true
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("read staging: %w", err)
	}

	for _, p := range deleted {
		delete(stg.Entries, p)
	}

	for _, mf := range merged {
		if conflictPaths[mf.path] || isConflictSidecar(mf.path, conflictPaths) {
			continue
		}

		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: mf.content})
		if err != nil {
			return fmt.Errorf("write merged blob %q: %w", mf.path, err)
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(mf.path))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat merged file %q: %w", mf.path, err)
		}

		stg.Entries[mf.path] = &StagingEntry{
			Path:     mf.path,
			BlobHash: blobHash,
			Mode:     normalizeFileMode(mf.mode),
			ModTime:  info.ModTime().UnixNano(),
			Size:     info.Size(),
		}
	}

	for _, cf := range conflicted {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(cf.path))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat conflicted file %q: %w", cf.path, err)
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("read conflicted file %q: %w", cf.path, err)
		}

		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: data})
		if err != nil {
			return fmt.Errorf("write conflicted blob %q: %w", cf.path, err)
		}

		stg.Entries[cf.path] = &StagingEntry{
			Path:           cf.path,
			BlobHash:       blobHash,
			Mode:           normalizeFileMode(cf.mode),
			ModTime:        info.ModTime().UnixNano(),
			Size:           info.Size(),
			Conflict:       true,
			BaseBlobHash:   cf.baseHash,
			OursBlobHash:   cf.oursHash,
			TheirsBlobHash: cf.theirsHash,
		}
	}

	return r.WriteStaging(stg)
}

// isConflictSidecar reports whether path is a .ours/.theirs companion of
// a conflicted path. Sidecars stay out of the index; they exist only for
// manual resolution.
func isConflictSidecar(path string, conflictPaths map[string]bool) bool {
	if base, ok := strings.CutSuffix(path, ".ours"); ok && conflictPaths[base] {
		return true
	}
	if base, ok := strings.CutSuffix(path, ".theirs"); ok && conflictPaths[base] {
		return true
	}
	return false
}

// writeMergeState records the pending second parent and default commit
// message for a conflicted merge.
func (r *Repo) writeMergeState(branchHash object.Hash, branchName string) error {
	mergeHeadPath := filepath.Join(r.SiltDir, "MERGE_HEAD")
	if err := os.WriteFile(mergeHeadPath, []byte(string(branchHash)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write MERGE_HEAD: %w", err)
	}
	msg := fmt.Sprintf("Merge branch '%s'\n", branchName)
	if err := os.WriteFile(filepath.Join(r.SiltDir, "MERGE_MSG"), []byte(msg), 0o644); err != nil {
		return fmt.Errorf("write MERGE_MSG: %w", err)
	}
	return nil
}

// renderWholeFileConflict brackets full file contents with conflict
// markers for delete-vs-modify cases, where there is no line-level merge
// to attempt. A nil side renders as an empty region.
func renderWholeFileConflict(ours, theirs []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< " + diff3.LabelOurs + "\n")
	buf.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirs)
	if len(theirs) > 0 && theirs[len(theirs)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> " + diff3.LabelTheirs + "\n")
	return buf.Bytes()
}

// isBinaryData applies the NUL-byte heuristic over the leading 8000
// bytes.
func isBinaryData(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

func (r *Repo) readBlobData(h object.Hash) ([]byte, error) {
	blob, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	return blob.Data, nil
}

func indexByPath(entries []TreeFileEntry) map[string]TreeFileEntry {
	m := make(map[string]TreeFileEntry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}

// collectAllPaths returns the sorted union of paths across the three
// trees.
func collectAllPaths(base, ours, theirs map[string]TreeFileEntry) []string {
	seen := make(map[string]bool)
	for p := range base {
		seen[p] = true
	}
	for p := range ours {
		seen[p] = true
	}
	for p := range theirs {
		seen[p] = true
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
