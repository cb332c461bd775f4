package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/siltvcs/silt/pkg/object"
)

// StagingEntry records the staged state of a single file. Size and ModTime
// are a stat cache used to skip rehashing unchanged files; they are an
// optimization, never a correctness input.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode"`
	ModTime  int64       `json:"mod_time"` // unix nanoseconds
	Size     int64       `json:"size"`

	// Conflict stage fields, populated by the merge engine. A conflicted
	// entry records all three variants until the path is re-staged.
	Conflict       bool        `json:"conflict,omitempty"`
	BaseBlobHash   object.Hash `json:"base_blob_hash,omitempty"`
	OursBlobHash   object.Hash `json:"ours_blob_hash,omitempty"`
	TheirsBlobHash object.Hash `json:"theirs_blob_hash,omitempty"`
}

// Staging holds the full staging area (index) for a silt repository: the
// flat path→entry form of the proposed next tree.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

// Paths returns the staged paths in sorted order.
func (s *Staging) Paths() []string {
	paths := make([]string, 0, len(s.Entries))
	for p := range s.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ConflictedPaths returns the sorted paths still carrying conflict stages.
func (s *Staging) ConflictedPaths() []string {
	var paths []string
	for p, e := range s.Entries {
		if e.Conflict {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func (r *Repo) indexPath() string {
	return filepath.Join(r.SiltDir, "index")
}

// ReadStaging loads the staging area from .silt/index. If the file does
// not exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteStaging atomically rewrites .silt/index in full. There are no
// partial index updates.
func (r *Repo) WriteStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.SiltDir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write staging: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write staging: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: close: %w", err)
	}

	if err := os.Rename(tmpName, r.indexPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: rename: %w", err)
	}
	return nil
}

// Add stages the given file paths. Each path is resolved relative to the
// repo root. For each file the content is written as a blob (idempotent
// when unchanged) and the index entry is created or updated with the blob
// hash, normalized mode, and stat cache. Re-staging a conflicted path
// clears its conflict stages.
func (r *Repo) Add(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
		content, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("add: read %q: %w", relPath, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", relPath, err)
		}

		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
		if err != nil {
			return fmt.Errorf("add: write blob %q: %w", relPath, err)
		}

		stg.Entries[relPath] = &StagingEntry{
			Path:     relPath,
			BlobHash: blobHash,
			Mode:     modeFromFileInfo(info),
			ModTime:  info.ModTime().UnixNano(),
			Size:     info.Size(),
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// Unstage reverts index entries to the last-committed state: paths present
// in the HEAD tree go back to the committed blob, paths absent from HEAD
// are dropped from the index. The working tree is untouched.
func (r *Repo) Unstage(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("unstage: %w", err)
	}

	headEntries := r.headTreeEntries()

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("unstage: resolve path %q: %w", p, err)
		}

		committed, inHead := headEntries[relPath]
		if !inHead {
			if _, staged := stg.Entries[relPath]; !staged {
				return fmt.Errorf("unstage: path %q is not staged", relPath)
			}
			delete(stg.Entries, relPath)
			continue
		}

		stg.Entries[relPath] = &StagingEntry{
			Path:     relPath,
			BlobHash: committed.BlobHash,
			Mode:     normalizeFileMode(committed.Mode),
			// No stat cache: the working file may differ from the committed
			// blob, so status must rehash on the next pass.
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	return nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a
// slash-separated path relative to the repository root.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	// A path outside the repo is assumed to already be repo-relative.
	if len(rel) >= 2 && rel[:2] == ".." {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	return filepath.ToSlash(rel), nil
}
