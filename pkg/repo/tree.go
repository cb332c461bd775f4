package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/siltvcs/silt/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	BlobHash object.Hash
	Mode     string
}

// BuildTree converts the flat staging entries into the nested tree
// hierarchy, writing TreeObj objects to the store bottom-up and returning
// the root hash.
//
// Identical (path, content, mode) sets always yield an identical root hash
// regardless of construction order: grouping, sorting, and encoding are
// all canonical. A directory with no files under it simply never appears;
// no empty tree is persisted.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	return r.buildTreeDir(s, "")
}

func (r *Repo) buildTreeDir(s *Staging, prefix string) (object.Hash, error) {
	// Collect direct children: files and subdirectory names.
	files := make(map[string]*StagingEntry)
	subdirs := make(map[string]struct{})

	for p, entry := range s.Entries {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			files[rel] = entry
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		// A name cannot be both a file and a directory.
		if _, isFile := files[name]; isFile {
			return "", fmt.Errorf("build tree: %q is both a file and a directory under %q", name, prefix)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []object.TreeEntry
	for _, name := range names {
		if entry, isFile := files[name]; isFile {
			entries = append(entries, object.TreeEntry{
				Mode: normalizeFileMode(entry.Mode),
				Type: object.TypeBlob,
				Hash: entry.BlobHash,
				Name: name,
			})
		} else {
			childPrefix := name
			if prefix != "" {
				childPrefix = prefix + "/" + name
			}
			subHash, err := r.buildTreeDir(s, childPrefix)
			if err != nil {
				return "", err
			}
			entries = append(entries, object.TreeEntry{
				Mode: object.TreeModeDir,
				Type: object.TypeTree,
				Hash: subHash,
				Name: name,
			})
		}
	}

	treeObj := &object.TreeObj{Entries: entries}
	h, err := r.Store.WriteTree(treeObj)
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full slash-separated paths. This is the exact inverse of
// BuildTree's grouping.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.Type == object.TypeTree {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path:     fullPath,
				BlobHash: entry.Hash,
				Mode:     entry.Mode,
			})
		}
	}
	return result, nil
}
