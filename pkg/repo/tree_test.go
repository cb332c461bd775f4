package repo

import (
	"testing"

	"github.com/siltvcs/silt/pkg/object"
)

func stagingFromFiles(t *testing.T, r *Repo, files map[string]string) *Staging {
	t.Helper()

	stg := &Staging{Entries: make(map[string]*StagingEntry)}
	for path, content := range files {
		h, err := r.Store.WriteBlob(&object.Blob{Data: []byte(content)})
		if err != nil {
			t.Fatalf("WriteBlob %s: %v", path, err)
		}
		stg.Entries[path] = &StagingEntry{Path: path, BlobHash: h, Mode: object.TreeModeFile}
	}
	return stg
}

func TestBuildTree_DeterministicAcrossOrder(t *testing.T) {
	r, _ := newTestRepo(t)

	files := map[string]string{
		"zebra.txt":     "z\n",
		"alpha.txt":     "a\n",
		"dir/nested.go": "package dir\n",
		"dir/sub/x.txt": "x\n",
	}

	h1, err := r.BuildTree(stagingFromFiles(t, r, files))
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	// Maps iterate in random order; a second pass exercises a different
	// insertion order over the same logical content.
	h2, err := r.BuildTree(stagingFromFiles(t, r, files))
	if err != nil {
		t.Fatalf("BuildTree (repeat): %v", err)
	}

	if h1 != h2 {
		t.Errorf("same content hashed to %s and %s", h1, h2)
	}
}

func TestBuildTree_FlattenInverse(t *testing.T) {
	r, _ := newTestRepo(t)

	files := map[string]string{
		"readme.md":        "hi\n",
		"src/main.go":      "package main\n",
		"src/util/util.go": "package util\n",
	}

	root, err := r.BuildTree(stagingFromFiles(t, r, files))
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	flat, err := r.FlattenTree(root)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(flat) != len(files) {
		t.Fatalf("flattened %d files, want %d", len(flat), len(files))
	}

	for _, f := range flat {
		content, ok := files[f.Path]
		if !ok {
			t.Errorf("unexpected path %q", f.Path)
			continue
		}
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			t.Fatalf("ReadBlob %s: %v", f.Path, err)
		}
		if string(blob.Data) != content {
			t.Errorf("%s = %q, want %q", f.Path, blob.Data, content)
		}
	}
}

func TestBuildTree_FileDirCollision(t *testing.T) {
	r, _ := newTestRepo(t)

	stg := stagingFromFiles(t, r, map[string]string{
		"name":       "file\n",
		"name/inner": "also dir\n",
	})

	if _, err := r.BuildTree(stg); err == nil {
		t.Error("a name that is both file and directory must be rejected")
	}
}

func TestBuildTree_SharedBlobAcrossPaths(t *testing.T) {
	r, _ := newTestRepo(t)

	stg := stagingFromFiles(t, r, map[string]string{
		"copy1.txt": "same\n",
		"copy2.txt": "same\n",
	})

	root, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	tree, err := r.Store.ReadTree(root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Entries) != 2 {
		t.Fatalf("tree has %d entries, want 2", len(tree.Entries))
	}
	if tree.Entries[0].Hash != tree.Entries[1].Hash {
		t.Error("identical content must share one blob across both entries")
	}
}
