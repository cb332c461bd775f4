package object

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestWriteRead_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	h, err := s.Write(TypeBlob, []byte("hello world\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	objType, data, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if objType != TypeBlob {
		t.Errorf("type = %q, want %q", objType, TypeBlob)
	}
	if string(data) != "hello world\n" {
		t.Errorf("data = %q, want %q", data, "hello world\n")
	}
}

func TestWrite_Deterministic(t *testing.T) {
	s := newTestStore(t)

	h1, err := s.Write(TypeBlob, []byte("same content"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	h2, err := s.Write(TypeBlob, []byte("same content"))
	if err != nil {
		t.Fatalf("Write (repeat): %v", err)
	}
	if h1 != h2 {
		t.Errorf("identical content produced different hashes: %s vs %s", h1, h2)
	}

	hashes, err := s.ListHashes()
	if err != nil {
		t.Fatalf("ListHashes: %v", err)
	}
	if len(hashes) != 1 {
		t.Errorf("store holds %d objects, want 1", len(hashes))
	}
}

func TestWrite_TypeAffectsHash(t *testing.T) {
	content := []byte("payload")
	if HashObject(TypeBlob, content) == HashObject(TypeCommit, content) {
		t.Error("blob and commit hashes collide for identical payload")
	}
}

func TestRead_NotFound(t *testing.T) {
	s := newTestStore(t)

	missing := HashObject(TypeBlob, []byte("never stored"))
	if _, _, err := s.Read(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read(missing) = %v, want ErrNotFound", err)
	}
}

func TestRead_TamperDetected(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	hA, err := s.Write(TypeBlob, []byte("original content"))
	if err != nil {
		t.Fatalf("Write A: %v", err)
	}
	hB, err := s.Write(TypeBlob, []byte("other content"))
	if err != nil {
		t.Fatalf("Write B: %v", err)
	}

	// Swap B's bytes into A's slot. The file is a valid object, but its
	// content no longer matches the name it is stored under.
	pathA := filepath.Join(dir, "objects", string(hA[:2]), string(hA[2:]))
	pathB := filepath.Join(dir, "objects", string(hB[:2]), string(hB[2:]))
	data, err := os.ReadFile(pathB)
	if err != nil {
		t.Fatalf("read B: %v", err)
	}
	if err := os.WriteFile(pathA, data, 0o644); err != nil {
		t.Fatalf("overwrite A: %v", err)
	}

	if _, _, err := s.Read(hA); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Read(tampered) = %v, want ErrHashMismatch", err)
	}
}

func TestRead_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	h, err := s.Write(TypeBlob, []byte("will be trashed"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	path := filepath.Join(dir, "objects", string(h[:2]), string(h[2:]))
	if err := os.WriteFile(path, []byte("not zstd at all"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if _, _, err := s.Read(h); !errors.Is(err, ErrCorruptObject) {
		t.Errorf("Read(corrupt) = %v, want ErrCorruptObject", err)
	}
}

func TestReadTyped_Mismatch(t *testing.T) {
	s := newTestStore(t)

	h, err := s.WriteBlob(&Blob{Data: []byte("blob data")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	if _, err := s.ReadTree(h); !errors.Is(err, ErrCorruptObject) {
		t.Errorf("ReadTree(blob hash) = %v, want ErrCorruptObject", err)
	}
}
