package object

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123... Each leaf file holds one
// zstd-compressed, type-tagged object; the hash is computed over the
// uncompressed envelope "type len\0content".
type Store struct {
	root string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	// Both constructors only fail on invalid options; none are passed.
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &Store{root: root, enc: enc, dec: dec}
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(string(h)) {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Re-putting identical
// content is a no-op. Writes are atomic: data is written to a temp file,
// synced, and renamed into place, so a successful Write is durably
// retrievable before it returns.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	if !ValidType(objType) {
		return "", fmt.Errorf("object write: unknown type %q", objType)
	}

	envelope := append([]byte(fmt.Sprintf("%s %d\x00", objType, len(data))), data...)
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(s.enc.EncodeAll(envelope, nil)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// Every read re-verifies the digest over the decompressed envelope; a
// disagreement is ErrHashMismatch, never silently returned content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(string(h)) {
		return "", nil, fmt.Errorf("object read %q: malformed hash: %w", h, ErrNotFound)
	}

	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %v: %w", h, err, ErrCorruptObject)
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: no envelope terminator: %w", h, ErrCorruptObject)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typeStr, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("object read %s: invalid header %q: %w", h, header, ErrCorruptObject)
	}
	objType := ObjectType(typeStr)
	if !ValidType(objType) {
		return "", nil, fmt.Errorf("object read %s: unknown type %q: %w", h, typeStr, ErrCorruptObject)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil || length != len(content) {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%q, actual=%d): %w",
			h, lenStr, len(content), ErrCorruptObject)
	}

	if got := HashObject(objType, content); got != h {
		return "", nil, fmt.Errorf("object read %s: content hashes to %s: %w", h, got, ErrHashMismatch)
	}

	return objType, content, nil
}

// ListHashes enumerates every object hash present in the store by walking
// the fan-out layout. Entries whose path does not reassemble into a valid
// hash (temp files, stray data) are skipped.
func (s *Store) ListHashes() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	fanouts, err := os.ReadDir(objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("object list: %w", err)
	}

	var hashes []Hash
	for _, fan := range fanouts {
		if !fan.IsDir() || len(fan.Name()) != 2 {
			continue
		}
		leaves, err := os.ReadDir(filepath.Join(objectsDir, fan.Name()))
		if err != nil {
			return nil, fmt.Errorf("object list %s: %w", fan.Name(), err)
		}
		for _, leaf := range leaves {
			if leaf.IsDir() {
				continue
			}
			h := fan.Name() + leaf.Name()
			if ValidHash(h) {
				hashes = append(hashes, Hash(h))
			}
		}
	}
	return hashes, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.Write(TypeTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q: %w", h, objType, want, ErrCorruptObject)
	}
	return data, nil
}
