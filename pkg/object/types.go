package object

import "fmt"

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

// ValidType reports whether t is one of the known object types. Decoders
// reject anything else as corrupt rather than guessing.
func ValidType(t ObjectType) bool {
	switch t {
	case TypeBlob, TypeTree, TypeCommit:
		return true
	}
	return false
}

const (
	// Tree mode constants. The set is closed: every entry is a directory,
	// a regular file, or an executable regular file.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object: (mode, type, hash, name).
type TreeEntry struct {
	Mode string
	Type ObjectType // TypeBlob or TypeTree
	Hash Hash
	Name string
}

// TreeObj holds the entries of one directory level, sorted by Name.
type TreeObj struct {
	Entries []TreeEntry
}

// Entry returns the entry with the given name, or nil.
func (t *TreeObj) Entry(name string) *TreeEntry {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i]
		}
	}
	return nil
}

// Ident is a commit identity with its timestamp: "Name <email> unix tz".
type Ident struct {
	Name  string
	Email string
	When  int64  // unix seconds
	TZ    string // e.g. "+0000"
}

// String renders the canonical single-line form used in commit headers.
func (id Ident) String() string {
	tz := id.TZ
	if tz == "" {
		tz = "+0000"
	}
	return fmt.Sprintf("%s <%s> %d %s", id.Name, id.Email, id.When, tz)
}

// CommitObj represents a commit pointing at one tree snapshot.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash // in caller-supplied order; order is significant
	Author    Ident
	Committer Ident
	Signature string // optional, excluded from the signing payload
	Message   string
}
