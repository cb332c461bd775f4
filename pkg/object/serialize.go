package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted byte-wise by Name so
// that two snapshots with identical structure and content hash identically
// regardless of construction order. Each entry is one line:
//
//	mode type hash<TAB>name
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	prev := ""
	for i, e := range sorted {
		if e.Name == "" || strings.ContainsAny(e.Name, "/\t\n") {
			return nil, fmt.Errorf("marshal tree: invalid entry name %q", e.Name)
		}
		if i > 0 && e.Name == prev {
			return nil, fmt.Errorf("marshal tree: duplicate entry name %q", e.Name)
		}
		prev = e.Name

		mode, typ, err := normalizeEntryKind(e)
		if err != nil {
			return nil, fmt.Errorf("marshal tree: entry %q: %w", e.Name, err)
		}
		fmt.Fprintf(&buf, "%s %s %s\t%s\n", mode, typ, e.Hash, e.Name)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a TreeObj from its serialized form. Any deviation
// from the canonical grammar is ErrCorruptObject.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}

	prev := ""
	for _, line := range strings.Split(text, "\n") {
		head, name, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q: %w", line, ErrCorruptObject)
		}
		parts := strings.Split(head, " ")
		if len(parts) != 3 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q: %w", line, ErrCorruptObject)
		}
		mode, typ, hash := parts[0], ObjectType(parts[1]), parts[2]

		if !ValidHash(hash) {
			return nil, fmt.Errorf("unmarshal tree: bad hash %q: %w", hash, ErrCorruptObject)
		}
		if err := checkEntryKind(mode, typ); err != nil {
			return nil, fmt.Errorf("unmarshal tree: entry %q: %v: %w", name, err, ErrCorruptObject)
		}
		if name == "" || prev >= name && prev != "" {
			return nil, fmt.Errorf("unmarshal tree: entry order violation at %q: %w", name, ErrCorruptObject)
		}
		prev = name

		tr.Entries = append(tr.Entries, TreeEntry{
			Mode: mode,
			Type: typ,
			Hash: Hash(hash),
			Name: name,
		})
	}
	return tr, nil
}

// normalizeEntryKind fills in defaults and validates the (mode, type) pair.
func normalizeEntryKind(e TreeEntry) (string, ObjectType, error) {
	mode, typ := e.Mode, e.Type
	if typ == "" {
		if mode == TreeModeDir {
			typ = TypeTree
		} else {
			typ = TypeBlob
		}
	}
	if mode == "" {
		if typ == TypeTree {
			mode = TreeModeDir
		} else {
			mode = TreeModeFile
		}
	}
	if err := checkEntryKind(mode, typ); err != nil {
		return "", "", err
	}
	return mode, typ, nil
}

func checkEntryKind(mode string, typ ObjectType) error {
	switch mode {
	case TreeModeDir:
		if typ != TypeTree {
			return fmt.Errorf("mode %s requires type tree, got %q", mode, typ)
		}
	case TreeModeFile, TreeModeExecutable:
		if typ != TypeBlob {
			return fmt.Errorf("mode %s requires type blob, got %q", mode, typ)
		}
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more, in caller-supplied order)
//	author Name <email> unix tz
//	committer Name <email> unix tz
//	signature S  (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// SigningPayload returns the canonical commit bytes that get signed. The
// payload excludes the signature field itself.
func SigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Signature = ""
	return MarshalCommit(&cp)
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator: %w", ErrCorruptObject)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	sawTree, sawAuthor, sawCommitter := false, false, false

	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q: %w", line, ErrCorruptObject)
		}
		switch key {
		case "tree":
			if sawTree || !ValidHash(val) {
				return nil, fmt.Errorf("unmarshal commit: bad tree header %q: %w", val, ErrCorruptObject)
			}
			c.TreeHash = Hash(val)
			sawTree = true
		case "parent":
			if !ValidHash(val) {
				return nil, fmt.Errorf("unmarshal commit: bad parent hash %q: %w", val, ErrCorruptObject)
			}
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			id, err := ParseIdent(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %v: %w", err, ErrCorruptObject)
			}
			c.Author = id
			sawAuthor = true
		case "committer":
			id, err := ParseIdent(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %v: %w", err, ErrCorruptObject)
			}
			c.Committer = id
			sawCommitter = true
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q: %w", key, ErrCorruptObject)
		}
	}

	if !sawTree || !sawAuthor || !sawCommitter {
		return nil, fmt.Errorf("unmarshal commit: incomplete header: %w", ErrCorruptObject)
	}
	return c, nil
}

// ParseIdent parses the canonical "Name <email> unix tz" identity line.
func ParseIdent(s string) (Ident, error) {
	open := strings.LastIndex(s, "<")
	close := strings.LastIndex(s, ">")
	if open < 0 || close < open {
		return Ident{}, fmt.Errorf("malformed identity %q", s)
	}

	name := strings.TrimSpace(s[:open])
	email := s[open+1 : close]

	rest := strings.Fields(s[close+1:])
	if len(rest) != 2 {
		return Ident{}, fmt.Errorf("malformed identity timestamp in %q", s)
	}
	when, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return Ident{}, fmt.Errorf("bad identity timestamp %q: %v", rest[0], err)
	}

	return Ident{Name: name, Email: email, When: when, TZ: rest[1]}, nil
}
