package repo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/siltvcs/silt/pkg/object"
)

// FsckReport summarizes a repository integrity check.
type FsckReport struct {
	Checked     int           // objects read and digest-verified
	Reachable   int           // objects reachable from some ref
	Unreachable []object.Hash // stored objects no ref reaches
	Missing     []object.Hash // referenced objects absent from the store
	Corrupt     []FsckProblem // objects failing digest or parse checks
}

// FsckProblem names one broken object.
type FsckProblem struct {
	Hash object.Hash
	Err  error
}

// OK reports whether the check found no missing or corrupt objects.
func (fr *FsckReport) OK() bool {
	return len(fr.Missing) == 0 && len(fr.Corrupt) == 0
}

// Fsck verifies the object graph: every object reachable from any ref
// (plus HEAD and a pending MERGE_HEAD) is read back and digest-checked,
// dangling references are reported as missing, and stored objects outside
// the reachable set are listed as unreachable. Unreachable objects are
// not an error; they are ordinary garbage awaiting collection.
func (r *Repo) Fsck() (*FsckReport, error) {
	roots, err := r.fsckRoots()
	if err != nil {
		return nil, fmt.Errorf("fsck: %w", err)
	}

	report := &FsckReport{}
	reachable := make(map[object.Hash]struct{})

	stack := roots
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, seen := reachable[h]; seen {
			continue
		}
		reachable[h] = struct{}{}

		objType, data, err := r.Store.Read(h)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				report.Missing = append(report.Missing, h)
				continue
			}
			report.Corrupt = append(report.Corrupt, FsckProblem{Hash: h, Err: err})
			continue
		}
		report.Checked++

		refs, err := referencedObjectHashes(objType, data)
		if err != nil {
			report.Corrupt = append(report.Corrupt, FsckProblem{Hash: h, Err: err})
			continue
		}
		stack = append(stack, refs...)
	}

	stored, err := r.Store.ListHashes()
	if err != nil {
		return nil, fmt.Errorf("fsck: %w", err)
	}
	for _, h := range stored {
		if _, ok := reachable[h]; !ok {
			report.Unreachable = append(report.Unreachable, h)
		} else {
			report.Reachable++
		}
	}

	sort.Slice(report.Missing, func(i, j int) bool { return report.Missing[i] < report.Missing[j] })
	sort.Slice(report.Unreachable, func(i, j int) bool { return report.Unreachable[i] < report.Unreachable[j] })

	r.Events.Info("fsck complete",
		"checked", report.Checked,
		"missing", len(report.Missing),
		"corrupt", len(report.Corrupt),
		"unreachable", len(report.Unreachable))
	return report, nil
}

func (r *Repo) fsckRoots() ([]object.Hash, error) {
	var roots []object.Hash

	refs, err := r.ListRefs("")
	if err != nil {
		return nil, err
	}
	for _, h := range refs {
		roots = append(roots, h)
	}

	if h, err := r.ResolveRef("HEAD"); err == nil {
		roots = append(roots, h)
	} else if !errors.Is(err, ErrUnknownRef) {
		return nil, err
	}

	if h, pending, err := r.MergeHead(); err != nil {
		return nil, err
	} else if pending {
		roots = append(roots, h)
	}

	return roots, nil
}

// referencedObjectHashes extracts the outgoing edges of one object.
func referencedObjectHashes(objType object.ObjectType, data []byte) ([]object.Hash, error) {
	switch objType {
	case object.TypeBlob:
		return nil, nil
	case object.TypeTree:
		tree, err := object.UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]object.Hash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			refs = append(refs, e.Hash)
		}
		return refs, nil
	case object.TypeCommit:
		commit, err := object.UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]object.Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q: %w", objType, object.ErrCorruptObject)
	}
}
