package diff3

import (
	"strings"
	"testing"
)

func TestLineDiff_Basic(t *testing.T) {
	a := []byte("one\ntwo\nthree\n")
	b := []byte("one\ntwo-changed\nthree\n")

	lines := LineDiff(a, b)

	var inserts, deletes, equals int
	for _, l := range lines {
		switch l.Type {
		case Insert:
			inserts++
		case Delete:
			deletes++
		case Equal:
			equals++
		}
	}
	if equals != 2 || inserts != 1 || deletes != 1 {
		t.Errorf("diff = %d equal, %d insert, %d delete; want 2/1/1", equals, inserts, deletes)
	}
}

func TestLineDiff_Identical(t *testing.T) {
	content := []byte("same\nlines\n")
	for _, l := range LineDiff(content, content) {
		if l.Type != Equal {
			t.Errorf("identical inputs produced %v op on %q", l.Type, l.Content)
		}
	}
}

func TestMerge_NonOverlapping(t *testing.T) {
	base := []byte("a\nb\nc\nd\ne\n")
	ours := []byte("A\nb\nc\nd\ne\n")   // change first line
	theirs := []byte("a\nb\nc\nd\nE\n") // change last line

	res := Merge(base, ours, theirs)
	if res.HasConflicts {
		t.Fatalf("expected clean merge, got %d conflicts:\n%s", res.Conflicts, res.Merged)
	}
	if string(res.Merged) != "A\nb\nc\nd\nE\n" {
		t.Errorf("merged = %q", res.Merged)
	}
}

func TestMerge_OneSideOnly(t *testing.T) {
	base := []byte("x\ny\n")
	ours := []byte("x\ny\nz\n")

	res := Merge(base, ours, base)
	if res.HasConflicts {
		t.Fatalf("unexpected conflicts: %s", res.Merged)
	}
	if string(res.Merged) != "x\ny\nz\n" {
		t.Errorf("merged = %q, want ours", res.Merged)
	}
}

func TestMerge_IdenticalChanges(t *testing.T) {
	base := []byte("old line\n")
	both := []byte("new line\n")

	res := Merge(base, both, both)
	if res.HasConflicts {
		t.Fatalf("identical changes conflicted: %s", res.Merged)
	}
	if string(res.Merged) != "new line\n" {
		t.Errorf("merged = %q", res.Merged)
	}
}

func TestMerge_Conflict(t *testing.T) {
	base := []byte("shared\nline\n")
	ours := []byte("shared\nours version\n")
	theirs := []byte("shared\ntheirs version\n")

	res := Merge(base, ours, theirs)
	if !res.HasConflicts || res.Conflicts != 1 {
		t.Fatalf("expected exactly 1 conflict, got %d (HasConflicts=%v)", res.Conflicts, res.HasConflicts)
	}

	out := string(res.Merged)
	for _, marker := range []string{"<<<<<<< ours", "=======", ">>>>>>> theirs", "ours version", "theirs version"} {
		if !strings.Contains(out, marker) {
			t.Errorf("merged output missing %q:\n%s", marker, out)
		}
	}
	if strings.Index(out, "ours version") > strings.Index(out, "theirs version") {
		t.Error("ours block must precede theirs block")
	}
}

func TestMerge_OverlappingMisalignedRegions(t *testing.T) {
	// Ours rewrites around an unchanged line, theirs collapses a region
	// spanning that same line. The edits overlap without aligning on base
	// positions, so the whole region must land inside one conflict block.
	base := []byte("a\nb\nc\nd\n")
	ours := []byte("X\nc\nY\n")
	theirs := []byte("a\nZ\n")

	res := Merge(base, ours, theirs)
	if !res.HasConflicts || res.Conflicts != 1 {
		t.Fatalf("expected exactly 1 conflict, got %d (HasConflicts=%v):\n%s", res.Conflicts, res.HasConflicts, res.Merged)
	}

	want := "<<<<<<< ours\nX\nc\nY\n=======\na\nZ\n>>>>>>> theirs\n"
	if string(res.Merged) != want {
		t.Errorf("merged = %q, want %q", res.Merged, want)
	}

	// Nothing from either side may escape past the closing marker.
	out := string(res.Merged)
	closing := strings.Index(out, ">>>>>>> theirs\n")
	if tail := out[closing+len(">>>>>>> theirs\n"):]; tail != "" {
		t.Errorf("content leaked outside conflict markers: %q", tail)
	}
}

func TestMerge_BothDelete(t *testing.T) {
	base := []byte("keep\ndrop\n")
	both := []byte("keep\n")

	res := Merge(base, both, both)
	if res.HasConflicts {
		t.Fatalf("unexpected conflicts: %s", res.Merged)
	}
	if string(res.Merged) != "keep\n" {
		t.Errorf("merged = %q", res.Merged)
	}
}

func TestMerge_EmptyBase(t *testing.T) {
	ours := []byte("from ours\n")
	theirs := []byte("from theirs\n")

	res := Merge(nil, ours, theirs)
	if !res.HasConflicts {
		t.Fatalf("divergent additions with no base must conflict:\n%s", res.Merged)
	}
}
