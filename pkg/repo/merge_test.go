package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/siltvcs/silt/pkg/object"
)

// branchFrom creates a branch at the current HEAD and checks it out.
func branchFrom(t *testing.T, r *Repo, name string) {
	t.Helper()

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if err := r.CreateBranch(name, headHash); err != nil {
		t.Fatalf("CreateBranch(%s): %v", name, err)
	}
	if err := r.Checkout(name); err != nil {
		t.Fatalf("Checkout(%s): %v", name, err)
	}
}

func checkout(t *testing.T, r *Repo, name string) {
	t.Helper()

	if err := r.Checkout(name); err != nil {
		t.Fatalf("Checkout(%s): %v", name, err)
	}
}

func TestMerge_FastForward(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "base.txt", "base\n")
	addAndCommit(t, r, "base", "base.txt")

	branchFrom(t, r, "feature")
	writeWorkFile(t, dir, "feature.txt", "ahead\n")
	featureTip := addAndCommit(t, r, "feature work", "feature.txt")

	checkout(t, r, "main")

	before, err := r.Store.ListHashes()
	if err != nil {
		t.Fatalf("ListHashes: %v", err)
	}

	report, err := r.Merge("feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.FastForward || report.MergeCommit != featureTip {
		t.Errorf("report = %+v, want fast-forward to %s", report, featureTip)
	}

	// The ref moved without writing a single new object.
	after, err := r.Store.ListHashes()
	if err != nil {
		t.Fatalf("ListHashes: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("fast-forward wrote %d new objects", len(after)-len(before))
	}

	mainHash, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if mainHash != featureTip {
		t.Errorf("main = %s, want %s", mainHash, featureTip)
	}
	if got := readWorkFile(t, dir, "feature.txt"); got != "ahead\n" {
		t.Errorf("feature.txt = %q after fast-forward", got)
	}
}

func TestMerge_AlreadyUpToDate(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "base.txt", "base\n")
	c1 := addAndCommit(t, r, "base", "base.txt")

	if err := r.CreateBranch("old", c1); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	writeWorkFile(t, dir, "more.txt", "ahead\n")
	c2 := addAndCommit(t, r, "ahead", "more.txt")

	report, err := r.Merge("old")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.AlreadyUpToDate {
		t.Errorf("report = %+v, want AlreadyUpToDate", report)
	}

	mainHash, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if mainHash != c2 {
		t.Errorf("main moved to %s, want unchanged %s", mainHash, c2)
	}
}

func TestMerge_CleanDisjoint(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "base.txt", "base\n")
	addAndCommit(t, r, "base", "base.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "side.txt", "side\n")
	sideTip := addAndCommit(t, r, "side work", "side.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "main.txt", "main\n")
	mainTip := addAndCommit(t, r, "main work", "main.txt")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.HasConflicts || report.FastForward || report.AlreadyUpToDate {
		t.Fatalf("report = %+v, want a clean true merge", report)
	}
	if report.MergeCommit == "" {
		t.Fatal("clean merge did not commit")
	}

	mergeCommit, err := r.Store.ReadCommit(report.MergeCommit)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(mergeCommit.Parents) != 2 || mergeCommit.Parents[0] != mainTip || mergeCommit.Parents[1] != sideTip {
		t.Errorf("merge parents = %v, want [%s %s]", mergeCommit.Parents, mainTip, sideTip)
	}
	if mergeCommit.Message != "Merge branch 'side'" {
		t.Errorf("merge message = %q", mergeCommit.Message)
	}

	if got := readWorkFile(t, dir, "main.txt"); got != "main\n" {
		t.Errorf("main.txt = %q", got)
	}
	if got := readWorkFile(t, dir, "side.txt"); got != "side\n" {
		t.Errorf("side.txt = %q", got)
	}
}

func TestMerge_CleanContentMerge(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "top\nmiddle\nbottom\n")
	addAndCommit(t, r, "base", "f.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "f.txt", "top\nmiddle\nBOTTOM\n")
	addAndCommit(t, r, "side edits bottom", "f.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "f.txt", "TOP\nmiddle\nbottom\n")
	addAndCommit(t, r, "main edits top", "f.txt")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.HasConflicts {
		t.Fatalf("non-overlapping edits conflicted: %+v", report)
	}
	if got := readWorkFile(t, dir, "f.txt"); got != "TOP\nmiddle\nBOTTOM\n" {
		t.Errorf("merged content = %q", got)
	}
}

func TestMerge_ConflictThenConclude(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "shared\noriginal\n")
	addAndCommit(t, r, "base", "f.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "f.txt", "shared\nside version\n")
	sideTip := addAndCommit(t, r, "side edit", "f.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "f.txt", "shared\nmain version\n")
	mainTip := addAndCommit(t, r, "main edit", "f.txt")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.HasConflicts || report.TotalConflicts != 1 {
		t.Fatalf("report = %+v, want 1 conflict", report)
	}

	// Working file carries markers.
	content := readWorkFile(t, dir, "f.txt")
	for _, marker := range []string{"<<<<<<<", "=======", ">>>>>>>", "main version", "side version"} {
		if !strings.Contains(content, marker) {
			t.Errorf("conflict file missing %q:\n%s", marker, content)
		}
	}

	// Pending merge state records the second parent.
	mergeHead, pending, err := r.MergeHead()
	if err != nil {
		t.Fatalf("MergeHead: %v", err)
	}
	if !pending || mergeHead != sideTip {
		t.Errorf("MERGE_HEAD = %s (pending=%v), want %s", mergeHead, pending, sideTip)
	}

	// All three stages are in the index.
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	se := stg.Entries["f.txt"]
	if se == nil || !se.Conflict {
		t.Fatalf("f.txt not marked conflicted: %+v", se)
	}
	if se.BaseBlobHash == "" || se.OursBlobHash == "" || se.TheirsBlobHash == "" {
		t.Errorf("missing conflict stages: %+v", se)
	}
	wantOurs := object.HashObject(object.TypeBlob, []byte("shared\nmain version\n"))
	if se.OursBlobHash != wantOurs {
		t.Errorf("ours stage = %s, want %s", se.OursBlobHash, wantOurs)
	}

	// Neither ref moved.
	if h, _ := r.ResolveRef("main"); h != mainTip {
		t.Errorf("main moved to %s during conflicted merge", h)
	}
	if h, _ := r.ResolveRef("side"); h != sideTip {
		t.Errorf("side moved to %s during conflicted merge", h)
	}

	// Concluding with an unresolved index must fail.
	if _, err := r.ConcludeMerge(""); err == nil {
		t.Error("ConcludeMerge with unresolved conflicts should fail")
	}

	// Resolve, restage, conclude with the recorded MERGE_MSG.
	writeWorkFile(t, dir, "f.txt", "shared\nresolved\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	mergeHash, err := r.ConcludeMerge("")
	if err != nil {
		t.Fatalf("ConcludeMerge: %v", err)
	}

	mergeCommit, err := r.Store.ReadCommit(mergeHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(mergeCommit.Parents) != 2 || mergeCommit.Parents[0] != mainTip || mergeCommit.Parents[1] != sideTip {
		t.Errorf("merge parents = %v, want [%s %s]", mergeCommit.Parents, mainTip, sideTip)
	}
	if !strings.Contains(mergeCommit.Message, "Merge branch 'side'") {
		t.Errorf("merge message = %q", mergeCommit.Message)
	}

	if _, pending, err := r.MergeHead(); err != nil || pending {
		t.Errorf("merge state not cleared: pending=%v err=%v", pending, err)
	}
}

func TestMerge_ConflictKeepsCleanSiblingChanges(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "base\n")
	writeWorkFile(t, dir, "g.txt", "g-base\n")
	writeWorkFile(t, dir, "h.txt", "top\nmid\nbot\n")
	addAndCommit(t, r, "base", "f.txt", "g.txt", "h.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "f.txt", "side\n")
	writeWorkFile(t, dir, "g.txt", "g-side\n")
	writeWorkFile(t, dir, "h.txt", "top\nmid\nbot-side\n")
	writeWorkFile(t, dir, "extra.txt", "extra\n")
	addAndCommit(t, r, "side work", "f.txt", "g.txt", "h.txt", "extra.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "f.txt", "main\n")
	writeWorkFile(t, dir, "h.txt", "top-main\nmid\nbot\n")
	addAndCommit(t, r, "main work", "f.txt", "h.txt")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.HasConflicts {
		t.Fatalf("report = %+v, want a conflict on f.txt", report)
	}

	// Everything that merged cleanly alongside the conflict must already
	// sit in the index at its merged blob: theirs-only change, clean line
	// merge, and theirs-side addition.
	wantG := object.HashObject(object.TypeBlob, []byte("g-side\n"))
	wantH := object.HashObject(object.TypeBlob, []byte("top-main\nmid\nbot-side\n"))
	wantExtra := object.HashObject(object.TypeBlob, []byte("extra\n"))

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	for path, want := range map[string]object.Hash{
		"g.txt":     wantG,
		"h.txt":     wantH,
		"extra.txt": wantExtra,
	} {
		e := stg.Entries[path]
		if e == nil {
			t.Fatalf("%s missing from index after conflicted merge", path)
		}
		if e.Conflict {
			t.Errorf("%s marked conflicted, want clean", path)
		}
		if e.BlobHash != want {
			t.Errorf("%s index blob = %s, want merged %s", path, e.BlobHash, want)
		}
	}
	if e := stg.Entries["f.txt"]; e == nil || !e.Conflict {
		t.Error("f.txt must carry conflict stages")
	}

	writeWorkFile(t, dir, "f.txt", "resolved\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add resolved: %v", err)
	}
	mergeHash, err := r.ConcludeMerge("")
	if err != nil {
		t.Fatalf("ConcludeMerge: %v", err)
	}

	// The concluded merge commit carries the merged blobs, not the
	// pre-merge HEAD versions.
	commit, err := r.Store.ReadCommit(mergeHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	byPath := indexByPath(files)
	for path, want := range map[string]object.Hash{
		"f.txt":     object.HashObject(object.TypeBlob, []byte("resolved\n")),
		"g.txt":     wantG,
		"h.txt":     wantH,
		"extra.txt": wantExtra,
	} {
		got, ok := byPath[path]
		if !ok {
			t.Fatalf("%s missing from merge commit tree", path)
		}
		if got.BlobHash != want {
			t.Errorf("merge commit %s blob = %s, want %s", path, got.BlobHash, want)
		}
	}
}

func TestMerge_RefusedWhileMergePending(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "base\n")
	addAndCommit(t, r, "base", "f.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "f.txt", "side\n")
	addAndCommit(t, r, "side", "f.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "f.txt", "main\n")
	addAndCommit(t, r, "main", "f.txt")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.HasConflicts {
		t.Fatal("expected a conflicted merge")
	}

	if _, err := r.Merge("side"); err == nil {
		t.Error("starting a merge while one is pending should fail")
	}
}

func TestMerge_Abort(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "original\n")
	addAndCommit(t, r, "base", "f.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "f.txt", "side\n")
	addAndCommit(t, r, "side", "f.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "f.txt", "main\n")
	addAndCommit(t, r, "main", "f.txt")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.HasConflicts {
		t.Fatal("expected a conflicted merge")
	}

	if err := r.AbortMerge(); err != nil {
		t.Fatalf("AbortMerge: %v", err)
	}

	if got := readWorkFile(t, dir, "f.txt"); got != "main\n" {
		t.Errorf("f.txt = %q after abort, want the HEAD version", got)
	}
	if _, pending, _ := r.MergeHead(); pending {
		t.Error("MERGE_HEAD survived the abort")
	}

	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, e := range entries {
		if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
			t.Errorf("dirty status after abort: %+v", e)
		}
	}

	if err := r.AbortMerge(); err == nil {
		t.Error("aborting with no merge in progress should fail")
	}
}

func TestMerge_DeleteVersusModify(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "doomed.txt", "v1\n")
	writeWorkFile(t, dir, "keep.txt", "stays\n")
	addAndCommit(t, r, "base", "doomed.txt", "keep.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "doomed.txt", "v2 on side\n")
	addAndCommit(t, r, "side modifies", "doomed.txt")

	checkout(t, r, "main")
	if err := os.Remove(filepath.Join(dir, "doomed.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	delete(stg.Entries, "doomed.txt")
	if err := r.WriteStaging(stg); err != nil {
		t.Fatalf("WriteStaging: %v", err)
	}
	if _, err := r.Commit("main deletes", CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.HasConflicts {
		t.Fatalf("delete vs modify must conflict: %+v", report)
	}

	content := readWorkFile(t, dir, "doomed.txt")
	if !strings.Contains(content, "v2 on side") || !strings.Contains(content, "<<<<<<<") {
		t.Errorf("whole-file conflict content = %q", content)
	}
}

func TestMerge_BinaryConflictSidecars(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "blob.bin", "base\x00data\n")
	addAndCommit(t, r, "base", "blob.bin")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "blob.bin", "side\x00data\n")
	addAndCommit(t, r, "side binary edit", "blob.bin")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "blob.bin", "main\x00data\n")
	addAndCommit(t, r, "main binary edit", "blob.bin")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.HasConflicts {
		t.Fatal("binary divergence must conflict")
	}

	// Ours stays at the path; both full versions sit beside it.
	if got := readWorkFile(t, dir, "blob.bin"); got != "main\x00data\n" {
		t.Errorf("blob.bin = %q, want the ours version", got)
	}
	if got := readWorkFile(t, dir, "blob.bin.ours"); got != "main\x00data\n" {
		t.Errorf("blob.bin.ours = %q", got)
	}
	if got := readWorkFile(t, dir, "blob.bin.theirs"); got != "side\x00data\n" {
		t.Errorf("blob.bin.theirs = %q", got)
	}
}

func TestFindMergeBase(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "base\n")
	c1 := addAndCommit(t, r, "base", "f.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "side.txt", "side\n")
	sideTip := addAndCommit(t, r, "side", "side.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "main.txt", "main\n")
	mainTip := addAndCommit(t, r, "main", "main.txt")

	// Diverged tips meet at the fork point.
	base, err := r.FindMergeBase(mainTip, sideTip)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if base != c1 {
		t.Errorf("base = %s, want %s", base, c1)
	}

	// Symmetric in its arguments.
	base, err = r.FindMergeBase(sideTip, mainTip)
	if err != nil {
		t.Fatalf("FindMergeBase (swapped): %v", err)
	}
	if base != c1 {
		t.Errorf("swapped base = %s, want %s", base, c1)
	}

	// Ancestor/descendant pairs short-circuit to the ancestor.
	base, err = r.FindMergeBase(c1, mainTip)
	if err != nil {
		t.Fatalf("FindMergeBase (linear): %v", err)
	}
	if base != c1 {
		t.Errorf("linear base = %s, want %s", base, c1)
	}

	ok, err := r.IsAncestor(c1, mainTip)
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if !ok {
		t.Error("fork point must be an ancestor of the tip")
	}
	ok, err = r.IsAncestor(mainTip, sideTip)
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if ok {
		t.Error("diverged tips must not be ancestors of each other")
	}
}

func TestFindMergeBase_DisjointRoots(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "content\n")
	c1 := addAndCommit(t, r, "root one", "f.txt")

	commit1, err := r.Store.ReadCommit(c1)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}

	// A second parentless root sharing the same tree.
	root2, err := r.CommitTree(commit1.TreeHash, nil, "root two")
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}

	base, err := r.FindMergeBase(c1, root2)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if base != "" {
		t.Errorf("disjoint roots share base %s, want none", base)
	}
}

func TestFindMergeBase_CrissCross(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "base.txt", "base\n")
	addAndCommit(t, r, "base", "base.txt")

	branchFrom(t, r, "b")
	writeWorkFile(t, dir, "b.txt", "b\n")
	cB := addAndCommit(t, r, "on b", "b.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "a.txt", "a\n")
	cA := addAndCommit(t, r, "on main", "a.txt")

	// Snapshot main's pre-merge tip so both sides can merge the other's
	// original commit, producing two incomparable common ancestors.
	if err := r.CreateBranch("asnap", cA); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	reportA, err := r.Merge("b")
	if err != nil {
		t.Fatalf("Merge(b): %v", err)
	}
	if reportA.HasConflicts {
		t.Fatal("disjoint merge conflicted")
	}

	checkout(t, r, "b")
	reportB, err := r.Merge("asnap")
	if err != nil {
		t.Fatalf("Merge(asnap): %v", err)
	}
	if reportB.HasConflicts {
		t.Fatal("disjoint merge conflicted")
	}

	// Both cA and cB are common ancestors at the same generation; the
	// lexicographically smaller hash wins, in either argument order.
	want := cA
	if cB < cA {
		want = cB
	}
	base, err := r.FindMergeBase(reportA.MergeCommit, reportB.MergeCommit)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if base != want {
		t.Errorf("base = %s, want %s", base, want)
	}
	base, err = r.FindMergeBase(reportB.MergeCommit, reportA.MergeCommit)
	if err != nil {
		t.Fatalf("FindMergeBase (swapped): %v", err)
	}
	if base != want {
		t.Errorf("swapped base = %s, want %s", base, want)
	}
}

func TestFindMergeBase_TraversalLimit(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "rev 0\n")
	root := addAndCommit(t, r, "rev 0", "f.txt")

	var tip object.Hash
	for i := 1; i <= 5; i++ {
		writeWorkFile(t, dir, "f.txt", fmt.Sprintf("rev %d\n", i))
		tip = addAndCommit(t, r, fmt.Sprintf("rev %d", i), "f.txt")
	}

	oldLimit := mergeBaseStepsLimit
	mergeBaseStepsLimit = 3
	t.Cleanup(func() { mergeBaseStepsLimit = oldLimit })

	if _, err := r.FindMergeBase(root, tip); err == nil {
		t.Error("traversal over the step limit should fail")
	}

	mergeBaseStepsLimit = oldLimit
	base, err := r.FindMergeBase(root, tip)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if base != root {
		t.Errorf("base = %s, want %s", base, root)
	}
}

func TestFindMergeBase_AfterMerge(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "base.txt", "base\n")
	addAndCommit(t, r, "base", "base.txt")

	branchFrom(t, r, "side")
	writeWorkFile(t, dir, "side.txt", "side\n")
	sideTip := addAndCommit(t, r, "side", "side.txt")

	checkout(t, r, "main")
	writeWorkFile(t, dir, "main.txt", "main\n")
	addAndCommit(t, r, "main", "main.txt")

	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// The merged-in tip is now an ancestor of main, so it is its own base.
	writeWorkFile(t, dir, "after.txt", "after\n")
	newTip := addAndCommit(t, r, "after merge", "after.txt")

	base, err := r.FindMergeBase(newTip, sideTip)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if base != sideTip {
		t.Errorf("base = %s, want the merged-in tip %s (merge commit %s)", base, sideTip, report.MergeCommit)
	}
}
