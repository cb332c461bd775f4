package repo

import (
	"strings"
	"testing"

	"github.com/siltvcs/silt/pkg/object"
)

func TestCommit_ChainAndLog(t *testing.T) {
	r, dir := newTestRepo(t)

	writeWorkFile(t, dir, "f.txt", "one\n")
	c1 := addAndCommit(t, r, "first", "f.txt")
	writeWorkFile(t, dir, "f.txt", "two\n")
	c2 := addAndCommit(t, r, "second", "f.txt")
	writeWorkFile(t, dir, "g.txt", "new file\n")
	c3 := addAndCommit(t, r, "third", "g.txt")

	commit3, err := r.Store.ReadCommit(c3)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(commit3.Parents) != 1 || commit3.Parents[0] != c2 {
		t.Errorf("c3 parents = %v, want [%s]", commit3.Parents, c2)
	}

	entries, err := r.Log(c3, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("log has %d entries, want 3", len(entries))
	}
	want := []object.Hash{c3, c2, c1}
	for i, e := range entries {
		if e.Hash != want[i] {
			t.Errorf("log[%d] = %s, want %s", i, e.Hash, want[i])
		}
	}

	commit1, err := r.Store.ReadCommit(c1)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(commit1.Parents) != 0 {
		t.Errorf("root commit has parents: %v", commit1.Parents)
	}
}

func TestCommit_Rejections(t *testing.T) {
	r, dir := newTestRepo(t)

	if _, err := r.Commit("nothing staged", CommitOptions{}); err == nil {
		t.Error("commit with an empty index should fail")
	}

	writeWorkFile(t, dir, "f.txt", "content\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("", CommitOptions{}); err == nil {
		t.Error("commit with an empty message should fail")
	}
	if _, err := r.Commit("   \n", CommitOptions{}); err == nil {
		t.Error("commit with a whitespace-only message should fail")
	}
}

func TestCommit_NoChangeGuard(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "content\n")
	c1 := addAndCommit(t, r, "initial", "f.txt")

	// Index unchanged since c1: same tree, must be rejected.
	if _, err := r.Commit("no-op", CommitOptions{}); err == nil {
		t.Error("commit with an unchanged tree should fail")
	}

	c2, err := r.Commit("deliberate empty", CommitOptions{AllowEmpty: true})
	if err != nil {
		t.Fatalf("Commit(AllowEmpty): %v", err)
	}
	commit2, err := r.Store.ReadCommit(c2)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(commit2.Parents) != 1 || commit2.Parents[0] != c1 {
		t.Errorf("empty commit parents = %v, want [%s]", commit2.Parents, c1)
	}

	commit1, err := r.Store.ReadCommit(c1)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if commit2.TreeHash != commit1.TreeHash {
		t.Error("empty commit must reuse the parent tree")
	}
}

func TestCommit_SignerAttachesSignature(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "content\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var seenPayload []byte
	signer := CommitSigner(func(payload []byte) (string, error) {
		seenPayload = append([]byte(nil), payload...)
		return "sshsig-v1:ssh-ed25519:pub:sig", nil
	})

	h, err := r.Commit("signed work", CommitOptions{Signer: signer})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	commit, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if commit.Signature != "sshsig-v1:ssh-ed25519:pub:sig" {
		t.Errorf("signature = %q", commit.Signature)
	}
	if string(object.SigningPayload(commit)) != string(seenPayload) {
		t.Error("stored commit's signing payload differs from what the signer saw")
	}
	if strings.Contains(string(seenPayload), "signature ") {
		t.Error("signer payload must not include a signature header")
	}
}

func TestCommitTree_Plumbing(t *testing.T) {
	r, dir := newTestRepo(t)
	writeWorkFile(t, dir, "f.txt", "content\n")
	c1 := addAndCommit(t, r, "initial", "f.txt")

	commit1, err := r.Store.ReadCommit(c1)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}

	c2, err := r.CommitTree(commit1.TreeHash, []object.Hash{c1}, "plumbed")
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	commit2, err := r.Store.ReadCommit(c2)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if commit2.TreeHash != commit1.TreeHash || len(commit2.Parents) != 1 || commit2.Parents[0] != c1 {
		t.Errorf("plumbed commit = %+v", commit2)
	}

	// HEAD must not move: CommitTree only writes the object.
	cur, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if cur != c1 {
		t.Errorf("HEAD moved to %s after CommitTree", cur)
	}

	bogus := object.HashObject(object.TypeBlob, []byte("x"))
	if _, err := r.CommitTree(bogus, nil, "bad tree"); err == nil {
		t.Error("CommitTree with a missing tree should fail")
	}
	if _, err := r.CommitTree(commit1.TreeHash, []object.Hash{bogus}, "bad parent"); err == nil {
		t.Error("CommitTree with a missing parent should fail")
	}
}

func TestHistory_WalksAllParents(t *testing.T) {
	r, dir := newTestRepo(t)

	writeWorkFile(t, dir, "base.txt", "base\n")
	c1 := addAndCommit(t, r, "base", "base.txt")

	if err := r.CreateBranch("side", c1); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	writeWorkFile(t, dir, "main.txt", "main\n")
	addAndCommit(t, r, "on main", "main.txt")

	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	writeWorkFile(t, dir, "side.txt", "side\n")
	sideTip := addAndCommit(t, r, "on side", "side.txt")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	report, err := r.Merge("side")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.HasConflicts {
		t.Fatal("disjoint merge should not conflict")
	}

	// First-parent log skips the side branch; History includes it.
	logEntries, err := r.Log(report.MergeCommit, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	histEntries, err := r.History(report.MergeCommit, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}

	inLog := func(entries []LogEntry, h object.Hash) bool {
		for _, e := range entries {
			if e.Hash == h {
				return true
			}
		}
		return false
	}
	if inLog(logEntries, sideTip) {
		t.Error("first-parent log should not include the side branch tip")
	}
	if !inLog(histEntries, sideTip) {
		t.Error("History must include the side branch tip")
	}
	if len(histEntries) != 4 {
		t.Errorf("History has %d entries, want 4", len(histEntries))
	}
}
