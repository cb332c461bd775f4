package diff

import (
	"strings"
	"testing"
)

func TestDiffFiles_IdenticalIsNil(t *testing.T) {
	content := []byte("same\ncontent\n")
	if d := DiffFiles("f.txt", content, content); d != nil {
		t.Errorf("identical revisions produced a diff: %+v", d)
	}
}

func TestFormat(t *testing.T) {
	before := []byte("keep\nold line\n")
	after := []byte("keep\nnew line\n")

	d := DiffFiles("dir/f.txt", before, after)
	if d == nil {
		t.Fatal("changed revisions produced no diff")
	}

	out := Format(d)
	wantLines := []string{
		"--- a/dir/f.txt",
		"+++ b/dir/f.txt",
		" keep",
		"-old line",
		"+new line",
	}
	for _, want := range wantLines {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("output missing line %q:\n%s", want, out)
		}
	}

	if Format(nil) != "" {
		t.Error("Format(nil) must be empty")
	}
}
