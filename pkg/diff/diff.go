// Package diff renders line-level differences between two revisions of a
// file, for the `silt diff` command.
package diff

import (
	"fmt"
	"strings"

	"github.com/siltvcs/silt/pkg/diff3"
)

// FileDiff holds the line-level diff for a single file.
type FileDiff struct {
	Path  string
	Lines []diff3.DiffLine
}

// DiffFiles computes the line diff between before and after revisions of
// the file at path. Returns nil when the revisions are identical.
func DiffFiles(path string, before, after []byte) *FileDiff {
	lines := diff3.LineDiff(before, after)

	changed := false
	for _, l := range lines {
		if l.Type != diff3.Equal {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}
	return &FileDiff{Path: path, Lines: lines}
}

// Format produces unified-diff-style output:
//
//	--- a/path
//	+++ b/path
//	 context line
//	-removed line
//	+added line
func Format(d *FileDiff) string {
	if d == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", d.Path)
	fmt.Fprintf(&b, "+++ b/%s\n", d.Path)

	for _, l := range d.Lines {
		switch l.Type {
		case diff3.Insert:
			b.WriteByte('+')
		case diff3.Delete:
			b.WriteByte('-')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(l.Content)
		b.WriteByte('\n')
	}

	return b.String()
}
