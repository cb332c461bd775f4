package diff3

import (
	"bytes"
	"strings"
)

// Default conflict marker labels.
const (
	LabelOurs   = "ours"
	LabelTheirs = "theirs"
)

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged       []byte // Full merged content (with conflict markers if conflicts exist).
	HasConflicts bool
	Conflicts    int // Number of conflicted regions.
}

// DiffLine is a single line in the output of LineDiff.
type DiffLine struct {
	Type    DiffType
	Content string
}

// LineDiff computes a line-level diff between byte slices a and b.
func LineDiff(a, b []byte) []DiffLine {
	ops := MyersDiff(splitLines(string(a)), splitLines(string(b)))

	result := make([]DiffLine, len(ops))
	for i, op := range ops {
		result[i] = DiffLine{Type: op.Type, Content: op.Line}
	}
	return result
}

// Merge performs a three-way line merge of base, ours, and theirs.
//
// Algorithm:
//  1. Split all three inputs into lines.
//  2. Compute diff(base, ours) and diff(base, theirs).
//  3. Convert each diff into a sequence of chunks: contiguous runs of
//     unchanged or changed regions relative to the base.
//  4. Walk both chunk sequences aligned by base positions. Regions changed
//     on one side only take that side; identical changes collapse; regions
//     changed differently on both sides become bracketed conflicts.
func Merge(base, ours, theirs []byte) Result {
	baseLines := splitLines(string(base))

	oursChunks := buildChunks(baseLines, splitLines(string(ours)))
	theirsChunks := buildChunks(baseLines, splitLines(string(theirs)))

	return mergeChunks(baseLines, oursChunks, theirsChunks)
}

// splitLines splits s into lines. A trailing newline does not produce
// an extra empty element (matching standard text file conventions).
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// chunk represents a contiguous region relative to the base.
type chunk struct {
	baseStart, baseEnd int      // range [baseStart, baseEnd) in base
	lines              []string // replacement lines for this region
	changed            bool     // true if this region differs from base
}

// buildChunks converts a two-way diff (base → side) into a list of chunks.
func buildChunks(base, side []string) []chunk {
	ops := MyersDiff(base, side)

	var chunks []chunk
	baseIdx := 0

	i := 0
	for i < len(ops) {
		op := ops[i]

		if op.Type == Equal {
			chunks = append(chunks, chunk{
				baseStart: baseIdx,
				baseEnd:   baseIdx + 1,
				lines:     []string{op.Line},
			})
			baseIdx++
			i++
			continue
		}

		// Accumulate a contiguous changed region (deletes and/or inserts).
		chunkStart := baseIdx
		var sideLines []string

		for i < len(ops) && ops[i].Type != Equal {
			if ops[i].Type == Delete {
				baseIdx++
			} else {
				sideLines = append(sideLines, ops[i].Line)
			}
			i++
		}

		chunks = append(chunks, chunk{
			baseStart: chunkStart,
			baseEnd:   baseIdx,
			lines:     sideLines,
			changed:   true,
		})
	}

	return chunks
}

// mergeChunks walks two chunk sequences (ours and theirs) in parallel,
// aligned by base-line positions, to produce the merge result.
func mergeChunks(baseLines []string, oursChunks, theirsChunks []chunk) Result {
	var merged bytes.Buffer
	conflicts := 0

	oi := 0
	ti := 0

	for oi < len(oursChunks) || ti < len(theirsChunks) {
		var oc, tc *chunk
		if oi < len(oursChunks) {
			oc = &oursChunks[oi]
		}
		if ti < len(theirsChunks) {
			tc = &theirsChunks[ti]
		}

		if oc == nil {
			writeLines(&merged, tc.lines)
			ti++
			continue
		}
		if tc == nil {
			writeLines(&merged, oc.lines)
			oi++
			continue
		}

		// Both chunks cover the same base region when aligned.
		if oc.baseStart == tc.baseStart && oc.baseEnd == tc.baseEnd {
			switch {
			case !tc.changed:
				// Theirs unchanged: ours wins (covers the both-unchanged case too).
				writeLines(&merged, oc.lines)
			case !oc.changed:
				writeLines(&merged, tc.lines)
			case linesEqual(oc.lines, tc.lines):
				// Identical change on both sides: no conflict.
				writeLines(&merged, oc.lines)
			default:
				conflicts++
				writeConflict(&merged, oc.lines, tc.lines)
			}
			oi++
			ti++
			continue
		}

		// Chunks are misaligned: one side's change spans multiple
		// base-aligned chunks on the other side. Collect every chunk from
		// both sides overlapping the combined region, then decide once.
		// Either side may extend the region, pulling more chunks from the
		// other side in, so alternate until the region stops growing.
		regionEnd := max(oc.baseEnd, tc.baseEnd)

		var oursRegion, theirsRegion []chunk
		for {
			grew := false
			for oi < len(oursChunks) && oursChunks[oi].baseStart < regionEnd {
				oursRegion = append(oursRegion, oursChunks[oi])
				if oursChunks[oi].baseEnd > regionEnd {
					regionEnd = oursChunks[oi].baseEnd
					grew = true
				}
				oi++
			}
			for ti < len(theirsChunks) && theirsChunks[ti].baseStart < regionEnd {
				theirsRegion = append(theirsRegion, theirsChunks[ti])
				if theirsChunks[ti].baseEnd > regionEnd {
					regionEnd = theirsChunks[ti].baseEnd
					grew = true
				}
				ti++
			}
			if !grew {
				break
			}
		}

		oursOut := assembleRegion(oursRegion)
		theirsOut := assembleRegion(theirsRegion)

		switch {
		case !anyChanged(theirsRegion):
			writeLines(&merged, oursOut)
		case !anyChanged(oursRegion):
			writeLines(&merged, theirsOut)
		case linesEqual(oursOut, theirsOut):
			writeLines(&merged, oursOut)
		default:
			conflicts++
			writeConflict(&merged, oursOut, theirsOut)
		}
	}

	return Result{
		Merged:       merged.Bytes(),
		HasConflicts: conflicts > 0,
		Conflicts:    conflicts,
	}
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}

func writeConflict(buf *bytes.Buffer, oursLines, theirsLines []string) {
	buf.WriteString("<<<<<<< " + LabelOurs + "\n")
	writeLines(buf, oursLines)
	buf.WriteString("=======\n")
	writeLines(buf, theirsLines)
	buf.WriteString(">>>>>>> " + LabelTheirs + "\n")
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assembleRegion(chunks []chunk) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, c.lines...)
	}
	return lines
}

func anyChanged(chunks []chunk) bool {
	for _, c := range chunks {
		if c.changed {
			return true
		}
	}
	return false
}
