package repo

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreChecker determines whether a repo-relative path should be ignored
// by status and staging walks. Patterns come from a .siltignore file at
// the repository root; .silt/ and .git/ are always ignored.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool // pattern contains a slash, so match against the full path
}

// NewIgnoreChecker creates an IgnoreChecker for the given repository root.
func NewIgnoreChecker(repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{
		patterns: []ignorePattern{
			{pattern: ".silt"},
			{pattern: ".git"},
		},
	}

	f, err := os.Open(filepath.Join(repoRoot, ".siltignore"))
	if err != nil {
		return ic
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseIgnoreLine(scanner.Text()); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	return ic
}

// parseIgnoreLine parses one .siltignore line. Returns nil for blank lines
// and comments.
func parseIgnoreLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	p.anchored = strings.Contains(line, "/")
	p.pattern = line
	if p.pattern == "" {
		return nil
	}
	return &p
}

// IsIgnored reports whether the slash-separated repo-relative path matches
// the ignore patterns. Later patterns win, so a negation can re-include a
// path excluded earlier.
func (ic *IgnoreChecker) IsIgnored(relPath string) bool {
	relPath = strings.TrimSuffix(relPath, "/")
	ignored := false

	for _, p := range ic.patterns {
		if p.matches(relPath) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p *ignorePattern) matches(relPath string) bool {
	if p.anchored {
		if !p.dirOnly {
			if ok, err := path.Match(p.pattern, relPath); err == nil && ok {
				return true
			}
		}
		// A directory pattern also covers everything beneath it.
		return strings.HasPrefix(relPath, p.pattern+"/")
	}

	// Unanchored patterns match any path segment. A dirOnly pattern only
	// matches segments that have something beneath them, so a plain file
	// sharing the directory's name stays visible.
	segs := strings.Split(relPath, "/")
	for i, seg := range segs {
		if p.dirOnly && i == len(segs)-1 {
			break
		}
		if ok, err := path.Match(p.pattern, seg); err == nil && ok {
			return true
		}
	}
	return false
}
