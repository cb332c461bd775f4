package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/siltvcs/silt/pkg/object"
)

// CreateTag creates or updates a lightweight tag ref under refs/tags/.
// A tag is a plain name→commit binding; there is no tag object type.
func (r *Repo) CreateTag(name string, target object.Hash, force bool) error {
	name = strings.TrimSpace(name)
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}

	refName := "refs/tags/" + name
	if !force {
		if _, err := r.ResolveRef(refName); err == nil {
			return fmt.Errorf("create tag: tag %q already exists", name)
		}
	}
	if err := r.UpdateRef(refName, target); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// DeleteTag removes the tag ref file .silt/refs/tags/<name>.
func (r *Repo) DeleteTag(name string) error {
	refPath := filepath.Join(r.SiltDir, "refs", "tags", name)
	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete tag: tag %q: %w", name, ErrUnknownRef)
		}
		return fmt.Errorf("delete tag %q: %w", name, err)
	}
	return nil
}

// ListTags returns tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	refs, err := r.ListRefs("tags")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	var names []string
	for name := range refs {
		names = append(names, strings.TrimPrefix(name, "tags/"))
	}
	sort.Strings(names)
	return names, nil
}
