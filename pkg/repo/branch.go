package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/siltvcs/silt/pkg/object"
)

// CreateBranch creates a new branch pointing at the given target commit.
// Returns an error if the branch already exists or the target is not a
// commit.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if _, err := r.Store.ReadCommit(target); err != nil {
		return fmt.Errorf("create branch %q: target %s: %w", name, target, ErrInvalidTarget)
	}

	refName := "refs/heads/" + name
	if err := r.UpdateRefCAS(refName, target, ""); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create branch: branch %q already exists", name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes the branch ref file .silt/refs/heads/<name>.
// Returns an error if the branch is the current branch or does not exist.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}

	refPath := filepath.Join(r.SiltDir, "refs", "heads", name)
	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete branch: branch %q: %w", name, ErrUnknownRef)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches reads .silt/refs/heads/ and returns the branch names sorted
// alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	headsDir := filepath.Join(r.SiltDir, "refs", "heads")

	entries, err := os.ReadDir(headsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list branches: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch reads HEAD and returns the branch name if HEAD is a
// symbolic ref. If HEAD is detached, it returns "".
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}

	const prefix = "refs/heads/"
	if strings.HasPrefix(head, prefix) {
		return strings.TrimPrefix(head, prefix), nil
	}
	return "", nil
}

func validateRefName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(name, " \t\n~^:?*[\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid name %q", name)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}
