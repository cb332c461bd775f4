package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/siltvcs/silt/pkg/object"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// Init creates a new silt repository at path. It creates the .silt/
// directory structure: HEAD, objects/, refs/heads/, refs/tags/, and the
// reflog root. Returns an error if a .silt/ directory already exists.
func Init(path string) (*Repo, error) {
	siltDir := filepath.Join(path, ".silt")

	if _, err := os.Stat(siltDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", siltDir)
	}

	dirs := []string{
		filepath.Join(siltDir, "objects"),
		filepath.Join(siltDir, "refs", "heads"),
		filepath.Join(siltDir, "refs", "tags"),
		filepath.Join(siltDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(siltDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	return newRepo(path, siltDir), nil
}

// Open searches upward from path for a .silt/ directory and opens the
// repository. Returns an error if no .silt/ directory is found.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		siltDir := filepath.Join(cur, ".silt")
		info, err := os.Stat(siltDir)
		if err == nil && info.IsDir() {
			return newRepo(cur, siltDir), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a silt repository (or any parent up to /)")
		}
		cur = parent
	}
}

// Head reads .silt/HEAD. If the content starts with "ref: ", it returns the
// ref path (e.g., "refs/heads/main"). Otherwise it returns the raw content
// as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.SiltDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD. If HEAD is symbolic, resolve the target
//     ref (one level of indirection). Detached HEAD returns the raw hash.
//  2. If name starts with "refs/", read .silt/<name>.
//  3. Otherwise, try "refs/heads/<name>", then "refs/tags/<name>".
//
// A name with no binding fails with ErrUnknownRef.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		if head == "" {
			return "", fmt.Errorf("resolve ref %q: %w", name, ErrUnknownRef)
		}
		return object.Hash(head), nil
	}

	var candidates []string
	if strings.HasPrefix(name, "refs/") {
		candidates = []string{name}
	} else {
		candidates = []string{"refs/heads/" + name, "refs/tags/" + name}
	}

	for _, c := range candidates {
		data, err := os.ReadFile(filepath.Join(r.SiltDir, filepath.FromSlash(c)))
		if err == nil {
			return object.Hash(strings.TrimRight(string(data), "\n")), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve ref %q: %w", name, err)
		}
	}
	return "", fmt.Errorf("resolve ref %q: %w", name, ErrUnknownRef)
}

// ResolveTarget resolves a ref name or raw hash to a commit hash. It is
// the lookup used by commands that accept either form.
func (r *Repo) ResolveTarget(target string) (object.Hash, error) {
	if h, err := r.ResolveRef(target); err == nil {
		return h, nil
	} else if !errors.Is(err, ErrUnknownRef) {
		return "", err
	}
	if object.ValidHash(target) && r.Store.Has(object.Hash(target)) {
		return object.Hash(target), nil
	}
	return "", fmt.Errorf("resolve %q: %w", target, ErrUnknownRef)
}

// UpdateRef validates that h names an existing commit, then writes it to
// the named ref file. The validation makes a dangling branch impossible to
// create through this path.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	if _, err := r.Store.ReadCommit(h); err != nil {
		return fmt.Errorf("update ref %q: target %s: %w", name, h, ErrInvalidTarget)
	}
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref file under .silt/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the
// update only succeeds when the current ref hash matches it.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}

	refPath := filepath.Join(r.SiltDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name, ErrRefCASMismatch, expectedOld[0], oldHash,
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	r.Events.Info("ref moved", "ref", name, "old", string(oldHash), "new", string(h))

	if err := r.appendReflog(name, oldHash, h, "update"); err != nil {
		return fmt.Errorf("update ref %q: reflog: %w", name, err)
	}
	return nil
}

// acquireLock takes an exclusive lock file, retrying with a bounded wait.
// Contention past the deadline surfaces as ErrLockContention so callers
// can retry with backoff.
func acquireLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for %q: %w", lockPath, ErrLockContention)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// writeHead rewrites .silt/HEAD, attaching it to a branch ref or detaching
// it onto a raw hash.
func (r *Repo) writeHead(content string) error {
	headPath := filepath.Join(r.SiltDir, "HEAD")
	tmp, err := os.CreateTemp(r.SiltDir, ".head-tmp-*")
	if err != nil {
		return fmt.Errorf("write HEAD: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write HEAD: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write HEAD: close: %w", err)
	}
	if err := os.Rename(tmpName, headPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write HEAD: rename: %w", err)
	}
	return nil
}
