package repo

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/siltvcs/silt/pkg/object"
)

// Sentinel errors surfaced by repository operations. Every return site
// wraps these with the offending ref name, path, or hash.
var (
	// ErrUnknownRef is returned when a name resolves to neither a direct
	// nor a symbolic ref.
	ErrUnknownRef = errors.New("unknown ref")

	// ErrInvalidTarget is returned when a ref update names a hash that does
	// not resolve to an existing commit.
	ErrInvalidTarget = errors.New("ref target is not a commit")

	// ErrWouldOverwrite is returned when a checkout would clobber
	// uncommitted local changes.
	ErrWouldOverwrite = errors.New("would overwrite local changes")

	// ErrLockContention is returned when another operation holds a required
	// lock past the bounded wait.
	ErrLockContention = errors.New("lock contention")

	// ErrRefCASMismatch is returned when a compare-and-swap ref update finds
	// a different current value than expected.
	ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")
)

// Repo represents an opened silt repository. All mutating operations on a
// single Repo are expected to be serialized by the caller; on-disk state is
// additionally guarded by per-resource lock files so that concurrent
// processes cannot interleave half-written refs or index content.
type Repo struct {
	RootDir string        // working directory root
	SiltDir string        // .silt/ directory
	Store   *object.Store // content-addressed object store

	// Events receives structured telemetry (ref moved, conflict detected).
	// It never influences control flow; the default discards everything.
	Events *slog.Logger

	mergeTraversalStateOnce sync.Once
	mergeTraversalState     *mergeBaseTraversalState
}

func newRepo(rootDir, siltDir string) *Repo {
	return &Repo{
		RootDir: rootDir,
		SiltDir: siltDir,
		Store:   object.NewStore(siltDir),
		Events:  slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
}

func (r *Repo) getMergeTraversalState() *mergeBaseTraversalState {
	r.mergeTraversalStateOnce.Do(func() {
		r.mergeTraversalState = newMergeBaseTraversalState()
	})
	return r.mergeTraversalState
}
