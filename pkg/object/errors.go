package object

import "errors"

// Sentinel errors for the store and the decoders. Callers match with
// errors.Is; every return site wraps these with the offending hash or
// parse context.
var (
	// ErrNotFound is returned when no object with the requested hash exists.
	ErrNotFound = errors.New("object not found")

	// ErrCorruptObject is returned when stored bytes do not parse as the
	// declared type's canonical grammar. Never silently repaired.
	ErrCorruptObject = errors.New("corrupt object")

	// ErrHashMismatch is returned when the digest recomputed over retrieved
	// bytes disagrees with the requested hash.
	ErrHashMismatch = errors.New("object hash mismatch")
)
