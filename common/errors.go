package common

import "errors"

// Sentinel errors surfaced by the storage engine. KeyNotFound is reported
// as the boolean ok return from Read, not as an error value, and Delete of
// an absent key is a silent no-op; the sentinel is kept here for callers
// that want to compare against a stable value.
var (
	// ErrKeyNotFound indicates a read or delete found no mapping for the key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrEngineClosed indicates an operation was attempted after Close.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrCorruptPage indicates deserialization found an implausible
	// num_keys or an is_leaf flag outside {0,1}.
	ErrCorruptPage = errors.New("corrupt page")

	// ErrTreeInvariantViolated is a defensive check failure, e.g. a split
	// producing an imbalanced pair of halves. It signals a bug, not a
	// recoverable user error.
	ErrTreeInvariantViolated = errors.New("tree invariant violated")

	// ErrReentrantCall indicates the single-threaded engine was entered
	// reentrantly, which the engine forbids (see guard.go).
	ErrReentrantCall = errors.New("engine entered reentrantly")
)
