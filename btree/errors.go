package btree

import (
	"github.com/pkg/errors"

	"github.com/clamshell-db/kvbtree/common"
)

// errInternal wraps a programmer-error condition that should never occur
// given the caller contracts within this package (e.g. splitting a page
// that isn't full). It is distinct from errInvariant: this is a caller
// misuse, not a corrupted tree.
func errInternal(msg string) error {
	return errors.New(msg)
}

// errInvariant reports a tree-shape invariant that unexpectedly failed to
// hold after a mutation, wrapping the shared sentinel so callers can
// detect the class with errors.Is.
func errInvariant(msg string) error {
	return errors.Wrap(common.ErrTreeInvariantViolated, msg)
}
