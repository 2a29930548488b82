package binder

import "gitlab.com/tozd/go/errors"

// Sentinel errors returned by the workspace operations layered over the
// log store, materializer, and input shim.
var (
	// ErrEntityNotFound is returned when an update, delete, or read names
	// a ref that does not resolve to a live (non-tombstoned) entity.
	ErrEntityNotFound = errors.Base("entity-not-found")

	// ErrNothingToUndo is returned when Undo is called on an empty log. A
	// request for more transactions than the log holds undoes all of them.
	ErrNothingToUndo = errors.Base("nothing-to-undo")

	// ErrNothingToRedo is returned when Redo is called while the undo log
	// holds no ids. A request for more than it holds redoes those it holds.
	ErrNothingToRedo = errors.Base("nothing-to-redo")
)
