package changeset

import "gitlab.com/tozd/go/errors"

// Sentinel errors returned by the field-change algebra. Callers match
// against these with errors.Is; additional context is attached through
// errors.Details on the returned error.
var (
	// ErrUnknownChangeKind is returned when a value change or mutation
	// carries a kind that inverse/apply/squash/rebase do not recognize.
	ErrUnknownChangeKind = errors.Base("unknown-change-kind")

	// ErrPreconditionFailed is returned when apply's anchor check fails:
	// set's prev does not match the current value, clear's prev does not
	// match, a remove's value does not match the element removed, or a
	// mutation's position falls outside the current list.
	ErrPreconditionFailed = errors.Base("precondition-failed")

	// ErrNotAList is returned when a seq change is applied to a current
	// value that is neither null nor a list.
	ErrNotAList = errors.Base("not-a-list")

	// ErrNotARelation is returned when a patch change is applied to a
	// current value that is neither a bare reference nor a [ref, attrs]
	// relation tuple (a null current value included).
	ErrNotARelation = errors.Base("not-a-relation")

	// ErrRefNotFound is returned when a patch mutation's ref does not
	// match any element of the current list.
	ErrRefNotFound = errors.Base("ref-not-found")

	// ErrRebaseConflict is returned when rebase cannot produce a change
	// that unambiguously achieves the original intent after base.
	ErrRebaseConflict = errors.Base("rebase-conflict")
)
