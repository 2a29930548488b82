package patchdsl

import "gitlab.com/tozd/go/errors"

// Sentinel errors returned by the patch DSL parser.
var (
	// ErrInvalidToken is returned when a token does not match
	// field[:accessor](op)value.
	ErrInvalidToken = errors.Base("invalid-patch-token")

	// ErrDuplicateFieldPatch is returned when two tokens for the same
	// field carry incompatible operations (e.g. a set and an insert).
	ErrDuplicateFieldPatch = errors.Base("duplicate-field-patch")

	// ErrMissingRemoveValue is returned when a `--` token, or a `-=` token
	// with no value, names a position outside the field's current list, so
	// Remove.Value (needed for apply's match assertion) cannot be resolved.
	ErrMissingRemoveValue = errors.Base("missing-remove-value")
)
