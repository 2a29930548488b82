package input

import "gitlab.com/tozd/go/errors"

// Sentinel errors returned by the input/validation shim.
var (
	// ErrUnknownType names the case of a create/update whose entity type
	// is not declared in the active schema. Validate reports that case
	// with schema.ErrUnknownType; nothing in this package returns this
	// sentinel.
	ErrUnknownType = errors.Base("unknown-type")

	// ErrUnknownField names the case of a field not declared on the
	// entity's type. Validate reports that case with
	// schema.ErrUnknownField; nothing in this package returns this sentinel.
	ErrUnknownField = errors.Base("unknown-field")

	// ErrTypeMismatch is returned when a normalized field value's Go
	// type does not match the field's declared scalar type.
	ErrTypeMismatch = errors.Base("type-mismatch")

	// ErrMissingRequiredField is returned when a create omits a field
	// the schema marks required and whose When condition is satisfied.
	ErrMissingRequiredField = errors.Base("missing-required-field")

	// ErrInvalidShape is returned when a create/update's raw JSON shape
	// carries neither a type+key nor a $ref. A relation value that is
	// neither a bare ref nor a [ref, attrs] tuple is passed through as is.
	ErrInvalidShape = errors.Base("invalid-input-shape")

	// ErrMissingTarget names the case of an update whose $ref does not
	// name an existing entity. Nothing in this package returns it; the
	// workspace reports that case with its own entity-not-found error.
	ErrMissingTarget = errors.Base("missing-target")
)
