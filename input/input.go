// Package input converts user-supplied, JSON-shaped changeset requests into
// the internal field-changeset form and validates the result against the
// active schema (C9).
package input

import (
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/identifier"
	"gitlab.com/binder/binder/schema"
)

// Create is a normalized create request: a fresh or caller-supplied uid for
// an entity of Type, with every field normalized to an unanchored set
// (spec §4.9).
type Create struct {
	Type   string
	UID    string
	Fields changeset.FieldChangeset
}

// Update is a normalized update request targeting an existing entity by
// ref, with each field normalized per normalizeValueChange.
type Update struct {
	Ref    string
	Fields changeset.FieldChangeset
}

// NormalizeCreate converts a raw `{ type, key, ...fields }` request (key is
// the entity's uid field, conventionally named "key" or "uid" in raw) into
// a Create. uidField names the raw field carrying the caller-supplied uid,
// if any; when absent or empty a fresh one is generated.
func NormalizeCreate(raw map[string]interface{}, typeField, uidField string) (Create, errors.E) {
	typeName, ok := raw[typeField].(string)
	if !ok || typeName == "" {
		errE := errors.WithStack(ErrInvalidShape)
		errors.Details(errE)["reason"] = "missing type"
		return Create{}, errE
	}

	uid, _ := raw[uidField].(string)
	if uid == "" {
		uid = identifier.NewRandom()
	}

	fields := make(changeset.FieldChangeset, len(raw))
	for k, v := range raw {
		if k == typeField || k == uidField {
			continue
		}
		fields[k] = changeset.NewSet(v)
	}

	return Create{Type: typeName, UID: uid, Fields: fields}, nil
}

// NormalizeUpdate converts a raw `{ $ref, ...fields }` request into an
// Update, normalizing each field via normalizeValueChange.
func NormalizeUpdate(raw map[string]interface{}, refField string) (Update, errors.E) {
	ref, ok := raw[refField].(string)
	if !ok || ref == "" {
		errE := errors.WithStack(ErrInvalidShape)
		errors.Details(errE)["reason"] = "missing $ref"
		return Update{}, errE
	}

	fields := make(changeset.FieldChangeset, len(raw))
	for k, v := range raw {
		if k == refField {
			continue
		}
		vc, errE := normalizeValueChange(v)
		if errE != nil {
			errors.Details(errE)["field"] = k
			return Update{}, errE
		}
		fields[k] = vc
	}

	return Update{Ref: ref, Fields: fields}, nil
}

// normalizeValueChange implements spec §4.9's normalize_value_change: a
// plain scalar becomes an unanchored set, a list of [kind, ...] triples
// becomes a seq of mutations, and an object becomes a patch.
func normalizeValueChange(raw interface{}) (changeset.ValueChange, errors.E) { //nolint:ireturn
	switch v := raw.(type) {
	case []interface{}:
		if isMutationTriples(v) {
			mutations := make([]changeset.Mutation, 0, len(v))
			for _, item := range v {
				m, errE := normalizeMutationTriple(item.([]interface{}))
				if errE != nil {
					return nil, errE
				}
				mutations = append(mutations, m)
			}
			return changeset.Seq{Mutations: mutations}, nil
		}
		return changeset.NewSet(v), nil
	case map[string]interface{}:
		cs, errE := normalizeNestedChangeset(v)
		if errE != nil {
			return nil, errE
		}
		return changeset.Patch{Changeset: cs}, nil
	default:
		return changeset.NewSet(v), nil
	}
}

// normalizeNestedChangeset recursively normalizes a patch target's attrs,
// the same way a top-level update's fields are normalized.
func normalizeNestedChangeset(m map[string]interface{}) (changeset.FieldChangeset, errors.E) {
	cs := make(changeset.FieldChangeset, len(m))
	for k, v := range m {
		vc, errE := normalizeValueChange(v)
		if errE != nil {
			errors.Details(errE)["field"] = k
			return nil, errE
		}
		cs[k] = vc
	}
	return cs, nil
}

// isMutationTriples reports whether list is shaped like a seq mutation
// list: every element a non-empty array whose first entry is a known
// mutation kind keyword, rather than a plain list value to set.
func isMutationTriples(list []interface{}) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		tuple, ok := item.([]interface{})
		if !ok || len(tuple) == 0 {
			return false
		}
		kind, ok := tuple[0].(string)
		if !ok {
			return false
		}
		switch changeset.MutationKind(kind) {
		case changeset.MutationInsert, changeset.MutationRemove, changeset.MutationPatch:
		default:
			return false
		}
	}
	return true
}

func normalizeMutationTriple(tuple []interface{}) (changeset.Mutation, errors.E) { //nolint:ireturn
	kind := changeset.MutationKind(tuple[0].(string)) //nolint:forcetypeassert
	switch kind {
	case changeset.MutationInsert:
		var value interface{}
		if len(tuple) > 1 {
			value = normalizeRelationValue(tuple[1])
		}
		pos := intArg(tuple, 2)
		return changeset.Insert{Value: value, Pos: pos}, nil
	case changeset.MutationRemove:
		var value interface{}
		if len(tuple) > 1 {
			value = normalizeRelationValue(tuple[1])
		}
		pos := intArg(tuple, 2)
		return changeset.Remove{Value: value, Pos: pos}, nil
	case changeset.MutationPatch:
		ref, _ := tuple[1].(string)
		var cs changeset.FieldChangeset
		if len(tuple) > 2 {
			m, ok := tuple[2].(map[string]interface{})
			if !ok {
				errE := errors.WithStack(ErrInvalidShape)
				errors.Details(errE)["reason"] = "patch triple's third element must be an object"
				return nil, errE
			}
			var errE errors.E
			cs, errE = normalizeNestedChangeset(m)
			if errE != nil {
				return nil, errE
			}
		}
		return changeset.PatchMutation{Ref: ref, Changeset: cs}, nil
	default:
		errE := errors.WithStack(ErrInvalidShape)
		errors.Details(errE)["kind"] = string(kind)
		return nil, errE
	}
}

func intArg(tuple []interface{}, idx int) *int {
	if idx >= len(tuple) || tuple[idx] == nil {
		return nil
	}
	f, ok := tuple[idx].(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

// normalizeRelationValue leaves a bare string ref untouched and recognizes
// a [ref, attrs] pair as a relation tuple, per spec §4.9.
func normalizeRelationValue(v interface{}) interface{} {
	tuple, ok := v.([]interface{})
	if !ok || len(tuple) != 2 {
		return v
	}
	if _, ok := tuple[0].(string); !ok {
		return v
	}
	if _, ok := tuple[1].(map[string]interface{}); !ok {
		return v
	}
	return tuple
}

// Validate checks fields against typeName's schema: every field must be
// declared, its normalized value must match the declared scalar type, and
// — on create — every required field whose When condition is satisfied
// must be present (spec §4.9).
func Validate(s *schema.Schema, typeName string, fields changeset.FieldChangeset, isCreate bool) errors.E {
	typeDef, errE := s.Type(typeName)
	if errE != nil {
		return errE
	}

	present := make(map[string]schema.Value, len(fields))
	for name, vc := range fields {
		fd, errE := s.Field(typeName, name) //nolint:govet
		if errE != nil {
			return errE
		}
		value, errE := settledValue(vc) //nolint:govet
		if errE != nil {
			errors.Details(errE)["field"] = name
			return errE
		}
		present[name] = value
		if value == nil {
			continue
		}
		if errE := checkType(fd, value); errE != nil { //nolint:govet
			errors.Details(errE)["field"] = name
			return errE
		}
	}

	if isCreate {
		for _, fd := range typeDef.Fields {
			if !fd.Required || !fd.When.Satisfied(present) {
				continue
			}
			if _, ok := fields[fd.Name]; !ok {
				errE := errors.WithStack(ErrMissingRequiredField)
				errors.Details(errE)["type"] = typeName
				errors.Details(errE)["field"] = fd.Name
				return errE
			}
		}
	}

	return nil
}

// settledValue returns the value a set change settles on, for
// type-checking and when-condition evaluation; clear, seq and patch carry
// no single value to check, yield nil, and are skipped.
func settledValue(vc changeset.ValueChange) (schema.Value, errors.E) {
	switch v := vc.(type) {
	case changeset.Set:
		return v.New, nil
	case changeset.Clear, changeset.Seq, changeset.Patch:
		return nil, nil
	default:
		errE := errors.WithStack(changeset.ErrUnknownChangeKind)
		errors.Details(errE)["change"] = vc
		return nil, errE
	}
}

func checkType(fd schema.FieldDef, value schema.Value) errors.E {
	if fd.List {
		list, ok := value.([]interface{})
		if !ok {
			errE := errors.WithStack(ErrTypeMismatch)
			errors.Details(errE)["expected"] = "list"
			return errE
		}
		for _, elem := range list {
			if errE := checkScalar(fd, elem); errE != nil {
				return errE
			}
		}
		return nil
	}
	return checkScalar(fd, value)
}

func checkScalar(fd schema.FieldDef, value schema.Value) errors.E {
	switch fd.Type {
	case schema.TypeString, schema.TypeText:
		if _, ok := value.(string); !ok {
			return typeMismatch("string")
		}
	case schema.TypeInteger, schema.TypeNumber:
		if _, ok := value.(float64); !ok {
			return typeMismatch("number")
		}
	case schema.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return typeMismatch("boolean")
		}
	case schema.TypeRef:
		if !isRelationValue(value) {
			return typeMismatch("ref")
		}
	}
	return nil
}

func isRelationValue(value schema.Value) bool {
	if _, ok := value.(string); ok {
		return true
	}
	tuple, ok := value.([]interface{})
	if !ok || len(tuple) != 2 {
		return false
	}
	_, refOK := tuple[0].(string)
	_, attrsOK := tuple[1].(map[string]interface{})
	return refOK && attrsOK
}

func typeMismatch(expected string) errors.E {
	errE := errors.WithStack(ErrTypeMismatch)
	errors.Details(errE)["expected"] = expected
	return errE
}
