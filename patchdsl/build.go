package patchdsl

import (
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/schema"
)

// FieldLookup resolves a field name to its schema definition, for type
// coercion and delimiter selection.
type FieldLookup func(field string) (schema.FieldDef, errors.E)

// pendingOp is one token's contribution to a field, before cross-token
// merging and (for `-=`/`--`) resolution against the live fieldset. pos
// resolution is deferred to buildMutation, which alone knows the current
// list's length (needed for the "last" accessor).
type pendingOp struct {
	op       Op
	accessor string
	isPos    bool
	ref      string
	value    interface{}
	raw      string // original token text, for error messages
}

// Build parses a set of DSL tokens into a field changeset, merging
// compatible list operations on the same field and resolving `-=`/`--`
// removals against current (the entity's live fieldset, nil for a create)
// to fill in the value apply's match assertion requires (spec §4.8, §4.9).
func Build(tokens []string, lookup FieldLookup, current changeset.Fieldset) (changeset.FieldChangeset, errors.E) {
	byField := map[string][]pendingOp{}
	order := []string{}

	for _, raw := range tokens {
		tok, errE := ParseToken(raw)
		if errE != nil {
			return nil, errE
		}
		fd, errE := lookup(tok.Field)
		if errE != nil {
			return nil, errE
		}
		pend, errE := resolveToken(fd, tok)
		if errE != nil {
			return nil, errE
		}
		if _, ok := byField[tok.Field]; !ok {
			order = append(order, tok.Field)
		}
		byField[tok.Field] = append(byField[tok.Field], pend)
	}

	out := changeset.FieldChangeset{}
	for _, field := range order {
		vc, errE := mergeField(field, byField[field], current[field])
		if errE != nil {
			return nil, errE
		}
		out[field] = vc
	}
	return out, nil
}

// isPositionalAccessor reports whether accessor names a list position
// rather than a patch target ref: empty, "0", "first", "last", or an
// integer (spec §4.8).
func isPositionalAccessor(accessor string) bool {
	switch accessor {
	case "", "0", "first", "last":
		return true
	}
	_, err := strconv.Atoi(accessor)
	return err == nil
}

func resolveToken(fd schema.FieldDef, tok Token) (pendingOp, errors.E) {
	isPos := isPositionalAccessor(tok.Accessor)

	switch tok.Op {
	case OpSet:
		value, errE := coerceTokenValue(fd, tok.Value)
		if errE != nil {
			return pendingOp{}, errE
		}
		return pendingOp{op: OpSet, value: value, raw: tok.Value}, nil
	case OpInsert:
		if isLiteral(tok.Value) && !isPos {
			nested, errE := parseLiteral(tok.Value)
			if errE != nil {
				return pendingOp{}, errE
			}
			cs, errE := normalizeNested(nested)
			if errE != nil {
				return pendingOp{}, errE
			}
			return pendingOp{op: OpInsert, ref: tok.Accessor, value: cs, raw: tok.Value}, nil
		}
		value, errE := coerceTokenValue(fd, tok.Value)
		if errE != nil {
			return pendingOp{}, errE
		}
		return pendingOp{op: OpInsert, accessor: tok.Accessor, isPos: isPos, value: value, raw: tok.Value}, nil
	case OpRemove:
		var value interface{}
		hasValue := tok.Value != ""
		if hasValue {
			v, errE := coerceTokenValue(fd, tok.Value)
			if errE != nil {
				return pendingOp{}, errE
			}
			value = v
		}
		if !isPos {
			return pendingOp{op: OpRemove, ref: tok.Accessor, value: value, raw: tok.Value}, nil
		}
		return pendingOp{op: OpRemove, accessor: tok.Accessor, isPos: true, value: value, raw: tok.Value}, nil
	case OpUnset:
		return pendingOp{op: OpUnset, accessor: tok.Accessor, isPos: true, raw: tok.Value}, nil
	default:
		errE := errors.WithStack(ErrInvalidToken)
		errors.Details(errE)["op"] = string(tok.Op)
		return pendingOp{}, errE
	}
}

func coerceTokenValue(fd schema.FieldDef, value string) (interface{}, errors.E) {
	if isLiteral(value) {
		return parseLiteral(value)
	}
	if fd.List && strings.Contains(value, fd.ListDelimiter()) {
		parts := strings.Split(value, fd.ListDelimiter())
		out := make([]interface{}, len(parts))
		for i, part := range parts {
			v, errE := coerceScalar(fd, part)
			if errE != nil {
				return nil, errE
			}
			out[i] = v
		}
		return out, nil
	}
	return coerceScalar(fd, value)
}

// normalizeNested wraps a decoded YAML/JSON object's fields as an unanchored
// set changeset, the default normalization the input shim applies to plain
// scalars (spec §4.9).
func normalizeNested(v interface{}) (changeset.FieldChangeset, errors.E) {
	m, ok := v.(map[string]interface{})
	if !ok {
		errE := errors.WithStack(ErrInvalidToken)
		errors.Details(errE)["reason"] = "patch literal must be an object"
		return nil, errE
	}
	cs := make(changeset.FieldChangeset, len(m))
	for k, val := range m {
		cs[k] = changeset.NewSet(val)
	}
	return cs, nil
}

// mergeField combines every pending operation on one field into a single
// ValueChange, failing ErrDuplicateFieldPatch when a set collides with a
// list operation (spec §4.8).
func mergeField(field string, ops []pendingOp, current interface{}) (changeset.ValueChange, errors.E) { //nolint:ireturn
	hasSet := false
	hasList := false
	for _, op := range ops {
		switch op.op {
		case OpSet:
			hasSet = true
		case OpInsert, OpRemove, OpUnset:
			hasList = true
		}
	}
	if hasSet && hasList || (hasSet && len(ops) > 1) {
		errE := errors.WithStack(ErrDuplicateFieldPatch)
		errors.Details(errE)["field"] = field
		return nil, errE
	}

	if hasSet {
		return changeset.NewSet(ops[0].value), nil
	}

	list, _ := current.([]interface{})
	mutations := make([]changeset.Mutation, 0, len(ops))
	for _, op := range ops {
		m, errE := buildMutation(field, op, list)
		if errE != nil {
			return nil, errE
		}
		mutations = append(mutations, m)
	}
	return changeset.Seq{Mutations: mutations}, nil
}

func buildMutation(field string, op pendingOp, list []interface{}) (changeset.Mutation, errors.E) { //nolint:ireturn
	var pos *int
	if op.isPos && op.accessor != "" {
		p, _ := accessorPos(op.accessor, len(list))
		pos = &p
	}

	switch op.op {
	case OpInsert:
		if op.ref != "" {
			cs, _ := op.value.(changeset.FieldChangeset)
			return changeset.PatchMutation{Ref: op.ref, Changeset: cs}, nil
		}
		return changeset.Insert{Value: op.value, Pos: pos}, nil
	case OpRemove, OpUnset:
		if op.isPos && op.accessor == "last" {
			p := len(list) - 1
			pos = &p
		}
		if op.value != nil {
			return changeset.Remove{Value: op.value, Pos: pos}, nil
		}
		value, errE := resolveListElement(field, pos, list)
		if errE != nil {
			return nil, errE
		}
		return changeset.Remove{Value: value, Pos: pos}, nil
	default:
		errE := errors.WithStack(ErrInvalidToken)
		errors.Details(errE)["field"] = field
		return nil, errE
	}
}

func resolveListElement(field string, pos *int, list []interface{}) (interface{}, errors.E) {
	idx := len(list) - 1
	if pos != nil {
		idx = *pos
	}
	if idx < 0 || idx >= len(list) {
		errE := errors.WithStack(ErrMissingRemoveValue)
		errors.Details(errE)["field"] = field
		errors.Details(errE)["pos"] = idx
		return nil, errE
	}
	return list[idx], nil
}
