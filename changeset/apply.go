package changeset

import "gitlab.com/tozd/go/errors"

// Apply applies a single value change to current, returning the resulting
// value. A nil result means the field is now absent.
func Apply(current Value, c ValueChange) (Value, errors.E) { //nolint:ireturn
	switch v := c.(type) {
	case Set:
		if v.HasPrev && !valuesEqual(current, v.Prev) {
			errE := errors.WithStack(ErrPreconditionFailed)
			errors.Details(errE)["change"] = "set"
			errors.Details(errE)["current"] = current
			errors.Details(errE)["prev"] = v.Prev
			return nil, errE
		}
		return v.New, nil
	case Clear:
		if !valuesEqual(current, v.Prev) {
			errE := errors.WithStack(ErrPreconditionFailed)
			errors.Details(errE)["change"] = "clear"
			errors.Details(errE)["current"] = current
			errors.Details(errE)["prev"] = v.Prev
			return nil, errE
		}
		return nil, nil
	case Seq:
		return applySeq(current, v.Mutations)
	case Patch:
		return applyPatch(current, v.Changeset)
	default:
		errE := errors.WithStack(ErrUnknownChangeKind)
		errors.Details(errE)["change"] = c
		return nil, errE
	}
}

func applySeq(current Value, mutations []Mutation) (Value, errors.E) { //nolint:ireturn
	var list []Value
	switch t := current.(type) {
	case nil:
		list = nil
	case []Value:
		list = append([]Value{}, t...)
	default:
		errE := errors.WithStack(ErrNotAList)
		errors.Details(errE)["current"] = current
		return nil, errE
	}

	for i, m := range mutations {
		var errE errors.E
		list, errE = applyMutation(list, m)
		if errE != nil {
			errors.Details(errE)["mutation"] = i
			return nil, errE
		}
	}

	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

func applyMutation(list []Value, m Mutation) ([]Value, errors.E) {
	switch t := m.(type) {
	case Insert:
		return applyInsert(list, t)
	case Remove:
		return applyRemove(list, t)
	case PatchMutation:
		return applyPatchMutation(list, t)
	default:
		errE := errors.WithStack(ErrUnknownChangeKind)
		errors.Details(errE)["mutation"] = m
		return nil, errE
	}
}

func applyInsert(list []Value, m Insert) ([]Value, errors.E) {
	if m.Pos == nil {
		return append(list, m.Value), nil
	}
	pos := *m.Pos
	if pos < 0 || pos > len(list) {
		errE := errors.WithStack(ErrPreconditionFailed)
		errors.Details(errE)["mutation"] = "insert"
		errors.Details(errE)["pos"] = pos
		errors.Details(errE)["len"] = len(list)
		return nil, errE
	}
	// Toggle rule: inserting a value already present at pos removes it
	// instead, making replay of an insert idempotent. Only applies when
	// pos is strictly within the current list.
	if pos < len(list) && valuesEqual(list[pos], m.Value) {
		out := make([]Value, 0, len(list)-1)
		out = append(out, list[:pos]...)
		out = append(out, list[pos+1:]...)
		return out, nil
	}
	out := make([]Value, 0, len(list)+1)
	out = append(out, list[:pos]...)
	out = append(out, m.Value)
	out = append(out, list[pos:]...)
	return out, nil
}

func applyRemove(list []Value, m Remove) ([]Value, errors.E) {
	pos := len(list) - 1
	if m.Pos != nil {
		pos = *m.Pos
	}
	if pos < 0 || pos >= len(list) {
		errE := errors.WithStack(ErrPreconditionFailed)
		errors.Details(errE)["mutation"] = "remove"
		errors.Details(errE)["pos"] = pos
		errors.Details(errE)["len"] = len(list)
		return nil, errE
	}
	if !valuesEqual(list[pos], m.Value) {
		errE := errors.WithStack(ErrPreconditionFailed)
		errors.Details(errE)["mutation"] = "remove"
		errors.Details(errE)["expected"] = m.Value
		errors.Details(errE)["actual"] = list[pos]
		return nil, errE
	}
	out := make([]Value, 0, len(list)-1)
	out = append(out, list[:pos]...)
	out = append(out, list[pos+1:]...)
	return out, nil
}

func applyPatchMutation(list []Value, m PatchMutation) ([]Value, errors.E) {
	idx := -1
	for i, elem := range list {
		if ref, ok := relationRef(elem); ok && ref == m.Ref {
			idx = i
			break
		}
	}
	if idx == -1 {
		errE := errors.WithStack(ErrRefNotFound)
		errors.Details(errE)["ref"] = m.Ref
		return nil, errE
	}
	attrs, ok := relationAttrs(list[idx])
	if !ok {
		errE := errors.WithStack(ErrNotARelation)
		errors.Details(errE)["ref"] = m.Ref
		return nil, errE
	}
	newAttrs, errE := ApplyChangeset(attrs, m.Changeset)
	if errE != nil {
		return nil, errE
	}
	out := append([]Value{}, list...)
	out[idx] = makeRelationTuple(m.Ref, newAttrs)
	return out, nil
}

func applyPatch(current Value, cs FieldChangeset) (Value, errors.E) { //nolint:ireturn
	ref, ok := relationRef(current)
	if !ok {
		if current == nil {
			errE := errors.WithStack(ErrNotARelation)
			errors.Details(errE)["current"] = current
			return nil, errE
		}
		errE := errors.WithStack(ErrNotARelation)
		errors.Details(errE)["current"] = current
		return nil, errE
	}
	attrs, ok := relationAttrs(current)
	if !ok {
		errE := errors.WithStack(ErrNotARelation)
		errors.Details(errE)["current"] = current
		return nil, errE
	}
	newAttrs, errE := ApplyChangeset(attrs, cs)
	if errE != nil {
		return nil, errE
	}
	return makeRelationTuple(ref, newAttrs), nil
}
