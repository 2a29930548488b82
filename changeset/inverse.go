package changeset

// Inverse returns the value change that undoes c, given the value current
// immediately before c was applied. The result, applied after c, always
// restores current (the invertibility law from spec §8) — except an
// unanchored set, which is a blind overwrite with no record of what it
// replaced, and so can only invert back to absent.
func Inverse(current Value, c ValueChange) ValueChange { //nolint:ireturn
	switch v := c.(type) {
	case Set:
		if v.HasPrev {
			return NewAnchoredSet(v.Prev, v.New)
		}
		return Clear{Prev: v.New}
	case Clear:
		return NewSet(v.Prev)
	case Seq:
		return Seq{Mutations: inverseMutations(current, v.Mutations)}
	case Patch:
		attrs, ok := relationAttrs(current)
		if !ok {
			attrs = Fieldset{}
		}
		return Patch{Changeset: InverseChangeset(attrs, v.Changeset)}
	default:
		return nil
	}
}

// inverseMutations computes the inverse of a sequence of mutations applied
// left to right against current, by simulating the fold forward while
// building up the inverse list in reverse.
func inverseMutations(current Value, mutations []Mutation) []Mutation {
	var list []Value
	if lst, ok := current.([]Value); ok {
		list = append([]Value{}, lst...)
	}

	inverses := make([]Mutation, len(mutations))
	for i, m := range mutations {
		inv, next := inverseMutation(list, m)
		inverses[i] = inv
		list = next
	}

	// Reverse to undo in opposite order of application.
	out := make([]Mutation, len(inverses))
	for i, m := range inverses {
		out[len(inverses)-1-i] = m
	}
	return out
}

func inverseMutation(list []Value, m Mutation) (Mutation, []Value) {
	switch v := m.(type) {
	case Insert:
		pos := len(list)
		if v.Pos != nil {
			pos = *v.Pos
		}
		if pos < len(list) && valuesEqual(list[pos], v.Value) {
			// Toggle case: insert acted as a removal, so its inverse is
			// re-inserting the value at that position.
			out := make([]Value, 0, len(list)-1)
			out = append(out, list[:pos]...)
			out = append(out, list[pos+1:]...)
			return Insert{Value: v.Value, Pos: &pos}, out
		}
		out := make([]Value, 0, len(list)+1)
		out = append(out, list[:pos]...)
		out = append(out, v.Value)
		out = append(out, list[pos:]...)
		return Remove{Value: v.Value, Pos: &pos}, out
	case Remove:
		pos := len(list) - 1
		if v.Pos != nil {
			pos = *v.Pos
		}
		out := make([]Value, 0, len(list)-1)
		out = append(out, list[:pos]...)
		out = append(out, list[pos+1:]...)
		return Insert{Value: v.Value, Pos: &pos}, out
	case PatchMutation:
		var attrs Fieldset
		for _, elem := range list {
			if ref, ok := relationRef(elem); ok && ref == v.Ref {
				attrs, _ = relationAttrs(elem)
				break
			}
		}
		inv := InverseChangeset(attrs, v.Changeset)
		newAttrs, _ := ApplyChangeset(attrs, v.Changeset)
		out := make([]Value, len(list))
		for i, elem := range list {
			if ref, ok := relationRef(elem); ok && ref == v.Ref {
				out[i] = makeRelationTuple(v.Ref, newAttrs)
			} else {
				out[i] = elem
			}
		}
		return PatchMutation{Ref: v.Ref, Changeset: inv}, out
	default:
		return m, list
	}
}
