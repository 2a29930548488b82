package changeset

// Squash combines two value changes applied in sequence (a then b) into a
// single equivalent change. It returns nil when the combination is the
// empty change (the field ends up exactly as it started), which callers
// drop from their changeset (spec §8).
func Squash(a, b ValueChange) ValueChange { //nolint:ireturn,cyclop
	switch av := a.(type) {
	case Set:
		switch bv := b.(type) {
		case Set:
			return squashSetLike(av.New, av.Prev, av.HasPrev, bv.New, bv.Prev)
		case Clear:
			return squashSetLike(av.New, av.Prev, av.HasPrev, nil, bv.Prev)
		case Seq:
			return materializeWrap(av.New, av.Prev, av.HasPrev, b)
		case Patch:
			return materializeWrap(av.New, av.Prev, av.HasPrev, b)
		}
	case Clear:
		switch bv := b.(type) {
		case Set:
			return squashSetLike(nil, av.Prev, true, bv.New, bv.Prev)
		case Clear:
			return squashSetLike(nil, av.Prev, true, nil, bv.Prev)
		default:
			return materializeWrap(nil, av.Prev, true, b)
		}
	case Seq:
		switch bv := b.(type) {
		case Seq:
			merged := squashSeqMutations(av.Mutations, bv.Mutations)
			if len(merged) == 0 {
				return nil
			}
			return Seq{Mutations: merged}
		case Set, Clear:
			return b
		default:
			return b
		}
	case Patch:
		switch bv := b.(type) {
		case Patch:
			merged := SquashChangeset(av.Changeset, bv.Changeset)
			if len(merged) == 0 {
				return nil
			}
			return Patch{Changeset: merged}
		default:
			return b
		}
	}
	return b
}

// squashSetLike combines two set/clear changes applied in sequence, treating
// clear as a set of nil. Cancellation (b undoes a exactly) is checked first:
// without that ordering, a b that both re-anchors on a's effect and happens
// to restore a's original value would wrongly combine instead of vanishing.
func squashSetLike(aNew, aPrev Value, aHasPrev bool, bNew, bPrev Value) ValueChange { //nolint:ireturn
	if aHasPrev && valuesEqual(bNew, aPrev) {
		return nil
	}
	if bNew == nil {
		return Clear{Prev: aPrev}
	}
	return Set{New: bNew, Prev: aPrev, HasPrev: aHasPrev}
}

// materializeWrap folds b onto the known value baseNew (the effect of a
// prior set/clear), then wraps the result back in a fresh anchored set or
// clear preserving the original anchor — the "set|clear then seq or patch"
// squash rule (spec §4.1). b is asserted to be Seq or Patch; anything else
// passes through unchanged since it is not a defined squash combination.
func materializeWrap(baseNew, anchor Value, hasAnchor bool, b ValueChange) ValueChange { //nolint:ireturn
	var folded Value
	switch bv := b.(type) {
	case Seq:
		var errE error
		folded, errE = applySeq(baseNew, bv.Mutations)
		if errE != nil {
			return b
		}
	case Patch:
		attrs, ok := relationAttrs(baseNew)
		if !ok {
			return b
		}
		newAttrs, errE := ApplyChangeset(attrs, bv.Changeset)
		if errE != nil {
			return b
		}
		ref, ok := relationRef(baseNew)
		if !ok {
			return b
		}
		folded = makeRelationTuple(ref, newAttrs)
	default:
		return b
	}

	if folded == nil {
		return Clear{Prev: anchor}
	}
	return Set{New: folded, Prev: anchor, HasPrev: hasAnchor}
}

// squashSeqMutations combines two already-normalized mutation lists applied
// in sequence. A Remove in the second list that targets the same explicit
// position and value as an Insert already present cancels it, and every
// later mutation (by list order) whose explicit position exceeds the
// cancelled position shifts down by one to account for the list being one
// element shorter (spec §8 worked example).
func squashSeqMutations(a, b []Mutation) []Mutation {
	working := append([]Mutation{}, a...)

	for _, bm := range b {
		switch m := bm.(type) {
		case Remove:
			if m.Pos == nil {
				working = append(working, m)
				continue
			}
			idx := findCancellableInsert(working, m)
			if idx < 0 {
				working = append(working, m)
				continue
			}
			cancelledPos := *working[idx].(Insert).Pos //nolint:forcetypeassert
			working = append(working[:idx], working[idx+1:]...)
			for i := idx; i < len(working); i++ {
				working[i] = shiftMutationPos(working[i], cancelledPos)
			}
		case PatchMutation:
			if idx := findPatchForRef(working, m.Ref); idx >= 0 {
				existing := working[idx].(PatchMutation) //nolint:forcetypeassert
				working[idx] = PatchMutation{
					Ref:       m.Ref,
					Changeset: SquashChangeset(existing.Changeset, m.Changeset),
				}
			} else {
				working = append(working, m)
			}
		default:
			working = append(working, m)
		}
	}

	return working
}

func findCancellableInsert(working []Mutation, rm Remove) int {
	for i := len(working) - 1; i >= 0; i-- {
		ins, ok := working[i].(Insert)
		if !ok || ins.Pos == nil {
			continue
		}
		if *ins.Pos == *rm.Pos && valuesEqual(ins.Value, rm.Value) {
			return i
		}
	}
	return -1
}

func findPatchForRef(working []Mutation, ref string) int {
	for i, m := range working {
		if pm, ok := m.(PatchMutation); ok && pm.Ref == ref {
			return i
		}
	}
	return -1
}

func shiftMutationPos(m Mutation, cancelledPos int) Mutation {
	switch v := m.(type) {
	case Insert:
		if v.Pos != nil && *v.Pos > cancelledPos {
			p := *v.Pos - 1
			v.Pos = &p
		}
		return v
	case Remove:
		if v.Pos != nil && *v.Pos > cancelledPos {
			p := *v.Pos - 1
			v.Pos = &p
		}
		return v
	default:
		return m
	}
}
