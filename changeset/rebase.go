package changeset

import "gitlab.com/tozd/go/errors"

// Rebase adapts change, made concurrently against the same ancestor value as
// base, so that it applies cleanly after base has already landed. Only the
// three combinations spec'd below adjust the change; anything else passes
// change through unchanged (spec §4.1).
func Rebase(base, change ValueChange) (ValueChange, errors.E) { //nolint:ireturn
	switch a := base.(type) {
	case Set:
		if b, ok := change.(Set); ok {
			return rebaseSetLike(a.New, a.Prev, a.HasPrev, b.New, b.Prev, b.HasPrev, func(newValue, prev Value, hasPrev bool) ValueChange {
				return Set{New: newValue, Prev: prev, HasPrev: hasPrev}
			})
		}
		if b, ok := change.(Clear); ok {
			return rebaseSetLike(a.New, a.Prev, a.HasPrev, nil, b.Prev, true, func(_, prev Value, _ bool) ValueChange {
				return Clear{Prev: prev}
			})
		}
		return change, nil
	case Clear:
		if b, ok := change.(Set); ok {
			return rebaseSetLike(nil, a.Prev, true, b.New, b.Prev, b.HasPrev, func(newValue, prev Value, hasPrev bool) ValueChange {
				return Set{New: newValue, Prev: prev, HasPrev: hasPrev}
			})
		}
		if b, ok := change.(Clear); ok {
			return rebaseSetLike(nil, a.Prev, true, nil, b.Prev, true, func(_, prev Value, _ bool) ValueChange {
				return Clear{Prev: prev}
			})
		}
		return change, nil
	case Seq:
		if b, ok := change.(Seq); ok {
			mutations, errE := rebaseSeqMutations(a.Mutations, b.Mutations)
			if errE != nil {
				return nil, errE
			}
			return Seq{Mutations: mutations}, nil
		}
		return change, nil
	case Patch:
		if b, ok := change.(Patch); ok {
			rebased, errE := RebaseChangeset(a.Changeset, b.Changeset)
			if errE != nil {
				return nil, errE
			}
			return Patch{Changeset: rebased}, nil
		}
		return change, nil
	default:
		return change, nil
	}
}

// rebaseSetLike implements the shared passthrough/re-anchor/conflict logic
// for set-vs-set, set-vs-clear, clear-vs-set, and clear-vs-clear rebases.
func rebaseSetLike(
	baseNew, basePrev Value, baseHasPrev bool,
	changeNew, changePrev Value, changeHasPrev bool,
	rebuild func(newValue, prev Value, hasPrev bool) ValueChange,
) (ValueChange, errors.E) { //nolint:ireturn
	if !changeHasPrev {
		return rebuild(changeNew, nil, false), nil
	}
	if valuesEqual(changePrev, baseNew) {
		return rebuild(changeNew, changePrev, true), nil
	}
	if baseHasPrev && valuesEqual(changePrev, basePrev) {
		return rebuild(changeNew, baseNew, true), nil
	}
	errE := errors.WithStack(ErrRebaseConflict)
	errors.Details(errE)["change"] = "set"
	return nil, errE
}

// rebaseSeqMutations adjusts change's positional mutations to account for
// base's insertions and removals (spec §4.1).
func rebaseSeqMutations(base, change []Mutation) ([]Mutation, errors.E) {
	out := make([]Mutation, len(change))
	for i, cm := range change {
		rebased, errE := rebaseSeqMutation(base, cm)
		if errE != nil {
			errors.Details(errE)["mutation"] = i
			return nil, errE
		}
		out[i] = rebased
	}
	return out, nil
}

func rebaseSeqMutation(base []Mutation, m Mutation) (Mutation, errors.E) {
	switch v := m.(type) {
	case Insert:
		if v.Pos == nil {
			return v, nil
		}
		if collidesSameKind(base, MutationInsert, *v.Pos) {
			errE := errors.WithStack(ErrRebaseConflict)
			errors.Details(errE)["pos"] = *v.Pos
			return nil, errE
		}
		p := rebasePosition(base, *v.Pos)
		v.Pos = &p
		return v, nil
	case Remove:
		if v.Pos == nil {
			return v, nil
		}
		if collidesSameKind(base, MutationRemove, *v.Pos) {
			errE := errors.WithStack(ErrRebaseConflict)
			errors.Details(errE)["pos"] = *v.Pos
			return nil, errE
		}
		p := rebasePosition(base, *v.Pos)
		v.Pos = &p
		return v, nil
	case PatchMutation:
		for _, bm := range base {
			bp, ok := bm.(PatchMutation)
			if ok && bp.Ref == v.Ref {
				rebased, errE := RebaseChangeset(bp.Changeset, v.Changeset)
				if errE != nil {
					return nil, errE
				}
				return PatchMutation{Ref: v.Ref, Changeset: rebased}, nil
			}
		}
		return v, nil
	default:
		return m, nil
	}
}

// collidesSameKind reports whether base carries a mutation of the same kind
// at exactly pos, an ambiguous ordering rebase cannot resolve.
func collidesSameKind(base []Mutation, kind MutationKind, pos int) bool {
	for _, bm := range base {
		switch v := bm.(type) {
		case Insert:
			if kind == MutationInsert && v.Pos != nil && *v.Pos == pos {
				return true
			}
		case Remove:
			if kind == MutationRemove && v.Pos != nil && *v.Pos == pos {
				return true
			}
		}
	}
	return false
}

// rebasePosition shifts pos up by one for each base insert at or before it
// and down by one for each base remove strictly before it.
func rebasePosition(base []Mutation, pos int) int {
	shifted := pos
	for _, m := range base {
		switch v := m.(type) {
		case Insert:
			if v.Pos != nil && *v.Pos <= pos {
				shifted++
			}
		case Remove:
			if v.Pos != nil && *v.Pos < pos {
				shifted--
			}
		}
	}
	if shifted < 0 {
		shifted = 0
	}
	return shifted
}
