package changeset

import (
	"sort"

	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/x"
)

// FieldChangeset maps field keys to the value change to apply to that
// field. It is the unit of change recorded against an entity (spec §3).
type FieldChangeset map[string]ValueChange

// ApplyChangeset applies every change in c to the corresponding field of
// current, returning the resulting fieldset. Fields not mentioned in c are
// left untouched. A field whose set, clear or patch change yields nil, or
// whose change yields an empty list, is dropped from the result; a field
// whose seq change leaves no elements is kept with an explicit nil, so
// "now empty" stays distinguishable from "absent".
func ApplyChangeset(current Fieldset, c FieldChangeset) (Fieldset, errors.E) {
	out := current.Clone()
	if out == nil {
		out = Fieldset{}
	}

	keys := sortedKeys(c)
	for _, key := range keys {
		vc := c[key]
		newValue, errE := Apply(out[key], vc)
		if errE != nil {
			errors.Details(errE)["field"] = key
			return nil, errE
		}
		switch {
		case isEmptyList(newValue):
			// Empty lists from a set are always dropped; a seq change
			// never yields one, since applySeq coerces an empty result
			// to nil before returning.
			delete(out, key)
		case newValue == nil && vc.Kind() == KindSeq:
			// A seq change yielding null means "no elements", distinct
			// from the field being absent; preserved for storage.
			out[key] = nil
		case newValue == nil:
			delete(out, key)
		default:
			out[key] = newValue
		}
	}
	return out, nil
}

// InverseChangeset returns the changeset that undoes c, given the fieldset
// current immediately before c was applied.
func InverseChangeset(current Fieldset, c FieldChangeset) FieldChangeset {
	out := make(FieldChangeset, len(c))
	keys := sortedKeys(c)
	for _, key := range keys {
		out[key] = Inverse(current[key], c[key])
	}
	return out
}

// SquashChangeset combines two changesets applied in sequence (a then b)
// into one equivalent changeset, per field.
func SquashChangeset(a, b FieldChangeset) FieldChangeset {
	out := make(FieldChangeset, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))

	keys := sortedKeys(a)
	keys = append(keys, sortedKeys(b)...)
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		av, aok := a[key]
		bv, bok := b[key]
		switch {
		case aok && bok:
			squashed := Squash(av, bv)
			if squashed != nil {
				out[key] = squashed
			}
		case aok:
			out[key] = av
		case bok:
			out[key] = bv
		}
	}
	return out
}

// RebaseChangeset rebases b (a changeset made concurrently against the same
// base as a) to apply cleanly after a.
func RebaseChangeset(a, b FieldChangeset) (FieldChangeset, errors.E) {
	out := make(FieldChangeset, len(b))
	keys := sortedKeys(b)
	for _, key := range keys {
		av, aok := a[key]
		bv := b[key]
		if !aok {
			out[key] = bv
			continue
		}
		rebased, errE := Rebase(av, bv)
		if errE != nil {
			errors.Details(errE)["field"] = key
			return nil, errE
		}
		out[key] = rebased
	}
	return out, nil
}

func sortedKeys(c FieldChangeset) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fieldChangesetJSON marshals FieldChangeset as key -> raw value-change
// JSON, since ValueChange is an interface with no native JSON support.
type fieldChangesetJSON map[string]rawValueChange

type rawValueChange []byte

func (r rawValueChange) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *rawValueChange) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c FieldChangeset) MarshalJSON() ([]byte, error) {
	out := make(fieldChangesetJSON, len(c))
	for key, vc := range c {
		data, errE := MarshalValueChange(vc)
		if errE != nil {
			return nil, errE
		}
		out[key] = data
	}
	data, err := x.MarshalWithoutEscapeHTML(out)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *FieldChangeset) UnmarshalJSON(data []byte) error {
	var in fieldChangesetJSON
	errE := x.UnmarshalWithoutUnknownFields(data, &in)
	if errE != nil {
		return errE
	}
	out := make(FieldChangeset, len(in))
	for key, raw := range in {
		vc, errE := UnmarshalValueChange(raw) //nolint:govet
		if errE != nil {
			return errE
		}
		out[key] = vc
	}
	*c = out
	return nil
}
