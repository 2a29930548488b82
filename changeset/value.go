// Package changeset implements the field-change algebra (value changes,
// sequence mutations, and fieldset changesets) at the core of Binder's
// transactional changeset engine: inverse, apply, squash, and rebase over
// a single field value, lifted over a map of field keys.
package changeset

import (
	"encoding/json"

	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/x"
)

// Value is a JSON value: nil, bool, float64, string, []Value, or
// map[string]Value. Equality is structural (see valuesEqual).
type Value = interface{}

// Fieldset is a mapping from field key to field value. A key absent from
// the map and a key mapped to nil are both "absent"; apply never leaves an
// explicit nil in a Fieldset except when the originating change was seq
// (see ApplyChangeset).
type Fieldset map[string]Value

// Clone returns a deep copy of the fieldset suitable for folding changes
// onto without aliasing the caller's maps and slices.
func (f Fieldset) Clone() Fieldset {
	if f == nil {
		return nil
	}
	out := make(Fieldset, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch t := v.(type) {
	case map[string]Value:
		out := make(map[string]Value, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []Value:
		out := make([]Value, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Kind identifies which of the four value-change variants a ValueChange is.
type Kind string

const (
	KindSet   Kind = "set"
	KindClear Kind = "clear"
	KindSeq   Kind = "seq"
	KindPatch Kind = "patch"
)

// ValueChange is the tagged sum described in spec §3: set, clear, seq, or
// patch. Implementations are value types so changes can be freely copied
// and compared.
type ValueChange interface {
	Kind() Kind
}

var (
	_ ValueChange = Set{}
	_ ValueChange = Clear{}
	_ ValueChange = Seq{}
	_ ValueChange = Patch{}
)

// Set replaces the prior value with New. When HasPrev is true the change is
// anchored on Prev and can be rebased against concurrent changes to the
// same field.
type Set struct {
	New     Value
	Prev    Value
	HasPrev bool
}

func (Set) Kind() Kind { return KindSet }

// NewSet returns an unanchored set(new) change.
func NewSet(newValue Value) Set {
	return Set{New: newValue}
}

// NewAnchoredSet returns an anchored set(new, prev) change.
func NewAnchoredSet(newValue, prev Value) Set {
	return Set{New: newValue, Prev: prev, HasPrev: true}
}

// Clear deletes the field; always anchored on Prev.
type Clear struct {
	Prev Value
}

func (Clear) Kind() Kind { return KindClear }

// Seq is an ordered list of sequence mutations, applied left to right
// against the current list value.
type Seq struct {
	Mutations []Mutation
}

func (Seq) Kind() Kind { return KindSeq }

// Patch applies a nested fieldset changeset to the attrs of a relation
// tuple, promoting a bare ref to a tuple as needed.
type Patch struct {
	Changeset FieldChangeset
}

func (Patch) Kind() Kind { return KindPatch }

// Normalize returns x unchanged if it is already a ValueChange, or wraps it
// in an unanchored Set otherwise — the implicit normalization described for
// field changesets in spec §3.
func Normalize(x Value) ValueChange { //nolint:ireturn
	if vc, ok := x.(ValueChange); ok {
		return vc
	}
	return NewSet(x)
}

// valueChangeJSON is the wire shape shared by all four kinds; unused fields
// for a given kind are simply omitted on marshal.
type valueChangeJSON struct {
	Kind      Kind            `json:"kind"`
	New       json.RawMessage `json:"new,omitempty"`
	Prev      json.RawMessage `json:"prev,omitempty"`
	HasPrev   bool            `json:"hasPrev,omitempty"`
	Mutations json.RawMessage `json:"mutations,omitempty"`
	Changeset FieldChangeset  `json:"changeset,omitempty"`
}

func marshalValue(v Value) (json.RawMessage, errors.E) {
	data, err := x.MarshalWithoutEscapeHTML(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// MarshalValueChange marshals a ValueChange to JSON bytes with an explicit
// "kind" discriminator.
func MarshalValueChange(c ValueChange) ([]byte, errors.E) {
	var t valueChangeJSON
	switch v := c.(type) {
	case Set:
		newBytes, errE := marshalValue(v.New)
		if errE != nil {
			return nil, errE
		}
		t = valueChangeJSON{Kind: KindSet, New: newBytes, HasPrev: v.HasPrev}
		if v.HasPrev {
			prevBytes, errE := marshalValue(v.Prev) //nolint:govet
			if errE != nil {
				return nil, errE
			}
			t.Prev = prevBytes
		}
	case Clear:
		prevBytes, errE := marshalValue(v.Prev)
		if errE != nil {
			return nil, errE
		}
		t = valueChangeJSON{Kind: KindClear, Prev: prevBytes}
	case Seq:
		mutations, errE := MarshalMutations(v.Mutations)
		if errE != nil {
			return nil, errE
		}
		t = valueChangeJSON{Kind: KindSeq, Mutations: mutations}
	case Patch:
		t = valueChangeJSON{Kind: KindPatch, Changeset: v.Changeset}
	default:
		errE := errors.WithStack(ErrUnknownChangeKind)
		errors.Details(errE)["change"] = c
		return nil, errE
	}
	data, err := x.MarshalWithoutEscapeHTML(t)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// UnmarshalValueChange unmarshals a ValueChange from JSON bytes.
func UnmarshalValueChange(data []byte) (ValueChange, errors.E) { //nolint:ireturn
	var t valueChangeJSON
	errE := x.UnmarshalWithoutUnknownFields(data, &t)
	if errE != nil {
		return nil, errE
	}
	switch t.Kind {
	case KindSet:
		var newValue Value
		if len(t.New) > 0 {
			errE = x.Unmarshal(t.New, &newValue)
			if errE != nil {
				return nil, errE
			}
		}
		s := Set{New: newValue, HasPrev: t.HasPrev}
		if t.HasPrev && len(t.Prev) > 0 {
			var prev Value
			errE = x.Unmarshal(t.Prev, &prev)
			if errE != nil {
				return nil, errE
			}
			s.Prev = prev
		}
		return s, nil
	case KindClear:
		var prev Value
		if len(t.Prev) > 0 {
			errE = x.Unmarshal(t.Prev, &prev)
			if errE != nil {
				return nil, errE
			}
		}
		return Clear{Prev: prev}, nil
	case KindSeq:
		var mutations []Mutation
		if len(t.Mutations) > 0 {
			mutations, errE = UnmarshalMutations(t.Mutations)
			if errE != nil {
				return nil, errE
			}
		}
		return Seq{Mutations: mutations}, nil
	case KindPatch:
		return Patch{Changeset: t.Changeset}, nil
	default:
		errE := errors.WithStack(ErrUnknownChangeKind)
		errors.Details(errE)["kind"] = t.Kind
		return nil, errE
	}
}
