package changeset

import (
	"encoding/json"

	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/x"
)

// MutationKind identifies which of the three sequence-mutation variants a
// Mutation is.
type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationRemove MutationKind = "remove"
	MutationPatch  MutationKind = "patch"
)

// Mutation is one step of a Seq change, applied against the current list
// value at the position it names.
type Mutation interface {
	MutationKind() MutationKind
}

var (
	_ Mutation = Insert{}
	_ Mutation = Remove{}
	_ Mutation = PatchMutation{}
)

// Insert inserts Value at Pos (0..len); it appends when Pos is nil. When
// the element already at Pos equals Value, apply instead removes it — the
// toggle rule described in spec §4.1.
type Insert struct {
	Value Value
	Pos   *int
}

func (Insert) MutationKind() MutationKind { return MutationInsert }

// Remove removes the element at Pos, or the trailing element when Pos is
// nil. Value must equal the removed element; apply asserts this.
type Remove struct {
	Value Value
	Pos   *int
}

func (Remove) MutationKind() MutationKind { return MutationRemove }

// PatchMutation locates the element whose relation-ref equals Ref,
// converts it to tuple form, and applies Changeset to its attrs.
type PatchMutation struct {
	Ref       string
	Changeset FieldChangeset
}

func (PatchMutation) MutationKind() MutationKind { return MutationPatch }

type mutationJSON struct {
	Kind      MutationKind    `json:"kind"`
	Value     json.RawMessage `json:"value,omitempty"`
	Pos       *int            `json:"pos,omitempty"`
	Ref       string          `json:"ref,omitempty"`
	Changeset FieldChangeset  `json:"changeset,omitempty"`
}

// marshalMutation converts a Mutation stored in a Seq into its JSON wire shape.
func marshalMutation(m Mutation) (mutationJSON, errors.E) {
	switch v := m.(type) {
	case Insert:
		value, errE := marshalValue(v.Value)
		if errE != nil {
			return mutationJSON{}, errE
		}
		return mutationJSON{Kind: MutationInsert, Value: value, Pos: v.Pos}, nil
	case Remove:
		value, errE := marshalValue(v.Value)
		if errE != nil {
			return mutationJSON{}, errE
		}
		return mutationJSON{Kind: MutationRemove, Value: value, Pos: v.Pos}, nil
	case PatchMutation:
		return mutationJSON{Kind: MutationPatch, Ref: v.Ref, Changeset: v.Changeset}, nil
	default:
		errE := errors.WithStack(ErrUnknownChangeKind)
		errors.Details(errE)["mutation"] = m
		return mutationJSON{}, errE
	}
}

func unmarshalMutation(t mutationJSON) (Mutation, errors.E) { //nolint:ireturn
	switch t.Kind {
	case MutationInsert:
		var value Value
		if len(t.Value) > 0 {
			errE := x.Unmarshal(t.Value, &value)
			if errE != nil {
				return nil, errE
			}
		}
		return Insert{Value: value, Pos: t.Pos}, nil
	case MutationRemove:
		var value Value
		if len(t.Value) > 0 {
			errE := x.Unmarshal(t.Value, &value)
			if errE != nil {
				return nil, errE
			}
		}
		return Remove{Value: value, Pos: t.Pos}, nil
	case MutationPatch:
		return PatchMutation{Ref: t.Ref, Changeset: t.Changeset}, nil
	default:
		errE := errors.WithStack(ErrUnknownChangeKind)
		errors.Details(errE)["kind"] = t.Kind
		return nil, errE
	}
}

// Seq's mutation list round-trips through these helpers because Mutation
// is an interface and encoding/json cannot dispatch on it by itself.

// MarshalMutations marshals a mutation slice to JSON.
func MarshalMutations(ms []Mutation) ([]byte, errors.E) {
	wire := make([]mutationJSON, len(ms))
	for i, m := range ms {
		t, errE := marshalMutation(m)
		if errE != nil {
			return nil, errE
		}
		wire[i] = t
	}
	data, err := x.MarshalWithoutEscapeHTML(wire)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// UnmarshalMutations unmarshals a mutation slice from JSON.
func UnmarshalMutations(data []byte) ([]Mutation, errors.E) {
	var wire []mutationJSON
	errE := x.UnmarshalWithoutUnknownFields(data, &wire)
	if errE != nil {
		return nil, errE
	}
	ms := make([]Mutation, len(wire))
	for i, t := range wire {
		m, errE := unmarshalMutation(t) //nolint:govet
		if errE != nil {
			return nil, errE
		}
		ms[i] = m
	}
	return ms, nil
}
