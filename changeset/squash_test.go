package changeset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/binder/binder/changeset"
)

func intp(i int) *int { return &i }

func TestSquashSeqInsertRemoveCancels(t *testing.T) {
	t.Parallel()

	a := changeset.Seq{Mutations: []changeset.Mutation{
		changeset.Insert{Value: float64(17), Pos: intp(2)},
	}}
	b := changeset.Seq{Mutations: []changeset.Mutation{
		changeset.Remove{Value: float64(17), Pos: intp(2)},
	}}

	result := changeset.Squash(a, b)
	assert.Nil(t, result)
}

func TestSquashSeqRenumbersAfterCancellation(t *testing.T) {
	t.Parallel()

	a := changeset.Seq{Mutations: []changeset.Mutation{
		changeset.Insert{Value: float64(17), Pos: intp(2)},
		changeset.Remove{Value: float64(15), Pos: intp(6)},
	}}
	b := changeset.Seq{Mutations: []changeset.Mutation{
		changeset.Remove{Value: float64(17), Pos: intp(2)},
	}}

	result := changeset.Squash(a, b)
	seq, ok := result.(changeset.Seq)
	if assert.True(t, ok) {
		if assert.Len(t, seq.Mutations, 1) {
			remove, ok := seq.Mutations[0].(changeset.Remove)
			if assert.True(t, ok) {
				assert.Equal(t, float64(15), remove.Value)
				assert.Equal(t, 5, *remove.Pos)
			}
		}
	}
}

func TestSquashSetThenSetKeepsOriginalAnchor(t *testing.T) {
	t.Parallel()

	a := changeset.NewAnchoredSet("b", "a")
	b := changeset.NewSet("c")

	result := changeset.Squash(a, b)
	set, ok := result.(changeset.Set)
	if assert.True(t, ok) {
		assert.Equal(t, "c", set.New)
		assert.Equal(t, "a", set.Prev)
		assert.True(t, set.HasPrev)
	}
}

func TestSquashInverseIsEmptyChangeset(t *testing.T) {
	t.Parallel()

	cs := changeset.FieldChangeset{
		"title": changeset.NewAnchoredSet("b", "a"),
	}
	inv := changeset.InverseChangeset(changeset.Fieldset{"title": "a"}, cs)
	combined := changeset.SquashChangeset(cs, inv)
	assert.Empty(t, combined)
}
