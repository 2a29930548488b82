package changeset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/binder/binder/changeset"
)

func TestApplySetUnanchored(t *testing.T) {
	t.Parallel()

	result, errE := changeset.Apply("old", changeset.NewSet("new"))
	require.NoError(t, errE)
	assert.Equal(t, "new", result)
}

func TestApplySetAnchoredMismatch(t *testing.T) {
	t.Parallel()

	_, errE := changeset.Apply("old", changeset.NewAnchoredSet("new", "not-old"))
	require.ErrorIs(t, errE, changeset.ErrPreconditionFailed)
}

func TestApplyClear(t *testing.T) {
	t.Parallel()

	result, errE := changeset.Apply("old", changeset.Clear{Prev: "old"})
	require.NoError(t, errE)
	assert.Nil(t, result)
}

func TestApplySeqInsertAppend(t *testing.T) {
	t.Parallel()

	result, errE := changeset.Apply(nil, changeset.Seq{
		Mutations: []changeset.Mutation{changeset.Insert{Value: "x"}},
	})
	require.NoError(t, errE)
	assert.Equal(t, []changeset.Value{"x"}, result)
}

func TestApplySeqRemoveYieldsNilOnEmpty(t *testing.T) {
	t.Parallel()

	result, errE := changeset.Apply([]changeset.Value{"x"}, changeset.Seq{
		Mutations: []changeset.Mutation{changeset.Remove{Value: "x"}},
	})
	require.NoError(t, errE)
	assert.Nil(t, result)
}

func TestApplySeqInsertToggleRemovesEqualElement(t *testing.T) {
	t.Parallel()

	pos := 1
	result, errE := changeset.Apply([]changeset.Value{"a", "b"}, changeset.Seq{
		Mutations: []changeset.Mutation{changeset.Insert{Value: "b", Pos: &pos}},
	})
	require.NoError(t, errE)
	assert.Equal(t, []changeset.Value{"a"}, result)
}

func TestApplySeqRemoveWrongValueFails(t *testing.T) {
	t.Parallel()

	_, errE := changeset.Apply([]changeset.Value{"x"}, changeset.Seq{
		Mutations: []changeset.Mutation{changeset.Remove{Value: "y"}},
	})
	require.ErrorIs(t, errE, changeset.ErrPreconditionFailed)
}
