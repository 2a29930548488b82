package changeset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/binder/binder/changeset"
)

func TestRebaseSeqShiftsPositionsAfterInsert(t *testing.T) {
	t.Parallel()

	a := []changeset.Mutation{changeset.Insert{Value: "x", Pos: intp(0)}}
	b := changeset.Seq{Mutations: []changeset.Mutation{
		changeset.Remove{Value: "y", Pos: intp(1)},
	}}

	result, errE := changeset.Rebase(changeset.Seq{Mutations: a}, b)
	require.NoError(t, errE)

	seq, ok := result.(changeset.Seq)
	if assert.True(t, ok) && assert.Len(t, seq.Mutations, 1) {
		rm, ok := seq.Mutations[0].(changeset.Remove)
		if assert.True(t, ok) {
			assert.Equal(t, 2, *rm.Pos)
		}
	}
}

func TestRebaseSeqCollidingInsertsConflict(t *testing.T) {
	t.Parallel()

	a := []changeset.Mutation{changeset.Insert{Value: "x", Pos: intp(0)}}
	b := changeset.Seq{Mutations: []changeset.Mutation{
		changeset.Insert{Value: "y", Pos: intp(0)},
	}}

	_, errE := changeset.Rebase(changeset.Seq{Mutations: a}, b)
	require.ErrorIs(t, errE, changeset.ErrRebaseConflict)
}

func TestRebaseSetAnchoredConflict(t *testing.T) {
	t.Parallel()

	a := changeset.NewSet("winner")
	b := changeset.NewAnchoredSet("loser", "base")

	_, errE := changeset.Rebase(a, b)
	require.ErrorIs(t, errE, changeset.ErrRebaseConflict)
}

func TestRebaseSetUnanchoredCarriesOver(t *testing.T) {
	t.Parallel()

	a := changeset.NewSet("winner")
	b := changeset.NewSet("also-unanchored")

	result, errE := changeset.Rebase(a, b)
	require.NoError(t, errE)
	assert.Equal(t, b, result)
}
