package changeset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/binder/binder/changeset"
)

func TestApplyChangesetDropsAbsentFields(t *testing.T) {
	t.Parallel()

	current := changeset.Fieldset{"title": "a", "tags": []changeset.Value{"x"}}
	cs := changeset.FieldChangeset{
		"title": changeset.Clear{Prev: "a"},
		"tags":  changeset.Seq{Mutations: []changeset.Mutation{changeset.Remove{Value: "x"}}},
	}

	result, errE := changeset.ApplyChangeset(current, cs)
	require.NoError(t, errE)
	assert.NotContains(t, result, "title")
	// A seq change yielding an empty list is preserved as an explicit null,
	// distinguishing "now empty" from "field never set".
	value, ok := result["tags"]
	assert.True(t, ok)
	assert.Nil(t, value)
}

func TestFieldChangesetJSONRoundtrip(t *testing.T) {
	t.Parallel()

	cs := changeset.FieldChangeset{
		"title": changeset.NewAnchoredSet("b", "a"),
		"tags": changeset.Seq{Mutations: []changeset.Mutation{
			changeset.Insert{Value: "urgent"},
			changeset.Remove{Value: "old", Pos: intp(0)},
		}},
	}

	data, err := cs.MarshalJSON()
	require.NoError(t, err)

	var out changeset.FieldChangeset
	errE := out.UnmarshalJSON(data)
	require.NoError(t, errE)

	assert.Equal(t, cs["title"], out["title"])

	seqIn := cs["tags"].(changeset.Seq)
	seqOut := out["tags"].(changeset.Seq)
	assert.Equal(t, seqIn.Mutations[0], seqOut.Mutations[0])
	assert.Equal(t, seqIn.Mutations[1], seqOut.Mutations[1])
}
