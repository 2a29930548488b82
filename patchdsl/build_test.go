package patchdsl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/patchdsl"
	"gitlab.com/binder/binder/schema"
)

func lookup(fields map[string]schema.FieldDef) patchdsl.FieldLookup {
	return func(field string) (schema.FieldDef, errors.E) {
		fd, ok := fields[field]
		if !ok {
			return schema.FieldDef{}, errors.WithStack(schema.ErrUnknownField)
		}
		return fd, nil
	}
}

func TestBuildSetScalar(t *testing.T) {
	t.Parallel()
	fields := map[string]schema.FieldDef{"title": {Name: "title", Type: schema.TypeString}}
	cs, errE := patchdsl.Build([]string{"title=hello"}, lookup(fields), nil)
	require.NoError(t, errE)
	set, ok := cs["title"].(changeset.Set)
	require.True(t, ok)
	assert.Equal(t, "hello", set.New)
}

func TestBuildInsertAppend(t *testing.T) {
	t.Parallel()
	fields := map[string]schema.FieldDef{"tags": {Name: "tags", Type: schema.TypeString, List: true}}
	cs, errE := patchdsl.Build([]string{"tags+=urgent"}, lookup(fields), nil)
	require.NoError(t, errE)
	seq, ok := cs["tags"].(changeset.Seq)
	require.True(t, ok)
	require.Len(t, seq.Mutations, 1)
	ins, ok := seq.Mutations[0].(changeset.Insert)
	require.True(t, ok)
	assert.Equal(t, "urgent", ins.Value)
	assert.Nil(t, ins.Pos)
}

func TestBuildRemoveResolvesValueFromCurrent(t *testing.T) {
	t.Parallel()
	fields := map[string]schema.FieldDef{"tags": {Name: "tags", Type: schema.TypeString, List: true}}
	current := changeset.Fieldset{"tags": []interface{}{"a", "b", "c"}}
	cs, errE := patchdsl.Build([]string{"tags:1--"}, lookup(fields), current)
	require.NoError(t, errE)
	seq, ok := cs["tags"].(changeset.Seq)
	require.True(t, ok)
	rm, ok := seq.Mutations[0].(changeset.Remove)
	require.True(t, ok)
	assert.Equal(t, "b", rm.Value)
}

func TestBuildDuplicateSetConflict(t *testing.T) {
	t.Parallel()
	fields := map[string]schema.FieldDef{"title": {Name: "title", Type: schema.TypeString}}
	_, errE := patchdsl.Build([]string{"title=a", "title+=b"}, lookup(fields), nil)
	require.Error(t, errE)
	assert.ErrorIs(t, errE, patchdsl.ErrDuplicateFieldPatch)
}

func TestBuildRemoveWithoutValueOutOfRangeFails(t *testing.T) {
	t.Parallel()
	fields := map[string]schema.FieldDef{"tags": {Name: "tags", Type: schema.TypeString, List: true}}
	current := changeset.Fieldset{"tags": []interface{}{}}
	_, errE := patchdsl.Build([]string{"tags--"}, lookup(fields), current)
	require.Error(t, errE)
	assert.ErrorIs(t, errE, patchdsl.ErrMissingRemoveValue)
}
