package input_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/input"
	"gitlab.com/binder/binder/schema"
)

func personSchema() *schema.Schema {
	return schema.New([]schema.TypeDef{
		{
			Name: "person",
			Fields: []schema.FieldDef{
				{ID: 1, Name: "name", Type: schema.TypeString, Required: true},
				{ID: 2, Name: "age", Type: schema.TypeInteger},
				{ID: 3, Name: "tags", Type: schema.TypeString, List: true},
				{ID: 4, Name: "employer", Type: schema.TypeRef},
				{ID: 5, Name: "nickname", Type: schema.TypeString, When: &schema.When{Field: "hasNickname", Equals: true}, Required: true},
				{ID: 6, Name: "hasNickname", Type: schema.TypeBoolean},
			},
		},
	})
}

func TestNormalizeCreateGeneratesUID(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{"type": "person", "name": "Ada"}
	create, errE := input.NormalizeCreate(raw, "type", "key")
	require.NoError(t, errE)
	assert.Equal(t, "person", create.Type)
	assert.NotEmpty(t, create.UID)
	set, ok := create.Fields["name"].(changeset.Set)
	require.True(t, ok)
	assert.Equal(t, "Ada", set.New)
}

func TestNormalizeCreateKeepsSuppliedUID(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{"type": "person", "key": "fixed-uid", "name": "Ada"}
	create, errE := input.NormalizeCreate(raw, "type", "key")
	require.NoError(t, errE)
	assert.Equal(t, "fixed-uid", create.UID)
}

func TestNormalizeCreateMissingTypeFails(t *testing.T) {
	t.Parallel()
	_, errE := input.NormalizeCreate(map[string]interface{}{"name": "Ada"}, "type", "key")
	require.Error(t, errE)
	assert.ErrorIs(t, errE, input.ErrInvalidShape)
}

func TestNormalizeUpdateScalarBecomesSet(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{"$ref": "u1", "name": "Ada Lovelace"}
	update, errE := input.NormalizeUpdate(raw, "$ref")
	require.NoError(t, errE)
	assert.Equal(t, "u1", update.Ref)
	set, ok := update.Fields["name"].(changeset.Set)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", set.New)
}

func TestNormalizeUpdateMutationTriplesBecomeSeq(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{
		"$ref": "u1",
		"tags": []interface{}{
			[]interface{}{"insert", "urgent", nil},
			[]interface{}{"remove", "stale", float64(0)},
		},
	}
	update, errE := input.NormalizeUpdate(raw, "$ref")
	require.NoError(t, errE)
	seq, ok := update.Fields["tags"].(changeset.Seq)
	require.True(t, ok)
	require.Len(t, seq.Mutations, 2)
	ins, ok := seq.Mutations[0].(changeset.Insert)
	require.True(t, ok)
	assert.Equal(t, "urgent", ins.Value)
	assert.Nil(t, ins.Pos)
	rm, ok := seq.Mutations[1].(changeset.Remove)
	require.True(t, ok)
	assert.Equal(t, "stale", rm.Value)
	require.NotNil(t, rm.Pos)
	assert.Equal(t, 0, *rm.Pos)
}

func TestNormalizeUpdatePlainListStaysSet(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{"$ref": "u1", "tags": []interface{}{"a", "b"}}
	update, errE := input.NormalizeUpdate(raw, "$ref")
	require.NoError(t, errE)
	set, ok := update.Fields["tags"].(changeset.Set)
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, set.New)
}

func TestNormalizeUpdateObjectBecomesPatch(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{
		"$ref":     "u1",
		"employer": map[string]interface{}{"title": "CEO"},
	}
	update, errE := input.NormalizeUpdate(raw, "$ref")
	require.NoError(t, errE)
	patch, ok := update.Fields["employer"].(changeset.Patch)
	require.True(t, ok)
	set, ok := patch.Changeset["title"].(changeset.Set)
	require.True(t, ok)
	assert.Equal(t, "CEO", set.New)
}

func TestNormalizeUpdateMissingRefFails(t *testing.T) {
	t.Parallel()
	_, errE := input.NormalizeUpdate(map[string]interface{}{"name": "Ada"}, "$ref")
	require.Error(t, errE)
	assert.ErrorIs(t, errE, input.ErrInvalidShape)
}

func TestValidateUnknownFieldFails(t *testing.T) {
	t.Parallel()
	s := personSchema()
	fields := changeset.FieldChangeset{"nope": changeset.NewSet("x")}
	errE := input.Validate(s, "person", fields, false)
	require.Error(t, errE)
	assert.ErrorIs(t, errE, schema.ErrUnknownField)
}

func TestValidateTypeMismatchFails(t *testing.T) {
	t.Parallel()
	s := personSchema()
	fields := changeset.FieldChangeset{"name": changeset.NewSet("Ada"), "age": changeset.NewSet("old")}
	errE := input.Validate(s, "person", fields, false)
	require.Error(t, errE)
	assert.ErrorIs(t, errE, input.ErrTypeMismatch)
}

func TestValidateMissingRequiredFieldOnCreateFails(t *testing.T) {
	t.Parallel()
	s := personSchema()
	fields := changeset.FieldChangeset{"age": changeset.NewSet(float64(30))}
	errE := input.Validate(s, "person", fields, true)
	require.Error(t, errE)
	assert.ErrorIs(t, errE, input.ErrMissingRequiredField)
}

func TestValidateWhenConditionSkipsRequiredField(t *testing.T) {
	t.Parallel()
	s := personSchema()
	fields := changeset.FieldChangeset{
		"name":        changeset.NewSet("Ada"),
		"hasNickname": changeset.NewSet(false),
	}
	errE := input.Validate(s, "person", fields, true)
	require.NoError(t, errE)
}

func TestValidateWhenConditionRequiresFieldWhenSatisfied(t *testing.T) {
	t.Parallel()
	s := personSchema()
	fields := changeset.FieldChangeset{
		"name":        changeset.NewSet("Ada"),
		"hasNickname": changeset.NewSet(true),
	}
	errE := input.Validate(s, "person", fields, true)
	require.Error(t, errE)
	assert.ErrorIs(t, errE, input.ErrMissingRequiredField)
}

func TestValidateRelationAcceptsBareRefAndTuple(t *testing.T) {
	t.Parallel()
	s := personSchema()
	fields := changeset.FieldChangeset{
		"name":     changeset.NewSet("Ada"),
		"employer": changeset.NewSet([]interface{}{"acme-uid", map[string]interface{}{"title": "CEO"}}),
	}
	errE := input.Validate(s, "person", fields, false)
	require.NoError(t, errE)
}
