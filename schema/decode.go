package schema

import (
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
)

// FromConfigFieldsets builds a Schema from the materialized fieldsets of
// every config-namespace entity: each one a type definition, carrying the
// schema itself as ordinary entities in the config namespace (spec §3).
func FromConfigFieldsets(fieldsets []changeset.Fieldset) (*Schema, errors.E) {
	types := make([]TypeDef, 0, len(fieldsets))
	for _, fs := range fieldsets {
		td, errE := decodeTypeDef(fs)
		if errE != nil {
			return nil, errE
		}
		types = append(types, td)
	}
	return New(types), nil
}

func decodeTypeDef(fs changeset.Fieldset) (TypeDef, errors.E) {
	name, _ := fs["name"].(string)
	if name == "" {
		errE := errors.WithStack(ErrInvalidConfig)
		errors.Details(errE)["reason"] = "config entity missing name"
		return TypeDef{}, errE
	}

	rawFields, _ := fs["fields"].([]interface{})
	fields := make([]FieldDef, 0, len(rawFields))
	for _, raw := range rawFields {
		m, ok := raw.(map[string]interface{})
		if !ok {
			errE := errors.WithStack(ErrInvalidConfig)
			errors.Details(errE)["reason"] = "field definition must be an object"
			errors.Details(errE)["type"] = name
			return TypeDef{}, errE
		}
		fd, errE := decodeFieldDef(m)
		if errE != nil {
			errors.Details(errE)["type"] = name
			return TypeDef{}, errE
		}
		fields = append(fields, fd)
	}
	return TypeDef{Name: name, Fields: fields}, nil
}

func decodeFieldDef(m map[string]interface{}) (FieldDef, errors.E) {
	var fd FieldDef
	if id, ok := m["id"].(float64); ok {
		fd.ID = int(id)
	}
	fd.Name, _ = m["name"].(string)
	if t, ok := m["type"].(string); ok {
		fd.Type = FieldType(t)
	}
	fd.List, _ = m["list"].(bool)
	fd.Of, _ = m["of"].(string)
	fd.Delimiter, _ = m["delimiter"].(string)
	fd.Required, _ = m["required"].(bool)

	if w, ok := m["when"].(map[string]interface{}); ok {
		field, _ := w["field"].(string)
		fd.When = &When{Field: field, Equals: w["equals"]}
	}

	if fd.Name == "" {
		errE := errors.WithStack(ErrInvalidConfig)
		errors.Details(errE)["reason"] = "field definition missing name"
		return FieldDef{}, errE
	}
	return fd, nil
}
