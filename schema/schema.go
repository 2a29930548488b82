// Package schema represents entity type definitions: the field metadata
// that canonical encoding and the patch DSL consult to assign stable field
// ids, coerce DSL literals to the right Go type, and validate input.
package schema

import (
	"sort"

	"github.com/hashicorp/golang-lru/v2"

	"gitlab.com/tozd/go/errors"
)

// Value is a JSON-shaped value, the same shape as changeset.Value.
type Value = interface{}

// FieldType is the scalar type a field's values are coerced to.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeRef     FieldType = "ref"
	TypeText    FieldType = "text"
)

// FieldDef describes one field of an entity type: its stable id (used for
// canonical key ordering, stable across field renames), scalar type,
// whether it holds a list of values, and — for ref fields — the entity
// type it points to.
type FieldDef struct {
	ID   int       `json:"id"`
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	List bool      `json:"list"`
	Of   string    `json:"of,omitempty"`
	// Delimiter splits a DSL literal into list elements; defaults to a
	// comma when empty.
	Delimiter string `json:"delimiter,omitempty"`
	// Required marks a field that must be present (after normalization)
	// when creating an entity of this type, unless When excludes it.
	Required bool `json:"required,omitempty"`
	// When is this field's visibility predicate over sibling fields; a
	// zero-value When is always satisfied.
	When *When `json:"when,omitempty"`
}

// When is a field's visibility predicate: the field is only required when a
// sibling field holds Equals. Type checks apply to the field regardless.
type When struct {
	Field  string `json:"field"`
	Equals Value  `json:"equals"`
}

// Satisfied reports whether w holds against fields, the create/update
// input's other normalized field values. A nil When is always satisfied.
func (w *When) Satisfied(fields map[string]Value) bool {
	if w == nil {
		return true
	}
	v, ok := fields[w.Field]
	if !ok {
		return false
	}
	return valuesEqual(v, w.Equals)
}

func valuesEqual(a, b Value) bool {
	an, aok := toFloat(a)
	bn, bok := toFloat(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}

func toFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// ListDelimiter returns f's configured delimiter, defaulting to a comma.
func (f FieldDef) ListDelimiter() string {
	if f.Delimiter == "" {
		return ","
	}
	return f.Delimiter
}

// TypeDef is one entity type: its name and the fields it declares.
type TypeDef struct {
	Name   string     `json:"name"`
	Fields []FieldDef `json:"fields"`
}

// ErrUnknownType is returned when a type name is not present in a Schema.
var ErrUnknownType = errors.Base("unknown-type")

// ErrUnknownField is returned when a field name is not declared on a type.
var ErrUnknownField = errors.Base("unknown-field")

// ErrInvalidConfig is returned when a config-namespace entity does not
// decode into a well-formed type definition.
var ErrInvalidConfig = errors.Base("invalid-schema-config")

// Schema is the full set of entity type definitions active at some point in
// history; it is itself built from config-namespace entities (spec §3).
type Schema struct {
	types map[string]TypeDef
}

// New builds a Schema from a set of type definitions.
func New(types []TypeDef) *Schema {
	m := make(map[string]TypeDef, len(types))
	for _, t := range types {
		m[t.Name] = t
	}
	return &Schema{types: m}
}

// Type looks up a type definition by name.
func (s *Schema) Type(name string) (TypeDef, errors.E) {
	t, ok := s.types[name]
	if !ok {
		errE := errors.WithStack(ErrUnknownType)
		errors.Details(errE)["type"] = name
		return TypeDef{}, errE
	}
	return t, nil
}

// Field looks up a field definition by type and field name.
func (s *Schema) Field(typeName, fieldName string) (FieldDef, errors.E) {
	t, errE := s.Type(typeName)
	if errE != nil {
		return FieldDef{}, errE
	}
	for _, f := range t.Fields {
		if f.Name == fieldName {
			return f, nil
		}
	}
	errE = errors.WithStack(ErrUnknownField)
	errors.Details(errE)["type"] = typeName
	errors.Details(errE)["field"] = fieldName
	return FieldDef{}, errE
}

// FieldOrder returns the field names declared on typeName sorted by their
// schema-assigned integer id — the order canonical encoding requires
// (spec §4.3).
func (s *Schema) FieldOrder(typeName string) ([]string, errors.E) {
	t, errE := s.Type(typeName)
	if errE != nil {
		return nil, errE
	}
	fields := append([]FieldDef{}, t.Fields...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}

// KnownField reports whether fieldName is declared on typeName; used by
// canonical encoding to drop unknown fields before hashing (spec §4.3).
func (s *Schema) KnownField(typeName, fieldName string) bool {
	_, errE := s.Field(typeName, fieldName)
	return errE == nil
}

// Cache memoizes Schema construction keyed by the config transaction id it
// was built from, invalidated whenever a config-touching transaction
// appends (spec §9, "schema caches live on the store").
type Cache struct {
	lru *lru.Cache[int, *Schema]
}

// NewCache constructs a schema cache holding up to size recent schema
// snapshots.
func NewCache(size int) (*Cache, errors.E) {
	c, err := lru.New[int, *Schema](size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Cache{lru: c}, nil
}

// Get returns the cached schema for configTxID, if present.
func (c *Cache) Get(configTxID int) (*Schema, bool) {
	return c.lru.Get(configTxID)
}

// Put stores s under configTxID, evicting the least-recently-used entry
// when the cache is full.
func (c *Cache) Put(configTxID int, s *Schema) {
	c.lru.Add(configTxID, s)
}

// Invalidate drops every cached schema keyed at or after configTxID — called when
// a config-touching transaction appends, since later caches may have been
// built from a now-stale schema (spec §9).
func (c *Cache) Invalidate(configTxID int) {
	for _, key := range c.lru.Keys() {
		if key >= configTxID {
			c.lru.Remove(key)
		}
	}
}
