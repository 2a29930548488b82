package transaction

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sort"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
)

// FieldOrderResolver gives the canonical encoder the schema-assigned field
// id order for a given entity's type, and reports whether a field is known
// to the schema. Implementations that have no schema yet (bootstrapping a
// config namespace) may report every field as known.
type FieldOrderResolver interface {
	KnownField(entityType, field string) bool
	FieldOrder(entityType string) ([]string, errors.E)
	EntityType(ref string, changeset changeset.FieldChangeset) (string, bool)
}

// Canonicalize produces the canonical form of tx: empty per-entity
// changesets dropped, unknown fields dropped, and each seq change's
// mutations sorted by position with insert-before-remove as tie-break
// (spec §4.3 steps 1-2). Field-id key ordering and entity-reference sorting
// (steps 2-3) are applied at serialization time in Hash, since Go maps have
// no persistent order of their own.
func Canonicalize(resolver FieldOrderResolver, tx Transaction) (Transaction, errors.E) {
	records, errE := canonicalizeEntities(resolver, tx.Records)
	if errE != nil {
		return Transaction{}, errE
	}
	configs, errE := canonicalizeEntities(resolver, tx.Configs)
	if errE != nil {
		return Transaction{}, errE
	}
	out := tx
	out.Records = records
	out.Configs = configs
	return out, nil
}

func canonicalizeEntities(resolver FieldOrderResolver, entities EntitiesChangeset) (EntitiesChangeset, errors.E) {
	if len(entities) == 0 {
		return nil, nil
	}
	out := make(EntitiesChangeset, len(entities))
	for ref, cs := range entities {
		canon, errE := canonicalizeChangeset(resolver, ref, cs)
		if errE != nil {
			return nil, errE
		}
		if len(canon) == 0 {
			continue
		}
		out[ref] = canon
	}
	return out, nil
}

func canonicalizeChangeset(resolver FieldOrderResolver, ref string, cs changeset.FieldChangeset) (changeset.FieldChangeset, errors.E) {
	entityType, ok := resolver.EntityType(ref, cs)
	out := make(changeset.FieldChangeset, len(cs))
	for field, vc := range cs {
		if ok && !resolver.KnownField(entityType, field) {
			continue
		}
		out[field] = canonicalizeValueChange(vc)
	}
	return out, nil
}

// canonicalizeValueChange sorts a seq change's mutations by position
// ascending, with insert ordered before remove as a tie-break; other kinds
// are unchanged (set(v, undef) is already represented identically to
// set(v) since Set.HasPrev is the sole discriminator, not a sentinel value).
func canonicalizeValueChange(vc changeset.ValueChange) changeset.ValueChange { //nolint:ireturn
	seq, ok := vc.(changeset.Seq)
	if !ok {
		return vc
	}
	mutations := append([]changeset.Mutation{}, seq.Mutations...)
	sort.SliceStable(mutations, func(i, j int) bool {
		pi, oki := mutationPos(mutations[i])
		pj, okj := mutationPos(mutations[j])
		if !oki || !okj {
			// Mutations without an explicit position (append/trailing-
			// remove) sort after all positional ones, preserving order.
			return oki && !okj
		}
		if pi != pj {
			return pi < pj
		}
		return mutationRank(mutations[i]) < mutationRank(mutations[j])
	})
	return changeset.Seq{Mutations: mutations}
}

func mutationPos(m changeset.Mutation) (int, bool) {
	switch v := m.(type) {
	case changeset.Insert:
		if v.Pos == nil {
			return 0, false
		}
		return *v.Pos, true
	case changeset.Remove:
		if v.Pos == nil {
			return 0, false
		}
		return *v.Pos, true
	default:
		return 0, false
	}
}

func mutationRank(m changeset.Mutation) int {
	if _, ok := m.(changeset.Insert); ok {
		return 0
	}
	return 1
}

// Hash computes the transaction's content-addressed hash: canonical
// serialization with the envelope's fields in fixed order (previous,
// createdAt, author, records?, configs?), each entity changeset's fields in
// schema-id order, and entities sorted lexicographically by reference,
// followed by SHA-256 and URL-safe base64 without padding (spec §4.3 steps
// 3-6). tx is assumed already passed through Canonicalize.
func Hash(resolver FieldOrderResolver, tx Transaction) (string, errors.E) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeJSONField(&buf, "previous", tx.Previous, true)
	writeJSONField(&buf, "createdAt", tx.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"), false)
	writeJSONField(&buf, "author", tx.Author, false)

	if len(tx.Records) > 0 {
		buf.WriteString(`,"records":`)
		entitiesJSON, errE := canonicalEntitiesJSON(resolver, tx.Records)
		if errE != nil {
			return "", errE
		}
		buf.Write(entitiesJSON)
	}
	if len(tx.Configs) > 0 {
		buf.WriteString(`,"configs":`)
		entitiesJSON, errE := canonicalEntitiesJSON(resolver, tx.Configs)
		if errE != nil {
			return "", errE
		}
		buf.Write(entitiesJSON)
	}
	buf.WriteByte('}')

	digest := sha256.Sum256(buf.Bytes())
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

func writeJSONField(buf *bytes.Buffer, key, value string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	keyJSON, _ := json.Marshal(key) //nolint:errchkjson
	valJSON, _ := json.Marshal(value) //nolint:errchkjson
	buf.Write(keyJSON)
	buf.WriteByte(':')
	buf.Write(valJSON)
}

func canonicalEntitiesJSON(resolver FieldOrderResolver, entities EntitiesChangeset) (json.RawMessage, errors.E) {
	refs := make([]string, 0, len(entities))
	for ref := range entities {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ref := range refs {
		if i > 0 {
			buf.WriteByte(',')
		}
		refJSON, err := json.Marshal(ref)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		buf.Write(refJSON)
		buf.WriteByte(':')

		cs := entities[ref]
		order := fieldOrderFor(resolver, ref, cs)
		fieldsJSON, errE := canonicalFieldChangesetJSON(order, cs)
		if errE != nil {
			return nil, errE
		}
		buf.Write(fieldsJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func fieldOrderFor(resolver FieldOrderResolver, ref string, cs changeset.FieldChangeset) []string {
	entityType, ok := resolver.EntityType(ref, cs)
	if ok {
		if order, errE := resolver.FieldOrder(entityType); errE == nil {
			return order
		}
	}
	order := make([]string, 0, len(cs))
	for field := range cs {
		order = append(order, field)
	}
	sort.Strings(order)
	return order
}

func canonicalFieldChangesetJSON(order []string, cs changeset.FieldChangeset) (json.RawMessage, errors.E) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, field := range order {
		vc, ok := cs[field]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyJSON, err := json.Marshal(field)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, errE := changeset.MarshalValueChange(vc)
		if errE != nil {
			return nil, errE
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
