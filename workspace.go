// Package binder wires the changeset engine, log store, materializer,
// patch DSL, and input shim into a workspace a thin CLI (or, eventually,
// an LSP/document layer) drives (spec §6).
package binder

import (
	"context"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/identifier"
	"gitlab.com/binder/binder/input"
	"gitlab.com/binder/binder/materialize"
	"gitlab.com/binder/binder/patchdsl"
	"gitlab.com/binder/binder/schema"
	"gitlab.com/binder/binder/store"
	"gitlab.com/binder/binder/transaction"
)

// DefaultLockTimeout bounds how long opening a workspace waits for another
// process's advisory lock on the same directory to clear.
const DefaultLockTimeout = 5 * time.Second

// Workspace is one open log store together with the schema it governs,
// kept current as configuration-touching transactions append (spec §9).
type Workspace struct {
	store    *store.Store
	resolver *liveResolver
	cache    *schema.Cache
}

// Open acquires dir's workspace: its log store and, from the config
// namespace already recorded there, its schema.
func Open(ctx context.Context, dir string, timeout time.Duration) (*Workspace, errors.E) {
	resolver := &liveResolver{}
	st, errE := store.Open(ctx, dir, resolver, timeout)
	if errE != nil {
		return nil, errE
	}
	cache, errE := schema.NewCache(8)
	if errE != nil {
		_ = st.Close()
		return nil, errE
	}

	resolver.typeOf = func(ref string) (string, bool) {
		fs, found, errE := materialize.Get(st, materialize.Records, ref)
		if errE != nil || !found {
			return "", false
		}
		name, ok := fs["type"].(string)
		return name, ok
	}

	ws := &Workspace{store: st, resolver: resolver, cache: cache}
	if errE := ws.reloadSchema(ctx); errE != nil {
		_ = st.Close()
		return nil, errE
	}
	return ws, nil
}

// Close releases the workspace's store.
func (ws *Workspace) Close() error {
	return ws.store.Close()
}

// Schema returns the workspace's current schema snapshot.
func (ws *Workspace) Schema() *schema.Schema {
	return ws.resolver.current()
}

// reloadSchema rebuilds the schema from every config-namespace entity ever
// touched, memoized by head transaction id; a config-touching append
// invalidates later cache entries (spec §9, "schema caches live on the
// store").
func (ws *Workspace) reloadSchema(ctx context.Context) errors.E {
	head := ws.store.Head()
	if cached, ok := ws.cache.Get(head.ID); ok {
		ws.resolver.setSchema(cached)
		return nil
	}

	refs := map[string]bool{}
	errE := ws.store.Between(ctx, 1, head.ID, func(tx transaction.Transaction) errors.E {
		for ref := range tx.Configs {
			refs[ref] = true
		}
		return nil
	})
	if errE != nil {
		return errE
	}

	refList := make([]string, 0, len(refs))
	for ref := range refs {
		refList = append(refList, ref)
	}
	if len(refList) == 0 {
		// No config entity yet: the resolver stays schema-less.
		ws.resolver.setSchema(nil)
		return nil
	}
	fieldsets, errE := materialize.List(ctx, ws.store, materialize.Configs, refList)
	if errE != nil {
		return errE
	}

	s, errE := schema.FromConfigFieldsets(fieldsets)
	if errE != nil {
		return errE
	}
	ws.cache.Put(head.ID, s)
	ws.resolver.setSchema(s)
	return nil
}

// appendAndReload constructs and appends a transaction over records/configs
// authored by author, then reloads the schema if configs is non-empty.
func (ws *Workspace) appendAndReload(ctx context.Context, author string, records, configs transaction.EntitiesChangeset) (transaction.Transaction, errors.E) {
	head := ws.store.Head()
	prevTx := transaction.Transaction{ID: head.ID, Hash: head.Hash}
	tx, errE := transaction.Construct(ws.resolver, author, time.Now().UTC(), records, configs, prevTx)
	if errE != nil {
		return transaction.Transaction{}, errE
	}
	if errE := ws.store.Append(tx); errE != nil {
		return transaction.Transaction{}, errE
	}
	if len(configs) > 0 {
		ws.cache.Invalidate(head.ID + 1)
		if errE := ws.reloadSchema(ctx); errE != nil {
			return transaction.Transaction{}, errE
		}
	}
	return tx, nil
}

// CreateRecord normalizes and validates a `{ type, key, ...fields }`
// request and appends the resulting create transaction (spec §4.9).
func (ws *Workspace) CreateRecord(ctx context.Context, author string, raw map[string]interface{}) (string, transaction.Transaction, errors.E) {
	create, errE := input.NormalizeCreate(raw, "type", "key")
	if errE != nil {
		return "", transaction.Transaction{}, errE
	}

	s := ws.Schema()
	if s == nil {
		errE := errors.WithStack(schema.ErrUnknownType)
		errors.Details(errE)["type"] = create.Type
		return "", transaction.Transaction{}, errE
	}

	create.Fields["type"] = changeset.NewSet(create.Type)
	create.Fields["id"] = changeset.NewSet(float64(ws.store.Head().ID + 1))
	if errE := input.Validate(s, create.Type, create.Fields, true); errE != nil {
		return "", transaction.Transaction{}, errE
	}

	records := transaction.EntitiesChangeset{create.UID: create.Fields}
	tx, errE := ws.appendAndReload(ctx, author, records, nil)
	return create.UID, tx, errE
}

// DefineType appends a config-namespace entity describing a schema type:
// its name and field definitions (spec §3, "configurations carry the
// schema itself ... as ordinary entities in their namespace"). It bypasses
// input.Validate since the config namespace has no schema of its own to
// validate against.
func (ws *Workspace) DefineType(ctx context.Context, author, key string, typeDef schema.TypeDef) (transaction.Transaction, errors.E) {
	if key == "" {
		key = identifier.NewRandom()
	}

	rawFields := make([]interface{}, len(typeDef.Fields))
	for i, fd := range typeDef.Fields {
		entry := map[string]interface{}{
			"id":   float64(fd.ID),
			"name": fd.Name,
			"type": string(fd.Type),
			"list": fd.List,
		}
		if fd.Of != "" {
			entry["of"] = fd.Of
		}
		if fd.Delimiter != "" {
			entry["delimiter"] = fd.Delimiter
		}
		if fd.Required {
			entry["required"] = true
		}
		if fd.When != nil {
			entry["when"] = map[string]interface{}{"field": fd.When.Field, "equals": fd.When.Equals}
		}
		rawFields[i] = entry
	}

	fields := changeset.FieldChangeset{
		"id":     changeset.NewSet(float64(ws.store.Head().ID + 1)),
		"type":   changeset.NewSet("schema"),
		"name":   changeset.NewSet(typeDef.Name),
		"fields": changeset.NewSet(rawFields),
	}

	configs := transaction.EntitiesChangeset{key: fields}
	return ws.appendAndReload(ctx, author, nil, configs)
}

// UpdateRecord normalizes and validates a `{ $ref, ...fields }` request
// against the live entity's current fields and appends the update.
func (ws *Workspace) UpdateRecord(ctx context.Context, author string, raw map[string]interface{}) (transaction.Transaction, errors.E) {
	update, errE := input.NormalizeUpdate(raw, "$ref")
	if errE != nil {
		return transaction.Transaction{}, errE
	}

	current, found, errE := materialize.Get(ws.store, materialize.Records, update.Ref)
	if errE != nil {
		return transaction.Transaction{}, errE
	}
	if !found {
		errE := errors.WithStack(ErrEntityNotFound)
		errors.Details(errE)["ref"] = update.Ref
		return transaction.Transaction{}, errE
	}

	typeName, _ := current["type"].(string)
	s := ws.Schema()
	if s != nil {
		if errE := input.Validate(s, typeName, update.Fields, false); errE != nil {
			return transaction.Transaction{}, errE
		}
	}

	records := transaction.EntitiesChangeset{update.Ref: update.Fields}
	return ws.appendAndReload(ctx, author, records, nil)
}

// UpdateEntityWithPatch normalizes fieldAssignments (plain `name=value`
// strings) via C9 and merges in patchTokens parsed via C8 against the
// entity's live fields, then validates and appends the combined update —
// the CLI's two field-editing paths feeding one entities changeset
// (spec §6A).
func (ws *Workspace) UpdateEntityWithPatch(ctx context.Context, author, ref string, fieldAssignments map[string]string, patchTokens []string) (transaction.Transaction, errors.E) {
	current, found, errE := materialize.Get(ws.store, materialize.Records, ref)
	if errE != nil {
		return transaction.Transaction{}, errE
	}
	if !found {
		errE := errors.WithStack(ErrEntityNotFound)
		errors.Details(errE)["ref"] = ref
		return transaction.Transaction{}, errE
	}
	typeName, _ := current["type"].(string)

	raw := map[string]interface{}{"$ref": ref}
	for name, value := range fieldAssignments {
		raw[name] = value
	}
	update, errE := input.NormalizeUpdate(raw, "$ref")
	if errE != nil {
		return transaction.Transaction{}, errE
	}

	if len(patchTokens) > 0 {
		patchCS, errE := ws.BuildPatch(typeName, patchTokens, current) //nolint:govet
		if errE != nil {
			return transaction.Transaction{}, errE
		}
		for field, vc := range patchCS {
			update.Fields[field] = vc
		}
	}

	s := ws.Schema()
	if s != nil {
		if errE := input.Validate(s, typeName, update.Fields, false); errE != nil {
			return transaction.Transaction{}, errE
		}
	}

	records := transaction.EntitiesChangeset{ref: update.Fields}
	return ws.appendAndReload(ctx, author, records, nil)
}

// DeleteRecord clears every field of ref's current fieldset (other than
// id), leaving the tombstone materialize.IsTombstone recognizes.
func (ws *Workspace) DeleteRecord(ctx context.Context, author, ref string) (transaction.Transaction, errors.E) {
	current, found, errE := materialize.Get(ws.store, materialize.Records, ref)
	if errE != nil {
		return transaction.Transaction{}, errE
	}
	if !found {
		errE := errors.WithStack(ErrEntityNotFound)
		errors.Details(errE)["ref"] = ref
		return transaction.Transaction{}, errE
	}

	fields := make(changeset.FieldChangeset, len(current))
	for key, value := range current {
		if key == "id" {
			continue
		}
		fields[key] = changeset.Clear{Prev: value}
	}

	records := transaction.EntitiesChangeset{ref: fields}
	return ws.appendAndReload(ctx, author, records, nil)
}

// ReadRecord materializes ref, failing ErrEntityNotFound if it was never
// created or has been deleted.
func (ws *Workspace) ReadRecord(ref string) (changeset.Fieldset, errors.E) {
	fs, found, errE := materialize.Get(ws.store, materialize.Records, ref)
	if errE != nil {
		return nil, errE
	}
	if !found {
		errE := errors.WithStack(ErrEntityNotFound)
		errors.Details(errE)["ref"] = ref
		return nil, errE
	}
	return fs, nil
}

// Search performs a linear scan of every record ever touched, returning
// those whose fields contain query as a substring — explicitly the
// thinnest useful client, not a real index (spec §6A).
func (ws *Workspace) Search(ctx context.Context, query string) ([]changeset.Fieldset, errors.E) {
	refs := map[string]bool{}
	errE := ws.store.Between(ctx, 1, ws.store.Head().ID, func(tx transaction.Transaction) errors.E {
		for ref := range tx.Records {
			refs[ref] = true
		}
		return nil
	})
	if errE != nil {
		return nil, errE
	}

	refList := make([]string, 0, len(refs))
	for ref := range refs {
		refList = append(refList, ref)
	}
	all, errE := materialize.List(ctx, ws.store, materialize.Records, refList)
	if errE != nil {
		return nil, errE
	}
	if query == "" {
		return all, nil
	}

	matches := make([]changeset.Fieldset, 0, len(all))
	for _, fs := range all {
		if fieldsetContains(fs, query) {
			matches = append(matches, fs)
		}
	}
	return matches, nil
}

func fieldsetContains(fs changeset.Fieldset, query string) bool {
	for _, v := range fs {
		if valueContains(v, query) {
			return true
		}
	}
	return false
}

func valueContains(v changeset.Value, query string) bool {
	switch t := v.(type) {
	case string:
		return containsFold(t, query)
	case []changeset.Value:
		for _, elem := range t {
			if valueContains(elem, query) {
				return true
			}
		}
	case map[string]changeset.Value:
		for _, elem := range t {
			if valueContains(elem, query) {
				return true
			}
		}
	}
	return false
}

// BuildPatch parses DSL tokens against the entity type's schema, resolving
// `-=`/`--` removals against the entity's current fields.
func (ws *Workspace) BuildPatch(typeName string, tokens []string, current changeset.Fieldset) (changeset.FieldChangeset, errors.E) {
	s := ws.Schema()
	if s == nil {
		return nil, errors.WithStack(schema.ErrUnknownType)
	}
	lookup := func(field string) (schema.FieldDef, errors.E) {
		return s.Field(typeName, field)
	}
	return patchdsl.Build(tokens, lookup, current)
}

// Undo rolls back the last n transactions.
func (ws *Workspace) Undo(ctx context.Context, n int) errors.E {
	if ws.store.Head().ID == 0 {
		return errors.WithStack(ErrNothingToUndo)
	}
	state := materialize.StateBefore{Log: ws.store}
	return ws.store.Undo(ctx, n, state)
}

// Redo re-applies the last n undone transactions.
func (ws *Workspace) Redo(ctx context.Context, n int) errors.E {
	available, errE := ws.store.RedoAvailable()
	if errE != nil {
		return errE
	}
	if available == 0 {
		return errors.WithStack(ErrNothingToRedo)
	}
	return ws.store.Redo(ctx, n)
}

// NewUID generates a fresh record or config identifier.
func NewUID() string {
	return identifier.NewRandom()
}

func containsFold(s, query string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(query))
}
