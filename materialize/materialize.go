// Package materialize implements the entity materializer (C6): folding a
// per-namespace stream of transactions into current fieldsets, with
// tombstone detection and an indexed range query over the log store.
package materialize

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/transaction"
)

// Log is the subset of the log store a materializer needs: indexed lookup
// of which transactions touch a reference, and fetching those by id.
type Log interface {
	IDsForEntity(ref string) []int
	At(id int) (transaction.Transaction, errors.E)
}

// Namespace selects which of a transaction's two entity maps to fold:
// records (user data) or configs (schema and workspace settings).
type Namespace int

const (
	Records Namespace = iota
	Configs
)

func namespaceOf(tx transaction.Transaction, ns Namespace) transaction.EntitiesChangeset {
	if ns == Configs {
		return tx.Configs
	}
	return tx.Records
}

// Fold replays the transactions touching ref, in ascending id order, onto
// an initially empty fieldset via apply_changeset, and returns the result
// together with the highest transaction id folded (spec §4.6).
func Fold(log Log, ns Namespace, ref string) (changeset.Fieldset, int, errors.E) {
	return foldUpTo(log, ns, ref, 0)
}

// FoldBefore replays only the transactions with id < beforeTxID, used by
// undo to recover the state an entity was in immediately before a given
// transaction (spec §4.4, store.StateBefore).
func FoldBefore(log Log, ns Namespace, ref string, beforeTxID int) (changeset.Fieldset, errors.E) {
	fs, _, errE := foldUpTo(log, ns, ref, beforeTxID)
	return fs, errE
}

// foldUpTo folds every transaction id touching ref that is strictly below
// ceiling, or all of them when ceiling is 0.
func foldUpTo(log Log, ns Namespace, ref string, ceiling int) (changeset.Fieldset, int, errors.E) {
	var fieldset changeset.Fieldset
	var lastID int
	for _, id := range log.IDsForEntity(ref) {
		if ceiling != 0 && id >= ceiling {
			break
		}
		tx, errE := log.At(id)
		if errE != nil {
			return nil, 0, errE
		}
		cs, ok := namespaceOf(tx, ns)[ref]
		if !ok {
			continue
		}
		applied, errE := changeset.ApplyChangeset(fieldset, cs)
		if errE != nil {
			return nil, 0, errE
		}
		fieldset = applied
		lastID = id
	}
	return fieldset, lastID, nil
}

// IsTombstone reports whether fieldset represents a deleted entity: a
// fieldset with no id never existed, while one with a non-null id but every
// other field null is a tombstone excluded from query results unless
// explicitly requested (spec §4.6).
func IsTombstone(fieldset changeset.Fieldset) bool {
	id, hasID := fieldset["id"]
	if !hasID || id == nil {
		return false
	}
	for key, value := range fieldset {
		if key == "id" {
			continue
		}
		if value != nil {
			return false
		}
	}
	return true
}

// Exists reports whether fieldset denotes an entity that was ever created.
func Exists(fieldset changeset.Fieldset) bool {
	id, hasID := fieldset["id"]
	return hasID && id != nil
}

// Get materializes ref and returns it unless it is absent or a tombstone,
// in which case found is false.
func Get(log Log, ns Namespace, ref string) (fieldset changeset.Fieldset, found bool, errE errors.E) {
	fs, _, errE := Fold(log, ns, ref)
	if errE != nil {
		return nil, false, errE
	}
	if !Exists(fs) || IsTombstone(fs) {
		return nil, false, nil
	}
	return fs, true, nil
}

// List materializes every ref in refs, in the given order, skipping ones
// that don't exist or are tombstoned — the indexed counterpart to a full
// scan (spec §4.6, "indexed lookup, not a full scan").
func List(ctx context.Context, log Log, ns Namespace, refs []string) ([]changeset.Fieldset, errors.E) {
	out := make([]changeset.Fieldset, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		fs, found, errE := Get(log, ns, ref)
		if errE != nil {
			return nil, errE
		}
		if found {
			out = append(out, fs)
		}
	}
	return out, nil
}
