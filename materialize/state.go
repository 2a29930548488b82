package materialize

import (
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
)

// StateBefore adapts a Log into the store.StateBefore interface undo needs:
// the fieldset each ref was in immediately before a given transaction id,
// recovered by replaying the index up to that point.
type StateBefore struct {
	Log Log
}

func (s StateBefore) RecordsBefore(txID int, refs []string) (map[string]changeset.Fieldset, errors.E) {
	return s.before(Records, txID, refs)
}

func (s StateBefore) ConfigsBefore(txID int, refs []string) (map[string]changeset.Fieldset, errors.E) {
	return s.before(Configs, txID, refs)
}

func (s StateBefore) before(ns Namespace, txID int, refs []string) (map[string]changeset.Fieldset, errors.E) {
	out := make(map[string]changeset.Fieldset, len(refs))
	for _, ref := range refs {
		fs, errE := FoldBefore(s.Log, ns, ref, txID)
		if errE != nil {
			return nil, errE
		}
		out[ref] = fs
	}
	return out, nil
}
