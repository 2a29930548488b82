package store

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/x"
)

// entityIndex maps an entity reference to the sorted list of transaction
// ids whose records or configs touch it, so a range fetch for one entity is
// an indexed lookup rather than a full log scan (spec §4.6).
type entityIndex struct {
	mu   sync.Mutex
	path string
	refs map[string][]int
}

func openEntityIndex(path string) (*entityIndex, errors.E) {
	idx := &entityIndex{path: path, refs: map[string][]int{}}
	data, err := os.ReadFile(path) //nolint:gosec
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(data) == 0 {
		return idx, nil
	}
	if errE := x.UnmarshalWithoutUnknownFields(data, &idx.refs); errE != nil {
		return nil, errE
	}
	return idx, nil
}

// record adds id to every ref's posting list, keeping each list sorted and
// de-duplicated (a transaction touching the same entity in both records and
// configs — impossible in practice, since they are disjoint namespaces —
// would otherwise duplicate the id).
func (idx *entityIndex) record(id int, refs []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, ref := range refs {
		ids := idx.refs[ref]
		if n := len(ids); n > 0 && ids[n-1] == id {
			continue
		}
		idx.refs[ref] = append(ids, id)
	}
}

// idsFor returns the transaction ids touching ref, oldest first.
func (idx *entityIndex) idsFor(ref string) []int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ids := idx.refs[ref]
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}

// flush persists the index to disk atomically.
func (idx *entityIndex) flush() errors.E {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	data, err := x.MarshalWithoutEscapeHTML(idx.refs)
	if err != nil {
		return errors.WithStack(err)
	}

	tmp := idx.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o700); err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// rebuildEntityIndex replaces the index's contents by replaying every transaction from
// the main log, for out-of-band recovery when the index is lost or
// suspected stale (spec §4.6).
func rebuildEntityIndex(idx *entityIndex, txs []transactionRefs) {
	idx.mu.Lock()
	idx.refs = map[string][]int{}
	idx.mu.Unlock()

	for _, t := range txs {
		idx.record(t.id, t.refs)
	}
	for ref, ids := range idx.refs {
		sort.Ints(ids)
		idx.refs[ref] = ids
	}
}

// transactionRefs is the minimal shape rebuildEntityIndex needs from a
// transaction: its id and the entity references its records/configs touch.
type transactionRefs struct {
	id   int
	refs []string
}
