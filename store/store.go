// Package store implements the append-only log store contract (C5): a
// single-writer, advisory-locked transaction log with a head cursor, an
// entity index for indexed range fetches, and undo/redo bookkeeping.
package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/transaction"
)

// Store is one workspace's log directory, holding both the records and the
// configs namespace of every transaction: log.bin, head, index/by-entity,
// .undo-log, .redo-log, and the advisory lock file guarding them all
// (spec §6). A Store holds the writer's exclusive lock for its lifetime.
type Store struct {
	dir      string
	headPath string
	lock     *flock.Flock
	log      *logFile
	index    *entityIndex
	undo     *idLog
	redo     *idLog
	resolver transaction.FieldOrderResolver

	head Head
}

// StateBefore supplies the fieldset state of entities immediately before a
// given transaction id, which Undo needs to compute inverses (spec §4.4,
// §4.6). Callers typically back this with the materializer.
type StateBefore interface {
	RecordsBefore(txID int, refs []string) (map[string]changeset.Fieldset, errors.E)
	ConfigsBefore(txID int, refs []string) (map[string]changeset.Fieldset, errors.E)
}

// Open acquires the directory's advisory lock and opens (creating if
// absent) its log, head, index, and undo/redo files. The lock acquisition
// retries until timeout elapses, failing with ErrLockTimeout (spec §5).
func Open(ctx context.Context, dir string, resolver transaction.FieldOrderResolver, timeout time.Duration) (*Store, errors.E) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "index"), 0o700); err != nil {
		return nil, errors.WithStack(err)
	}

	lockPath := filepath.Join(dir, "lock")
	lock := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 20*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, errors.WithStack(err)
	}
	if !locked {
		errE := errors.WithStack(ErrLockTimeout)
		errors.Details(errE)["dir"] = dir
		errors.Details(errE)["timeout"] = timeout.String()
		return nil, errE
	}

	log, errE := openLogFile(filepath.Join(dir, "log.bin"))
	if errE != nil {
		_ = lock.Unlock()
		return nil, errE
	}
	headPath := filepath.Join(dir, "head")
	head, errE := readHead(headPath)
	if errE != nil {
		_ = log.close()
		_ = lock.Unlock()
		return nil, errE
	}
	index, errE := openEntityIndex(filepath.Join(dir, "index", "by-entity"))
	if errE != nil {
		_ = log.close()
		_ = lock.Unlock()
		return nil, errE
	}

	return &Store{
		dir:      dir,
		headPath: headPath,
		lock:     lock,
		log:      log,
		index:    index,
		undo:     newIDLog(filepath.Join(dir, ".undo-log")),
		redo:     newIDLog(filepath.Join(dir, ".redo-log")),
		resolver: resolver,
		head:     head,
	}, nil
}

// Close releases the store's resources and its advisory lock.
func (s *Store) Close() error {
	logErr := s.log.close()
	lockErr := s.lock.Unlock()
	if logErr != nil {
		return logErr
	}
	return lockErr
}

// Head returns the store's current cursor.
func (s *Store) Head() Head {
	return s.head
}

// Append validates tx against the current head and persists it atomically,
// advancing the head cursor and clearing both the undo log (the ids queued
// to redo) and the redo log, since appending any ordinary (non-undo/redo)
// transaction invalidates whatever was queued to redo (spec §4.5, §6).
func (s *Store) Append(tx transaction.Transaction) errors.E {
	if errE := s.appendLocked(tx); errE != nil {
		return errE
	}
	if errE := s.undo.clear(); errE != nil {
		return errE
	}
	return s.redo.clear()
}

func (s *Store) appendLocked(tx transaction.Transaction) errors.E {
	if tx.Previous != s.head.Hash || tx.ID != s.head.ID+1 {
		errE := errors.WithStack(ErrChainBroken)
		errors.Details(errE)["expectedID"] = s.head.ID + 1
		errors.Details(errE)["gotID"] = tx.ID
		errors.Details(errE)["expectedPrevious"] = s.head.Hash
		errors.Details(errE)["gotPrevious"] = tx.Previous
		return errE
	}

	if errE := s.log.append(tx); errE != nil {
		return errE
	}

	s.index.record(tx.ID, entityRefs(tx))
	if errE := s.index.flush(); errE != nil {
		return errE
	}

	head := Head{ID: tx.ID, Hash: tx.Hash, Timestamp: tx.CreatedAt}
	if errE := writeHead(s.headPath, head); errE != nil {
		return errE
	}
	s.head = head
	return nil
}

func entityRefs(tx transaction.Transaction) []string {
	refs := make([]string, 0, len(tx.Records)+len(tx.Configs))
	for ref := range tx.Records {
		refs = append(refs, ref)
	}
	for ref := range tx.Configs {
		refs = append(refs, ref)
	}
	return refs
}

// At retrieves the transaction with the given id, re-deriving its hash and
// failing with ErrCorruption on mismatch (spec §6).
func (s *Store) At(id int) (transaction.Transaction, errors.E) {
	return s.log.at(id, s.resolver)
}

// Between streams the transactions [lo, hi] in order, calling yield for
// each. yield's error, or ctx's cancellation, stops the stream early
// without any durable effect (spec §5, "a cancelled operation leaves no
// durable state").
func (s *Store) Between(ctx context.Context, lo, hi int, yield func(transaction.Transaction) errors.E) errors.E {
	for id := lo; id <= hi; id++ {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		tx, errE := s.log.at(id, s.resolver)
		if errE != nil {
			return errE
		}
		if errE := yield(tx); errE != nil {
			return errE
		}
	}
	return nil
}

// IDsForEntity returns, oldest first, the ids of transactions touching ref.
func (s *Store) IDsForEntity(ref string) []int {
	return s.index.idsFor(ref)
}

// RebuildIndex replays the whole log to rebuild the entity index from
// scratch, for recovery when the index file is lost or suspected stale
// (spec §4.6).
func (s *Store) RebuildIndex() errors.E {
	refs := make([]transactionRefs, 0, s.log.count())
	for id := 1; id <= s.log.count(); id++ {
		tx, errE := s.log.at(id, nil)
		if errE != nil {
			return errE
		}
		refs = append(refs, transactionRefs{id: tx.ID, refs: entityRefs(tx)})
	}
	rebuildEntityIndex(s.index, refs)
	return s.index.flush()
}

// Undo rolls back the last n transactions: for each, newest first, it
// appends the inverse computed against the prior entity state, then records
// the undone ids in the undo log. The main log is never truncated
// (spec §4.5, §6).
func (s *Store) Undo(ctx context.Context, n int, state StateBefore) errors.E {
	if n > s.head.ID {
		n = s.head.ID
	}
	undone := make([]int, 0, n)
	last := s.head.ID
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		txID := last - i
		tx, errE := s.log.at(txID, s.resolver)
		if errE != nil {
			return errE
		}

		priorRecords, errE := state.RecordsBefore(txID, refKeys(tx.Records))
		if errE != nil {
			return errE
		}
		priorConfigs, errE := state.ConfigsBefore(txID, refKeys(tx.Configs))
		if errE != nil {
			return errE
		}

		inv := transaction.Invert(tx, priorRecords, priorConfigs)
		prevTx := transaction.Transaction{ID: s.head.ID, Hash: s.head.Hash}
		built, errE := transaction.Construct(s.resolver, inv.Author, time.Now().UTC(), inv.Records, inv.Configs, prevTx)
		if errE != nil {
			return errE
		}
		if errE := s.appendLocked(built); errE != nil {
			return errE
		}
		undone = append(undone, txID)
	}
	return s.undo.appendIDs(undone)
}

// RedoAvailable returns how many undone transactions are currently queued
// to redo.
func (s *Store) RedoAvailable() (int, errors.E) {
	ids, errE := s.undo.read()
	if errE != nil {
		return 0, errE
	}
	return len(ids), nil
}

// Redo re-applies the last n undone transactions, oldest original-id first,
// by re-appending their original forward content, and moves their ids from
// the undo log to the redo log (spec §6).
func (s *Store) Redo(ctx context.Context, n int) errors.E {
	ids, errE := s.undo.popTail(n)
	if errE != nil {
		return errE
	}
	sort.Ints(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		tx, errE := s.log.at(id, s.resolver)
		if errE != nil {
			return errE
		}
		prevTx := transaction.Transaction{ID: s.head.ID, Hash: s.head.Hash}
		built, errE := transaction.Construct(s.resolver, tx.Author, time.Now().UTC(), tx.Records, tx.Configs, prevTx)
		if errE != nil {
			return errE
		}
		if errE := s.appendLocked(built); errE != nil {
			return errE
		}
	}
	return s.redo.appendIDs(ids)
}

func refKeys(entities transaction.EntitiesChangeset) []string {
	refs := make([]string, 0, len(entities))
	for ref := range entities {
		refs = append(refs, ref)
	}
	return refs
}
