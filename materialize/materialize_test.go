package materialize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/materialize"
	"gitlab.com/binder/binder/transaction"
)

// fakeLog is an in-memory Log backing transactions by id, with a hand-built
// entity index, for testing materialization without a real store on disk.
type fakeLog struct {
	txs   map[int]transaction.Transaction
	index map[string][]int
}

func (f *fakeLog) IDsForEntity(ref string) []int { return f.index[ref] }

func (f *fakeLog) At(id int) (transaction.Transaction, errors.E) {
	tx, ok := f.txs[id]
	if !ok {
		return transaction.Transaction{}, errors.WithStack(assert.AnError)
	}
	return tx, nil
}

func newFakeLog() *fakeLog {
	return &fakeLog{txs: map[int]transaction.Transaction{}, index: map[string][]int{}}
}

func (f *fakeLog) add(id int, ref string, cs changeset.FieldChangeset) {
	f.txs[id] = transaction.Transaction{
		ID:      id,
		Records: transaction.EntitiesChangeset{ref: cs},
	}
	f.index[ref] = append(f.index[ref], id)
}

func TestFoldAppliesInOrder(t *testing.T) {
	t.Parallel()
	log := newFakeLog()
	log.add(1, "u1", changeset.FieldChangeset{
		"id":    changeset.NewSet("u1"),
		"title": changeset.NewSet("draft"),
	})
	log.add(2, "u1", changeset.FieldChangeset{
		"title": changeset.NewAnchoredSet("final", "draft"),
	})

	fs, lastID, errE := materialize.Fold(log, materialize.Records, "u1")
	require.NoError(t, errE)
	assert.Equal(t, 2, lastID)
	assert.Equal(t, "final", fs["title"])
}

func TestTombstoneDetection(t *testing.T) {
	t.Parallel()
	log := newFakeLog()
	log.add(1, "u1", changeset.FieldChangeset{
		"id":    changeset.NewSet("u1"),
		"title": changeset.NewSet("draft"),
	})
	log.add(2, "u1", changeset.FieldChangeset{
		"title": changeset.NewAnchoredSet(nil, "draft"),
	})

	fs, _, errE := materialize.Fold(log, materialize.Records, "u1")
	require.NoError(t, errE)
	assert.True(t, materialize.IsTombstone(fs))

	_, found, errE := materialize.Get(log, materialize.Records, "u1")
	require.NoError(t, errE)
	assert.False(t, found)
}

func TestNeverCreatedIsNotATombstone(t *testing.T) {
	t.Parallel()
	log := newFakeLog()
	assert.False(t, materialize.IsTombstone(changeset.Fieldset{}))
	_, found, errE := materialize.Get(log, materialize.Records, "ghost")
	require.NoError(t, errE)
	assert.False(t, found)
}

func TestFoldBeforeExcludesLaterTransactions(t *testing.T) {
	t.Parallel()
	log := newFakeLog()
	log.add(1, "u1", changeset.FieldChangeset{"title": changeset.NewSet("draft")})
	log.add(2, "u1", changeset.FieldChangeset{"title": changeset.NewAnchoredSet("final", "draft")})

	fs, errE := materialize.FoldBefore(log, materialize.Records, "u1", 2)
	require.NoError(t, errE)
	assert.Equal(t, "draft", fs["title"])
}
