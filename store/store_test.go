package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/store"
	"gitlab.com/binder/binder/transaction"
)

type noSchemaResolver struct{}

func (noSchemaResolver) KnownField(string, string) bool           { return true }
func (noSchemaResolver) FieldOrder(string) ([]string, errors.E)    { return nil, nil }
func (noSchemaResolver) EntityType(string, changeset.FieldChangeset) (string, bool) {
	return "", false
}

// fixedState answers StateBefore with whatever fieldset was recorded for an
// entity right before the test constructed each transaction, so Undo's
// computed inverse can be checked against a known-good prior value.
type fixedState struct {
	records map[string]changeset.Fieldset
}

func (s fixedState) RecordsBefore(_ int, refs []string) (map[string]changeset.Fieldset, errors.E) {
	out := make(map[string]changeset.Fieldset, len(refs))
	for _, ref := range refs {
		out[ref] = s.records[ref]
	}
	return out, nil
}

func (fixedState) ConfigsBefore(int, []string) (map[string]changeset.Fieldset, errors.E) {
	return nil, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, errE := store.Open(context.Background(), filepath.Join(dir, "log"), noSchemaResolver{}, time.Second)
	require.NoError(t, errE)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndAt(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	genesis := transaction.Transaction{ID: 0, Hash: transaction.GenesisHash}
	tx1, errE := transaction.Construct(
		noSchemaResolver{}, "u", time.Time{},
		transaction.EntitiesChangeset{"u1": changeset.FieldChangeset{"title": changeset.NewSet("x")}},
		nil, genesis,
	)
	require.NoError(t, errE)

	require.NoError(t, s.Append(tx1))
	assert.Equal(t, 1, s.Head().ID)
	assert.Equal(t, tx1.Hash, s.Head().Hash)

	got, errE := s.At(1)
	require.NoError(t, errE)
	assert.Equal(t, tx1.Hash, got.Hash)
}

func TestAppendRejectsBrokenChain(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	bad := transaction.Transaction{ID: 5, Previous: "not-the-head", Author: "u"}
	errE := s.Append(bad)
	require.Error(t, errE)
	assert.ErrorIs(t, errE, store.ErrChainBroken)
}

func TestBetweenStreamsInOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	genesis := transaction.Transaction{ID: 0, Hash: transaction.GenesisHash}
	prev := genesis
	for i := 0; i < 3; i++ {
		tx, errE := transaction.Construct(
			noSchemaResolver{}, "u", time.Time{},
			transaction.EntitiesChangeset{"u1": changeset.FieldChangeset{"n": changeset.NewSet(i)}},
			nil, prev,
		)
		require.NoError(t, errE)
		require.NoError(t, s.Append(tx))
		prev = transaction.Transaction{ID: tx.ID, Hash: tx.Hash}
	}

	var seen []int
	errE := s.Between(context.Background(), 1, 3, func(tx transaction.Transaction) errors.E {
		seen = append(seen, tx.ID)
		return nil
	})
	require.NoError(t, errE)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestUndoAppendsInverseAndRecordsUndoLog(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	genesis := transaction.Transaction{ID: 0, Hash: transaction.GenesisHash}
	tx1, errE := transaction.Construct(
		noSchemaResolver{}, "u", time.Time{},
		transaction.EntitiesChangeset{"u1": changeset.FieldChangeset{"title": changeset.NewSet("x")}},
		nil, genesis,
	)
	require.NoError(t, errE)
	require.NoError(t, s.Append(tx1))

	state := fixedState{records: map[string]changeset.Fieldset{"u1": nil}}
	require.NoError(t, s.Undo(context.Background(), 1, state))

	assert.Equal(t, 2, s.Head().ID)
	undoTx, errE := s.At(2)
	require.NoError(t, errE)
	clear, ok := undoTx.Records["u1"]["title"].(changeset.Clear)
	assert.True(t, ok)
	assert.Equal(t, "x", clear.Prev)

	available, errE := s.RedoAvailable()
	require.NoError(t, errE)
	assert.Equal(t, 1, available)
}

func TestIndexTracksEntityIDs(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	genesis := transaction.Transaction{ID: 0, Hash: transaction.GenesisHash}
	tx1, errE := transaction.Construct(
		noSchemaResolver{}, "u", time.Time{},
		transaction.EntitiesChangeset{"u1": changeset.FieldChangeset{"title": changeset.NewSet("x")}},
		nil, genesis,
	)
	require.NoError(t, errE)
	require.NoError(t, s.Append(tx1))

	assert.Equal(t, []int{1}, s.IDsForEntity("u1"))
	assert.Empty(t, s.IDsForEntity("u2"))
}
