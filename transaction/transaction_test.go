package transaction_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/transaction"
)

// alphabeticalResolver has no schema: every field is known, ordered
// alphabetically. Used to exercise the encoder deterministically without a
// schema package dependency in these tests.
type alphabeticalResolver struct{}

func (alphabeticalResolver) KnownField(string, string) bool { return true }

func (alphabeticalResolver) FieldOrder(string) ([]string, errors.E) {
	return nil, nil
}

func (alphabeticalResolver) EntityType(string, changeset.FieldChangeset) (string, bool) {
	return "", false
}

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := transaction.Transaction{
		Previous:  transaction.GenesisHash,
		CreatedAt: createdAt,
		Author:    "u",
		Records: transaction.EntitiesChangeset{
			"u1": changeset.FieldChangeset{"title": changeset.NewSet("x")},
		},
	}

	h1, errE := transaction.Hash(alphabeticalResolver{}, tx)
	require.NoError(t, errE)
	h2, errE := transaction.Hash(alphabeticalResolver{}, tx)
	require.NoError(t, errE)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 43)
}

func TestGenesisHashLength(t *testing.T) {
	t.Parallel()

	assert.Len(t, transaction.GenesisHash, 43)
	for _, r := range transaction.GenesisHash {
		assert.Equal(t, 'A', r)
	}
}

func TestConstructChainsID(t *testing.T) {
	t.Parallel()

	genesis := transaction.Transaction{ID: 0, Hash: transaction.GenesisHash}
	tx1, errE := transaction.Construct(
		alphabeticalResolver{}, "u", time.Time{},
		transaction.EntitiesChangeset{"u1": changeset.FieldChangeset{"title": changeset.NewSet("a")}},
		nil, genesis,
	)
	require.NoError(t, errE)
	assert.Equal(t, 1, tx1.ID)
	assert.Equal(t, transaction.GenesisHash, tx1.Previous)
	assert.NotEmpty(t, tx1.Hash)
}

func TestConstructRejectsEmpty(t *testing.T) {
	t.Parallel()

	genesis := transaction.Transaction{ID: 0, Hash: transaction.GenesisHash}
	_, errE := transaction.Construct(alphabeticalResolver{}, "u", time.Time{}, nil, nil, genesis)
	require.ErrorIs(t, errE, transaction.ErrEmptyTransaction)
}

func TestSquashRangeInheritsEndpoints(t *testing.T) {
	t.Parallel()

	t1 := transaction.Transaction{
		ID: 1, Previous: transaction.GenesisHash, Author: "u1",
		Records: transaction.EntitiesChangeset{"u1": changeset.FieldChangeset{"title": changeset.NewSet("a")}},
	}
	t2 := transaction.Transaction{
		ID: 2, Previous: t1.Hash, Author: "u2",
		Records: transaction.EntitiesChangeset{"u1": changeset.FieldChangeset{"title": changeset.NewAnchoredSet("b", "a")}},
	}

	result, errE := transaction.SquashRange(alphabeticalResolver{}, []transaction.Transaction{t1, t2})
	require.NoError(t, errE)
	assert.Equal(t, transaction.GenesisHash, result.Previous)
	assert.Equal(t, "u2", result.Author)

	set, ok := result.Records["u1"]["title"].(changeset.Set)
	if assert.True(t, ok) {
		assert.Equal(t, "b", set.New)
	}
}
