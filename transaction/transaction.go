// Package transaction implements the hash-chained transaction model: the
// canonical encoder and hasher (C3) and the transaction model's construct,
// invert, and squash-range operations (C4).
package transaction

import (
	"time"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
)

// GenesisHash is the fixed predecessor hash of transaction id 1: the
// canonical encoding of a 32-byte zero digest (spec §4.3).
const GenesisHash = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// EntitiesChangeset maps an entity reference (uid for records, key for
// configs) to the field changeset to apply to it.
type EntitiesChangeset map[string]changeset.FieldChangeset

// Transaction is the atomic, immutable unit of history (spec §3).
type Transaction struct {
	ID        int               `json:"id"`
	Hash      string            `json:"hash"`
	Previous  string            `json:"previous"`
	CreatedAt time.Time         `json:"createdAt"`
	Author    string            `json:"author"`
	Records   EntitiesChangeset `json:"records,omitempty"`
	Configs   EntitiesChangeset `json:"configs,omitempty"`
}

// ErrEmptyTransaction is returned when Construct is asked to build a
// transaction with no record or config changes at all.
var ErrEmptyTransaction = errors.Base("empty-transaction")

// Construct builds a new transaction chained after previous, canonicalizing
// and hashing its content (spec §4.4). createdAt defaults to the wall clock
// when zero.
func Construct(
	resolver FieldOrderResolver, author string, createdAt time.Time,
	records, configs EntitiesChangeset, previous Transaction,
) (Transaction, errors.E) {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx := Transaction{
		ID:        previous.ID + 1,
		Previous:  previous.Hash,
		CreatedAt: createdAt.UTC(),
		Author:    author,
		Records:   records,
		Configs:   configs,
	}

	canonical, errE := Canonicalize(resolver, tx)
	if errE != nil {
		return Transaction{}, errE
	}
	if len(canonical.Records) == 0 && len(canonical.Configs) == 0 {
		errE := errors.WithStack(ErrEmptyTransaction)
		return Transaction{}, errE
	}

	hash, errE := Hash(resolver, canonical)
	if errE != nil {
		return Transaction{}, errE
	}
	tx.Records = canonical.Records
	tx.Configs = canonical.Configs
	tx.Hash = hash
	return tx, nil
}

// Invert produces the transaction that undoes tx: every per-entity
// changeset is replaced by its inverse, computed against priorRecords and
// priorConfigs (the fieldsets immediately before tx was applied). previous
// and id are left zero for the caller to assign at append time (spec §4.4).
func Invert(tx Transaction, priorRecords, priorConfigs map[string]changeset.Fieldset) Transaction {
	return Transaction{
		Author:  tx.Author,
		Records: invertEntities(tx.Records, priorRecords),
		Configs: invertEntities(tx.Configs, priorConfigs),
	}
}

func invertEntities(entities EntitiesChangeset, prior map[string]changeset.Fieldset) EntitiesChangeset {
	out := make(EntitiesChangeset, len(entities))
	for ref, cs := range entities {
		out[ref] = changeset.InverseChangeset(prior[ref], cs)
	}
	return out
}

// SquashRange combines a contiguous, non-empty range of transactions
// [first...last] (applied in order) into one equivalent transaction,
// inheriting previous from the first and author/createdAt from the last
// (spec §4.4). txs must be given oldest first.
func SquashRange(resolver FieldOrderResolver, txs []Transaction) (Transaction, errors.E) {
	if len(txs) == 0 {
		errE := errors.WithStack(ErrEmptyTransaction)
		return Transaction{}, errE
	}

	records := EntitiesChangeset{}
	configs := EntitiesChangeset{}
	for _, tx := range txs {
		records = squashEntities(records, tx.Records)
		configs = squashEntities(configs, tx.Configs)
	}

	first, last := txs[0], txs[len(txs)-1]
	tx := Transaction{
		ID:        last.ID,
		Previous:  first.Previous,
		CreatedAt: last.CreatedAt,
		Author:    last.Author,
		Records:   records,
		Configs:   configs,
	}

	canonical, errE := Canonicalize(resolver, tx)
	if errE != nil {
		return Transaction{}, errE
	}
	hash, errE := Hash(resolver, canonical)
	if errE != nil {
		return Transaction{}, errE
	}
	canonical.Hash = hash
	return canonical, nil
}

func squashEntities(a, b EntitiesChangeset) EntitiesChangeset {
	out := make(EntitiesChangeset, len(a)+len(b))
	for ref, cs := range a {
		out[ref] = cs
	}
	for ref, cs := range b {
		if existing, ok := out[ref]; ok {
			out[ref] = changeset.SquashChangeset(existing, cs)
		} else {
			out[ref] = cs
		}
	}
	return out
}
