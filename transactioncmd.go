package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/transaction"
)

// TransactionCommand shows a single transaction by id, or every transaction
// in a range, from the hash-chained log (spec §4.4, §4.5).
type TransactionCommand struct {
	ID   int `arg:"" help:"Transaction id to show. With --to, the start of a range."                   optional:""`
	From int `help:"Start of a range to show, inclusive (overrides the positional id)."                name:"from"`
	To   int `help:"End of a range to show, inclusive; shows transactions from --from or id through this." name:"to"`
}

func (c *TransactionCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	from := c.From
	if from == 0 {
		from = c.ID
	}
	if from == 0 {
		from = 1
	}

	if c.To == 0 {
		tx, errE := ws.store.At(from)
		if errE != nil {
			return reportError(globals.Format, errE)
		}
		return printResult(globals.Format, tx, func() {
			printTransaction(tx)
		})
	}

	var txs []transaction.Transaction
	errE = ws.store.Between(ctx, from, c.To, func(tx transaction.Transaction) errors.E {
		txs = append(txs, tx)
		return nil
	})
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, txs, func() {
		for _, tx := range txs {
			printTransaction(tx)
		}
	})
}

func printTransaction(tx transaction.Transaction) {
	fmt.Printf( //nolint:forbidigo
		"%d %s author=%s records=%d configs=%d\n",
		tx.ID, tx.Hash, tx.Author, len(tx.Records), len(tx.Configs),
	)
}
