package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// DeleteCommand tombstones an entity by clearing all of its fields other
// than id (spec §4.6).
type DeleteCommand struct {
	Ref string `arg:"" help:"Entity uid to delete."`
}

func (c *DeleteCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	tx, errE := ws.DeleteRecord(ctx, globals.Author, c.Ref)
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, map[string]interface{}{"ref": c.Ref, "transaction": tx.ID}, func() {
		fmt.Printf("deleted %s (transaction %d)\n", c.Ref, tx.ID) //nolint:forbidigo
	})
}
