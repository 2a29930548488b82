package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// UndoCommand rolls back the last n transactions (default 1) (spec §4.10).
type UndoCommand struct {
	N int `arg:"" default:"1" help:"Number of transactions to undo."`
}

func (c *UndoCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	if errE := ws.Undo(ctx, c.N); errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, map[string]interface{}{"undone": c.N}, func() {
		fmt.Printf("undid %d transaction(s)\n", c.N) //nolint:forbidigo
	})
}

// RedoCommand re-applies the last n undone transactions (default 1)
// (spec §4.10).
type RedoCommand struct {
	N int `arg:"" default:"1" help:"Number of transactions to redo."`
}

func (c *RedoCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	if errE := ws.Redo(ctx, c.N); errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, map[string]interface{}{"redone": c.N}, func() {
		fmt.Printf("redid %d transaction(s)\n", c.N) //nolint:forbidigo
	})
}
