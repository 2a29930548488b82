package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// ReadCommand prints an entity's current materialized fields (spec §4.6).
type ReadCommand struct {
	Ref string `arg:"" help:"Entity uid to read."`
}

func (c *ReadCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	fs, errE := ws.ReadRecord(c.Ref)
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, fs, func() {
		for key, value := range fs {
			fmt.Printf("%s: %v\n", key, value) //nolint:forbidigo
		}
	})
}
