package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// InitCommand creates an empty workspace at --docs: just opening one (with
// store.Open creating its directory and files on first use) is enough, so
// init exists mainly to give users an explicit, discoverable first step.
type InitCommand struct{}

func (c *InitCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	return printResult(globals.Format, map[string]interface{}{"docs": globals.Docs}, func() {
		fmt.Printf("initialized workspace at %s\n", globals.Docs) //nolint:forbidigo
	})
}
