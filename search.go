package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// SearchCommand linearly scans materialized records for a substring match,
// explicitly the thinnest possible client over C6 (spec §1's Non-goals,
// §6A).
type SearchCommand struct {
	Query string `arg:"" default:"" help:"Substring to match against every field's text. Empty lists everything."`
}

func (c *SearchCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	matches, errE := ws.Search(ctx, c.Query)
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, matches, func() {
		for _, fs := range matches {
			fmt.Printf("%v\n", fs) //nolint:forbidigo
		}
	})
}
