package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// UpdateCommand updates an entity's fields, via plain assignments, patch
// DSL tokens, or both (spec §4.8, §4.9, §6A).
type UpdateCommand struct {
	Ref   string   `arg:"" help:"Entity uid to update."`
	Field []string `help:"A field=value assignment, normalized to an unanchored set. Repeatable." name:"field" placeholder:"NAME=VALUE"`
	Patch []string `help:"A patch DSL token (field[:accessor](=|+=|-=|--)value). Repeatable."       name:"patch" placeholder:"TOKEN"`
}

func (c *UpdateCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	fields, errE := parseFieldFlags(c.Field)
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	tx, errE := ws.UpdateEntityWithPatch(ctx, globals.Author, c.Ref, fields, c.Patch)
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, map[string]interface{}{"ref": c.Ref, "transaction": tx.ID}, func() {
		fmt.Printf("updated %s (transaction %d)\n", c.Ref, tx.ID) //nolint:forbidigo
	})
}
