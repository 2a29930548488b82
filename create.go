package binder

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// CreateCommand creates a new record entity (spec §4.9, §6A).
type CreateCommand struct {
	Type  string   `arg:"" help:"Entity type, as defined by a prior schema command."`
	Key   string   `                                                                            help:"Caller-supplied uid; a fresh one is generated when omitted." name:"key"`
	Field []string `help:"A field=value assignment, normalized to an unanchored set. Repeatable." name:"field" placeholder:"NAME=VALUE"`
}

func (c *CreateCommand) Run(globals *Globals) errors.E {
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

	raw := map[string]interface{}{"type": c.Type}
	if c.Key != "" {
		raw["key"] = c.Key
	}
	for name, value := range fields {
		raw[name] = value
	}

	uid, tx, errE := ws.CreateRecord(ctx, globals.Author, raw)
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, map[string]interface{}{"uid": uid, "transaction": tx.ID}, func() {
		fmt.Printf("created %s (transaction %d)\n", uid, tx.ID) //nolint:forbidigo
	})
}
