// Command binder is the command-line interface for Binder.
package main

import (
	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder"
)

func main() {
	var config binder.Config
	cli.Run(&config, kong.Vars{
		"defaultDocs": binder.DefaultDocs,
	}, func(ctx *kong.Context) errors.E {
		return errors.WithStack(ctx.Run(&config.Globals))
	})
}
