package binder

import (
	"time"

	"github.com/alecthomas/kong"
	"gitlab.com/tozd/go/cli"
	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/zerolog"
)

// DefaultDocs is the default workspace directory: the current one.
const DefaultDocs = "."

// Globals describes top-level (global) flags shared by every subcommand.
type Globals struct {
	zerolog.LoggingConfig `yaml:",inline"`

	Version kong.VersionFlag `help:"Show program's version and exit."                         short:"V" yaml:"-"`
	Config  cli.ConfigFlag   `help:"Load configuration from a JSON or YAML file." name:"config" placeholder:"PATH" short:"c" yaml:"-"`

	Docs   string `default:"${defaultDocs}" help:"Workspace directory holding the log store. Default: ${defaultDocs}." name:"docs" placeholder:"PATH" short:"D" yaml:"docs"`
	Author string `                         help:"Author recorded on appended transactions."                         name:"author"                      yaml:"author"`
	Format string `default:"text"           help:"Output format, \"text\" or \"json\"."        enum:"text,json"      name:"format"                      yaml:"format"`

	LockTimeout time.Duration `default:"5s" help:"How long to wait for another process's lock on the workspace." name:"lock-timeout" yaml:"lockTimeout"`
}

// Config provides configuration. It is used as configuration for Kong's
// command-line parser as well (spec §6A).
type Config struct {
	Globals `yaml:"globals"`

	Init        InitCommand        `cmd:"" help:"Initialize a new workspace."                     yaml:"init"`
	Create      CreateCommand      `cmd:"" help:"Create a new entity."                            yaml:"create"`
	Read        ReadCommand        `cmd:"" help:"Read an entity's current fields."                yaml:"read"`
	Update      UpdateCommand      `cmd:"" help:"Update an entity's fields."                      yaml:"update"`
	Delete      DeleteCommand      `cmd:"" help:"Delete (tombstone) an entity."                   yaml:"delete"`
	Search      SearchCommand      `cmd:"" help:"Search materialized entities."                   yaml:"search"`
	Schema      SchemaCommand      `cmd:"" help:"Define or inspect a schema type."                yaml:"schema"`
	Transaction TransactionCommand `cmd:"" help:"Show a transaction or a range of the log."        yaml:"transaction"`
	Undo        UndoCommand        `cmd:"" help:"Undo the last n transactions."                   yaml:"undo"`
	Redo        RedoCommand        `cmd:"" help:"Redo the last n undone transactions."             yaml:"redo"`
}

// Validate validates the global configuration.
func (g *Globals) Validate() error {
	if g.LockTimeout <= 0 {
		return errors.New("lock-timeout must be positive")
	}
	return nil
}
