package binder

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/x"

	"gitlab.com/binder/binder/schema"
)

// typeSpec is the YAML/JSON shape a schema command's definition argument
// decodes into, mirroring cmd/search/config.go's site.Decode pattern: a
// kong argument that parses its raw string through x.UnmarshalWithoutUnknownFields.
type typeSpec struct {
	Name   string `json:"name"   yaml:"name"`
	Fields []struct {
		ID        int    `json:"id"                  yaml:"id"`
		Name      string `json:"name"                yaml:"name"`
		Type      string `json:"type"                yaml:"type"`
		List      bool   `json:"list,omitempty"      yaml:"list,omitempty"`
		Of        string `json:"of,omitempty"        yaml:"of,omitempty"`
		Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
		Required  bool   `json:"required,omitempty"  yaml:"required,omitempty"`
		When      *struct {
			Field  string      `json:"field"  yaml:"field"`
			Equals interface{} `json:"equals" yaml:"equals"`
		} `json:"when,omitempty" yaml:"when,omitempty"`
	} `json:"fields" yaml:"fields"`
}

// Decode implements kong.MapperValue, accepting either JSON or YAML (a
// superset) for the type definition.
func (s *typeSpec) Decode(ctx *kong.DecodeContext) error {
	var value string
	if err := ctx.Scan.PopValueInto("value", &value); err != nil {
		return err
	}
	var raw interface{}
	if err := yaml.Unmarshal([]byte(value), &raw); err != nil {
		return err
	}
	data, err := x.MarshalWithoutEscapeHTML(raw)
	if err != nil {
		return err
	}
	return x.UnmarshalWithoutUnknownFields(data, s) //nolint:wrapcheck
}

func (s typeSpec) toTypeDef() schema.TypeDef {
	fields := make([]schema.FieldDef, len(s.Fields))
	for i, f := range s.Fields {
		fd := schema.FieldDef{
			ID:        f.ID,
			Name:      f.Name,
			Type:      schema.FieldType(f.Type),
			List:      f.List,
			Of:        f.Of,
			Delimiter: f.Delimiter,
			Required:  f.Required,
		}
		if f.When != nil {
			fd.When = &schema.When{Field: f.When.Field, Equals: f.When.Equals}
		}
		fields[i] = fd
	}
	return schema.TypeDef{Name: s.Name, Fields: fields}
}

// SchemaCommand defines a new entity type as a config-namespace entity
// (spec §3, §3A).
type SchemaCommand struct {
	Key        string   `help:"Config key for this type definition; a fresh one is generated when omitted." name:"key"`
	Definition typeSpec `arg:"" help:"Type definition as JSON or YAML: {name, fields: [{id, name, type, list?, of?, required?, when?}]}."`
}

func (c *SchemaCommand) Run(globals *Globals) errors.E {
	ctx := context.Background()
	ws, errE := Open(ctx, globals.Docs, globals.LockTimeout)
	if errE != nil {
		return reportError(globals.Format, errE)
	}
	defer ws.Close() //nolint:errcheck

	tx, errE := ws.DefineType(ctx, globals.Author, c.Key, c.Definition.toTypeDef())
	if errE != nil {
		return reportError(globals.Format, errE)
	}

	return printResult(globals.Format, map[string]interface{}{"type": c.Definition.Name, "transaction": tx.ID}, func() {
		fmt.Printf("defined type %s (transaction %d)\n", c.Definition.Name, tx.ID) //nolint:forbidigo
	})
}
