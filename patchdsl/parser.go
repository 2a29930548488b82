// Package patchdsl parses the human-facing patch DSL — tokens of the form
// field[:accessor](op)value — into field changesets (C8).
package patchdsl

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/changeset"
	"gitlab.com/binder/binder/schema"
)

// Op is one of the DSL's four operators.
type Op string

const (
	OpSet    Op = "="
	OpInsert Op = "+="
	OpRemove Op = "-="
	OpUnset  Op = "--"
)

var tokenPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?::([^=+\-]+))?(\+=|-=|--|=)(.*)$`)

// Token is one parsed `field[:accessor](op)value` occurrence.
type Token struct {
	Field    string
	Accessor string
	Op       Op
	Value    string
}

// ParseToken parses a single DSL token.
func ParseToken(s string) (Token, errors.E) {
	m := tokenPattern.FindStringSubmatch(s)
	if m == nil {
		errE := errors.WithStack(ErrInvalidToken)
		errors.Details(errE)["token"] = s
		return Token{}, errE
	}
	return Token{Field: m[1], Accessor: m[2], Op: Op(m[3]), Value: m[4]}, nil
}

// accessorPos resolves accessor to a list position. ok is false when
// accessor names a patch target ref instead of a position.
func accessorPos(accessor string, length int) (pos int, ok bool) {
	switch accessor {
	case "", "0", "first":
		return 0, true
	case "last":
		if length == 0 {
			return 0, true
		}
		return length - 1, true
	}
	if n, err := strconv.Atoi(accessor); err == nil {
		return n, true
	}
	return 0, false
}

func isLiteral(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")
}

func parseLiteral(value string) (interface{}, errors.E) {
	var out interface{}
	if err := yaml.Unmarshal([]byte(value), &out); err != nil {
		errE := errors.WithStack(err)
		errors.Details(errE)["value"] = value
		return nil, errE
	}
	return normalizeYAML(out), nil
}

// normalizeYAML converts yaml.v3's native map[string]interface{} decoding
// into the changeset.Value shape apply/squash/rebase expect, recursively.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	case int:
		return float64(t)
	default:
		return t
	}
}

// coerceScalar parses value as fd's scalar type.
func coerceScalar(fd schema.FieldDef, value string) (interface{}, errors.E) {
	switch fd.Type {
	case schema.TypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			errE := errors.WithStack(err)
			errors.Details(errE)["value"] = value
			return nil, errE
		}
		return float64(n), nil
	case schema.TypeNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			errE := errors.WithStack(err)
			errors.Details(errE)["value"] = value
			return nil, errE
		}
		return n, nil
	case schema.TypeBoolean:
		b, err := strconv.ParseBool(value)
		if err != nil {
			errE := errors.WithStack(err)
			errors.Details(errE)["value"] = value
			return nil, errE
		}
		return b, nil
	default:
		// string, text, ref all pass through verbatim.
		return value, nil
	}
}
