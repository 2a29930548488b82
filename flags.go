package binder

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// parseFieldFlags parses repeated "name=value" flags into a map, the
// simple (non-DSL) way of supplying field values on the command line.
func parseFieldFlags(assignments []string) (map[string]string, errors.E) {
	out := make(map[string]string, len(assignments))
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			errE := errors.New("field assignment must be name=value")
			errors.Details(errE)["value"] = a
			return nil, errE
		}
		out[name] = value
	}
	return out, nil
}
