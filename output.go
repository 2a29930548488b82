package binder

import (
	"encoding/json"
	"fmt"
	"os"

	"gitlab.com/tozd/go/errors"
)

// printResult renders v to stdout as JSON when format is "json", otherwise
// delegates to text, a caller-supplied plain-text renderer.
func printResult(format string, v interface{}, text func()) errors.E {
	if format != "json" {
		text()
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Println(string(data)) //nolint:forbidigo
	return nil
}

// reportError prints errE to stderr, as a JSON object when format is
// "json", and returns the exit-code-1 sentinel error (spec §6, "exit code
// 0 on success, 1 on any error; JSON errors to stderr on --format json").
func reportError(format string, errE errors.E) error {
	if format == "json" {
		data, err := json.Marshal(map[string]interface{}{
			"error":   errE.Error(),
			"details": errors.Details(errE),
		})
		if err == nil {
			fmt.Fprintln(os.Stderr, string(data))
			return errE
		}
	}
	fmt.Fprintln(os.Stderr, errE.Error()) //nolint:forbidigo
	return errE
}
