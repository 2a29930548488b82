// Package identifier generates and validates Binder entity identifiers.
//
// Record uids and configuration keys that a caller does not supply
// explicitly are random, base58-encoded strings of fixed length.
package identifier

import (
	"crypto/rand"
	"io"
	"regexp"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// Length is the fixed length of a Binder identifier.
	Length = 22
)

var idRegex = regexp.MustCompile(`^[123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz]{22}$`)

// NewRandom returns a new random Binder identifier, suitable for a record
// uid or a configuration key when the caller does not supply its own.
func NewRandom() string {
	return NewRandomFromReader(rand.Reader)
}

// NewRandomFromReader returns a new random Binder identifier using r as the
// source of randomness. Exposed so tests can supply a deterministic reader.
func NewRandomFromReader(r io.Reader) string {
	// One byte more than 128 bits so the base58 encoding always reaches
	// the full length after left-padding.
	data := make([]byte, 17)
	_, err := io.ReadFull(r, data)
	if err != nil {
		panic(err)
	}
	res := base58.Encode(data)
	if len(res) < Length {
		res = strings.Repeat("1", Length-len(res)) + res
	}
	return res[0:Length]
}

// Valid reports whether id looks like a well-formed Binder identifier.
func Valid(id string) bool {
	return idRegex.MatchString(id)
}
