package store

import (
	"encoding/binary"
	"os"
	"time"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/binder/binder/transaction"
)

const (
	headHashLen      = 43
	headTimestampLen = len(timestampLayout)
	headRecordLen    = 8 + headHashLen + headTimestampLen

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Head is the log's current cursor: the id and hash of the last appended
// transaction, and when it was appended.
type Head struct {
	ID        int
	Hash      string
	Timestamp time.Time
}

// genesisHead is the head of an empty log, chained from the fixed genesis
// hash (spec §4.3).
func genesisHead() Head {
	return Head{ID: 0, Hash: transaction.GenesisHash, Timestamp: time.Time{}}
}

func readHead(path string) (Head, errors.E) {
	data, err := os.ReadFile(path) //nolint:gosec
	if os.IsNotExist(err) {
		return genesisHead(), nil
	}
	if err != nil {
		return Head{}, errors.WithStack(err)
	}
	if len(data) != headRecordLen {
		errE := errors.WithStack(ErrCorruption)
		errors.Details(errE)["reason"] = "head file has unexpected length"
		return Head{}, errE
	}

	id := binary.BigEndian.Uint64(data[:8])
	hash := string(data[8 : 8+headHashLen])
	ts, err := time.Parse(timestampLayout, string(data[8+headHashLen:]))
	if err != nil {
		errE := errors.WithStack(ErrCorruption)
		errors.Details(errE)["reason"] = "head timestamp is not parseable"
		return Head{}, errE
	}

	return Head{ID: int(id), Hash: hash, Timestamp: ts}, nil
}

// writeHead persists h atomically: it writes to a temporary file in the same
// directory and renames it over path, so a crash mid-write never leaves a
// partially-written head file (spec §5, "writes are atomic").
func writeHead(path string, h Head) errors.E {
	buf := make([]byte, headRecordLen)
	binary.BigEndian.PutUint64(buf[:8], uint64(h.ID)) //nolint:gosec
	hash := h.Hash
	if len(hash) != headHashLen {
		hash = (hash + transaction.GenesisHash)[:headHashLen]
	}
	copy(buf[8:8+headHashLen], hash)
	copy(buf[8+headHashLen:], h.Timestamp.UTC().Format(timestampLayout))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
