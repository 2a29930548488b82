package store

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/go/x"

	"gitlab.com/binder/binder/transaction"
)

// logFile is the append-only log.bin: one length-prefixed canonical JSON
// record per transaction (spec §6, "log.bin"). offsets[i] is the byte
// offset of the transaction with id i+1, built by a single forward scan at
// open and extended on every append.
type logFile struct {
	mu      sync.Mutex
	file    *os.File
	offsets []int64
}

func openLogFile(path string) (*logFile, errors.E) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //nolint:gosec
	if err != nil {
		return nil, errors.WithStack(err)
	}

	lf := &logFile{file: file}
	if errE := lf.scan(); errE != nil {
		_ = file.Close()
		return nil, errE
	}
	return lf, nil
}

// scan reads every record from the start of the file, recording its offset
// and checking that ids run 1, 2, 3, ... without gaps; a truncated record or
// an out-of-sequence id is reported as ErrCorruption. Hashes are not checked
// here: at re-derives and compares them on each read.
func (lf *logFile) scan() errors.E {
	var offset int64
	expectedID := 1
	for {
		tx, next, errE := readRecordAt(lf.file, offset)
		if errors.Is(errE, io.EOF) {
			break
		}
		if errE != nil {
			return errE
		}
		if tx.ID != expectedID {
			errE := errors.WithStack(ErrCorruption)
			errors.Details(errE)["reason"] = "non-monotonic transaction id in log"
			errors.Details(errE)["expected"] = expectedID
			errors.Details(errE)["found"] = tx.ID
			return errE
		}
		lf.offsets = append(lf.offsets, offset)
		offset = next
		expectedID++
	}
	return nil
}

func (lf *logFile) count() int {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return len(lf.offsets)
}

// append writes tx's canonical envelope to the end of the file and fsyncs
// before returning, so a crash never leaves a record that is visible without
// being durable.
func (lf *logFile) append(tx transaction.Transaction) errors.E {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	offset, err := lf.file.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.WithStack(err)
	}

	data, err := x.MarshalWithoutEscapeHTML(tx)
	if err != nil {
		return errors.WithStack(err)
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data))) //nolint:gosec
	if _, err := lf.file.Write(header); err != nil {
		return errors.WithStack(err)
	}
	if _, err := lf.file.Write(data); err != nil {
		return errors.WithStack(err)
	}
	if err := lf.file.Sync(); err != nil {
		return errors.WithStack(err)
	}

	lf.offsets = append(lf.offsets, offset)
	return nil
}

// at returns the transaction stored at id (1-based), re-deriving and
// checking its hash against the stored value.
func (lf *logFile) at(id int, resolver transaction.FieldOrderResolver) (transaction.Transaction, errors.E) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if id < 1 || id > len(lf.offsets) {
		errE := errors.WithStack(ErrNotFound)
		errors.Details(errE)["id"] = id
		return transaction.Transaction{}, errE
	}

	tx, _, errE := readRecordAt(lf.file, lf.offsets[id-1])
	if errE != nil {
		return transaction.Transaction{}, errE
	}
	if resolver != nil {
		if errE := verifyHash(resolver, tx); errE != nil {
			return transaction.Transaction{}, errE
		}
	}
	return tx, nil
}

func verifyHash(resolver transaction.FieldOrderResolver, tx transaction.Transaction) errors.E {
	canonical, errE := transaction.Canonicalize(resolver, tx)
	if errE != nil {
		return errE
	}
	hash, errE := transaction.Hash(resolver, canonical)
	if errE != nil {
		return errE
	}
	if hash != tx.Hash {
		errE := errors.WithStack(ErrCorruption)
		errors.Details(errE)["id"] = tx.ID
		errors.Details(errE)["expected"] = tx.Hash
		errors.Details(errE)["computed"] = hash
		return errE
	}
	return nil
}

func readRecordAt(file *os.File, offset int64) (transaction.Transaction, int64, errors.E) {
	header := make([]byte, 4)
	if _, err := file.ReadAt(header, offset); err != nil {
		if err == io.EOF { //nolint:errorlint
			return transaction.Transaction{}, 0, errors.WithStack(io.EOF)
		}
		return transaction.Transaction{}, 0, errors.WithStack(err)
	}

	length := binary.BigEndian.Uint32(header)
	data := make([]byte, length)
	if _, err := file.ReadAt(data, offset+4); err != nil {
		errE := errors.WithStack(ErrCorruption)
		errors.Details(errE)["reason"] = "truncated record"
		return transaction.Transaction{}, 0, errE
	}

	var tx transaction.Transaction
	errE := x.UnmarshalWithoutUnknownFields(data, &tx)
	if errE != nil {
		return transaction.Transaction{}, 0, errE
	}

	return tx, offset + 4 + int64(length), nil
}

func (lf *logFile) close() error {
	return lf.file.Close()
}
