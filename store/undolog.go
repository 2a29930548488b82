package store

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// idLog is a newline-delimited list of transaction ids, backing .undo-log
// and .redo-log: which transactions have been undone or redone (spec §6).
type idLog struct {
	mu   sync.Mutex
	path string
}

func newIDLog(path string) *idLog {
	return &idLog{path: path}
}

func (l *idLog) read() ([]int, errors.E) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked()
}

func (l *idLog) readLocked() ([]int, errors.E) {
	data, err := os.ReadFile(l.path) //nolint:gosec
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	ids := make([]int, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (l *idLog) writeLocked(ids []int) errors.E {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(strconv.Itoa(id))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(l.path, []byte(b.String()), 0o600); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// appendIDs appends ids to the log's tail, in the order given.
func (l *idLog) appendIDs(ids []int) errors.E {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, errE := l.readLocked()
	if errE != nil {
		return errE
	}
	return l.writeLocked(append(existing, ids...))
}

// popTail removes and returns the last n ids (tail-first, i.e. most
// recently appended first), or fewer if the log holds less than n.
func (l *idLog) popTail(n int) ([]int, errors.E) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, errE := l.readLocked()
	if errE != nil {
		return nil, errE
	}
	if n > len(existing) {
		n = len(existing)
	}
	tail := make([]int, n)
	for i := 0; i < n; i++ {
		tail[i] = existing[len(existing)-1-i]
	}
	remaining := existing[:len(existing)-n]
	if errE := l.writeLocked(remaining); errE != nil {
		return nil, errE
	}
	return tail, nil
}

// clear truncates the log, used whenever a non-undo/redo mutation appends
// (spec §6, "a non-undo/redo mutation clears the redo-log").
func (l *idLog) clear() errors.E {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeLocked(nil)
}
