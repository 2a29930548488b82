package store

import "gitlab.com/tozd/go/errors"

// Sentinel errors returned by the log store. Callers match against these
// with errors.Is; additional context is attached through errors.Details on
// the returned error.
var (
	// ErrChainBroken is returned when an appended transaction's previous
	// hash or id does not match the current head.
	ErrChainBroken = errors.Base("chain-broken")

	// ErrCorruption is returned when a record's re-derived hash does not
	// match the hash stored alongside it, or the log file is truncated
	// mid-record.
	ErrCorruption = errors.Base("corruption")

	// ErrLockTimeout is returned when the advisory lock cannot be acquired
	// before the configured deadline.
	ErrLockTimeout = errors.Base("lock-timeout")

	// ErrNotFound is returned when a transaction id does not exist in the
	// log.
	ErrNotFound = errors.Base("not-found")
)
