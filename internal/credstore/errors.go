package credstore

import "errors"

var (
	// ErrStoreCorrupted indicates the persisted credential document exists
	// but cannot be parsed. Fatal: the file must be repaired or removed
	// manually, it is never silently reinitialized.
	ErrStoreCorrupted = errors.New("credential store corrupted")

	// ErrStoreBusy indicates the exclusive store lock could not be
	// acquired within the configured timeout. Transient: another CLI
	// process holds the lock, retrying later is expected to succeed.
	ErrStoreBusy = errors.New("credential store locked by another process")
)
