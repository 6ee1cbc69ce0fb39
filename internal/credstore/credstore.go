package credstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Default lock acquisition tuning. The timeout is the bound after which
// contention surfaces as ErrStoreBusy instead of blocking the command.
const (
	DefaultLockTimeout = 5 * time.Second
	lockRetryInterval  = 50 * time.Millisecond
)

// CredentialStore owns the persisted credential document: loading,
// saving, schema migration, and the exclusive lock serializing access
// across CLI processes.
type CredentialStore struct {
	backend     Backend
	fileLock    *flock.Flock
	lockTimeout time.Duration

	// flock does not exclude goroutines sharing one handle, only other
	// processes; mu covers the in-process side.
	mu sync.Mutex
}

// Option configures a CredentialStore.
type Option func(*CredentialStore)

// WithLockTimeout bounds how long Update waits for the store lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *CredentialStore) {
		s.lockTimeout = d
	}
}

// New creates a CredentialStore over the given backend. lockPath is a
// sidecar path used for the advisory lock; it is separate from the
// document itself so the atomic rename on save never invalidates a held
// lock (and so keyring-backed stores still serialize through a file).
func New(backend Backend, lockPath string, opts ...Option) (*CredentialStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("missing backend")
	}
	if lockPath == "" {
		return nil, fmt.Errorf("lock path cannot be empty")
	}

	s := &CredentialStore{
		backend:     backend,
		fileLock:    flock.New(lockPath),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Load reads and migrates the credential document. A missing document
// yields an empty store; an unparsable one fails with ErrStoreCorrupted.
func (s *CredentialStore) Load(ctx context.Context) (*Store, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewStore(), nil
		}
		return nil, err
	}

	store := NewStore()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}
	if err := store.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}

	migrate(store)

	return store, nil
}

// Save persists the store through the backend.
func (s *CredentialStore) Save(ctx context.Context, store *Store) error {
	data, err := json.Marshal(store)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')

	if err := s.backend.Write(ctx, out.Bytes()); err != nil {
		return err
	}

	store.migrated = false
	return nil
}

// Update runs fn inside the exclusive load→mutate→save critical section.
// The document is saved when fn requests it or when loading performed a
// schema migration, so upgraded records are never discarded.
func (s *CredentialStore) Update(ctx context.Context, fn func(*Store) (save bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	store, err := s.Load(ctx)
	if err != nil {
		return err
	}

	save, err := fn(store)
	if err != nil {
		return err
	}

	if save || store.migrated {
		return s.Save(ctx, store)
	}
	return nil
}

// acquireLock takes the cross-process advisory lock, converting a timed
// out acquisition into the transient ErrStoreBusy.
func (s *CredentialStore) acquireLock(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err() // caller interrupted, not contention
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreBusy, err)
	}
	if !locked {
		return nil, ErrStoreBusy
	}

	return func() { _ = s.fileLock.Unlock() }, nil
}
