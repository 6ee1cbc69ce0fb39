package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/zalando/go-keyring"
)

// KeyringBackend stores the credential document in OS-native secure
// storage. Uses macOS Keychain, Windows Credential Manager, or Linux
// Secret Service.
type KeyringBackend struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringBackend implements Backend
var _ Backend = (*KeyringBackend)(nil)

// NewKeyringBackend creates a KeyringBackend for the OS-native credential
// storage using the given service and user identifiers.
func NewKeyringBackend(service, user string) (*KeyringBackend, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringBackend{
		service: service,
		user:    user,
	}, nil
}

// Read returns the document from the system keyring.
func (k *KeyringBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := keyring.Get(k.service, k.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("no credentials in keyring for service %s, user %s: %w", k.service, k.user, fs.ErrNotExist)
		}
		return nil, err
	}

	return []byte(data), nil
}

// Write persists the document to the system keyring, overwriting any
// existing value.
func (k *KeyringBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, k.user, string(data))
}
