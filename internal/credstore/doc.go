// Package credstore provides durable multi-identity credential storage.
//
// One token record is kept per identity in a single JSON document with a
// pointer to the current identity. Two backends are supported:
//   - File: local filesystem storage with atomic writes and 0600 permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//
// The document is shared between independently invoked CLI processes, so
// every read-modify-write cycle runs under an exclusive advisory file lock
// with a bounded acquisition timeout. Records written by older releases
// are migrated in place on load and persisted on the next save.
package credstore
