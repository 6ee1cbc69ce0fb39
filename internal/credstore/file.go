package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend stores the credential document on the local filesystem.
// Writes use temp file + rename for crash safety: an interrupted write
// leaves the previous valid document intact.
type FileBackend struct {
	filePath string
}

// Compile-time check to ensure FileBackend implements Backend
var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a FileBackend for the given path, creating
// parent directories with 0700 permissions if they don't exist.
func NewFileBackend(filePath string) (*FileBackend, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileBackend{
		filePath: filePath,
	}, nil
}

// Read returns the stored document. Returns an error if the file doesn't
// exist or has insecure permissions.
func (f *FileBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check file permissions before reading
	info, err := os.Stat(f.filePath)
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm() != 0600 {
		return nil, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	return os.ReadFile(f.filePath)
}

// Write atomically saves the document using temp file + rename.
// Permissions are restricted to 0600 before the rename so no other OS
// user can observe the document at any point.
func (f *FileBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Create secure temp file in same directory for atomic rename
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tempName, 0600); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Atomic rename to final location
	return os.Rename(tempName, f.filePath)
}
