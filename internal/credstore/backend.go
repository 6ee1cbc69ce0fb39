package credstore

import "context"

// Backend reads and writes the serialized credential document.
//
// A missing document is reported with an error satisfying
// errors.Is(err, fs.ErrNotExist) so the store can start empty.
type Backend interface {
	// Read returns the stored document bytes.
	Read(ctx context.Context) ([]byte, error)

	// Write persists the document bytes, replacing any previous content
	// atomically where the backend allows it.
	Write(ctx context.Context, data []byte) error
}
