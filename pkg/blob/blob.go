// Package blob defines the screenshot object store interface. Keys are
// content-addressed so a re-uploaded screenshot maps to the same object and
// the capture store's object-key uniqueness can catch the replay.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("blob: object not found")

// Store persists screenshot bytes.
type Store interface {
	// Put stores data under key. Overwriting an existing key is a no-op by
	// construction: keys are content hashes, so same key means same bytes.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object bytes, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// KeyFor derives the object key for screenshot bytes: the hex SHA-256 of
// the content plus the original file extension, e.g.
// "3a7b...f1.jpg". ext may be given with or without the leading dot; an
// unknown extension is dropped rather than guessed.
func KeyFor(data []byte, ext string) string {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext != "" {
		key += "." + ext
	}
	return key
}
