package filerepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxKeyLength bounds keys so the filesystem store's metadata file name
// stays under the usual 255-byte NAME_MAX.
const MaxKeyLength = 200

var (
	// ErrFileNotFound is returned when no attachment is stored under a key.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidKey is returned for empty or overlong keys and for keys
	// that would escape the storage root.
	ErrInvalidKey = errors.New("invalid file key")
)

// File is a stored attachment.
type File struct {
	// Name is the original file name supplied on upload.
	Name string
	// ContentType is the MIME type supplied on upload.
	ContentType string
	Data        []byte
}

// Repository stores attachments by key.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Put stores f under key, replacing any previous content.
	Put(ctx context.Context, key string, f File) error

	// Get returns the file under key, or ErrFileNotFound.
	Get(ctx context.Context, key string) (File, error)

	// Delete removes the file under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a file is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

func validateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) ||
		strings.HasSuffix(key, metaSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
