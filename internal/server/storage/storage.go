// Package storage writes uploaded assets to the configured backend and
// resolves the URLs clients fetch them from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	sc "github.com/dmitrijs2005/recipekeeper/internal/server/config"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Storage is implemented by LocalStorage and S3Storage.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New returns the backend selected by config.StorageBackend.
func New(config *sc.Config) (Storage, error) {
	switch config.StorageBackend {
	case BackendLocal, "":
		return NewLocalStorage(config.MediaRoot, config.MediaURL)
	case BackendS3:
		return NewS3Storage(config), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.StorageBackend)
	}
}
