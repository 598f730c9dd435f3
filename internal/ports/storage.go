package ports

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrSignedURLUnsupported is returned by GetSignedURL on providers without
// link sharing. Callers branch on it with errors.Is and fall back to
// streaming GetObject.
var ErrSignedURLUnsupported = errors.New("signed urls not supported")

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// Localfs echoes the object key back; gdrive returns the real file id
	// so the object can be read or streamed later.
	ObjectKey string
	Size      int64
}

type SignedURLOutput struct {
	URL       string
	ExpiresAt time.Time
}

// StorageProvider persists generated pin files (localfs, gdrive, s3, ...).
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	DeleteObject(ctx context.Context, objectKey string) error

	// GetSignedURL is optional; providers without link sharing return a
	// not-supported error and callers fall back to streaming GetObject.
	GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (SignedURLOutput, error)
}
