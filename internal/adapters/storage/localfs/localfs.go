// Package localfs stores pin objects under a root directory on the local
// filesystem. Object keys map to relative paths.
package localfs

import (
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pinforge/internal/pkg/errors"
	"pinforge/internal/ports"
)

type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

// resolve maps an object key to an absolute path and rejects keys that
// would escape the root.
func (l *LocalFS) resolve(objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.Validation("object key is required")
	}
	clean := filepath.Clean(filepath.FromSlash(objectKey))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", errors.Validationf("object key escapes storage root: %s", objectKey)
	}
	return filepath.Join(l.root, clean), nil
}

func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	dst, err := l.resolve(in.ObjectKey)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, errors.Wrap(err, "localfs.put", "creating object directory")
	}

	f, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, errors.Wrap(err, "localfs.put", "creating object file")
	}
	defer f.Close()

	n, err := io.Copy(f, in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, errors.Wrap(err, "localfs.put", "writing object")
	}
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

func (l *LocalFS) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	p, err := l.resolve(objectKey)
	if err != nil {
		return nil, "", 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", 0, errors.NotFound("object", objectKey)
		}
		return nil, "", 0, errors.Wrap(err, "localfs.get", "opening object")
	}

	if st, statErr := f.Stat(); statErr == nil {
		size = st.Size()
	}

	// Prefer extension-based type; sniff the first bytes otherwise.
	contentType = mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		_, _ = f.Seek(0, 0)
		contentType = http.DetectContentType(buf[:n])
	}
	return f, contentType, size, nil
}

func (l *LocalFS) DeleteObject(ctx context.Context, objectKey string) error {
	p, err := l.resolve(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "localfs.delete", "removing object")
	}
	return nil
}

func (l *LocalFS) GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (ports.SignedURLOutput, error) {
	return ports.SignedURLOutput{}, ports.ErrSignedURLUnsupported
}
